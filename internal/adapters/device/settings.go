package device

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samirrijal/shopradar/internal/core/domain"
	"github.com/samirrijal/shopradar/internal/core/ports"
)

// SettingsLauncher implements ports.SettingsLauncher for a simulated
// device. Opening settings publishes an event and, when GrantOnOpen is
// set, flips the simulator's permission to granted as if the user had
// enabled location access.
type SettingsLauncher struct {
	sim         *Simulator
	events      ports.EventPublisher
	sessionID   string
	GrantOnOpen bool
}

// NewSettingsLauncher creates a launcher for one session. events may be nil.
func NewSettingsLauncher(sim *Simulator, events ports.EventPublisher, sessionID string) *SettingsLauncher {
	return &SettingsLauncher{sim: sim, events: events, sessionID: sessionID}
}

func (l *SettingsLauncher) Open(ctx context.Context) error {
	if l.events != nil {
		if err := l.events.PublishSettingsOpened(ctx, l.sessionID); err != nil {
			return fmt.Errorf("publish settings opened: %w", err)
		}
	}
	if l.GrantOnOpen {
		l.sim.SetPermission(domain.PermissionGranted, true)
		slog.Info("simulated settings change: location granted", "session", l.sessionID)
	}
	return nil
}

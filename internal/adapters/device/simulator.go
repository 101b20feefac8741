// Package device provides a simulated device location provider and
// settings launcher for headless map sessions.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samirrijal/shopradar/internal/core/domain"
)

// ErrPositionUnavailable is returned by Current when the simulated
// receiver has no fix.
var ErrPositionUnavailable = errors.New("position unavailable")

// Profile describes the simulated device.
type Profile struct {
	Permission   domain.PermissionStatus
	CanAskAgain  bool
	PromptResult domain.PermissionStatus

	LastKnown    *domain.GeoPoint
	LastKnownAge time.Duration

	Current      domain.GeoPoint
	CurrentDelay time.Duration
	CurrentFails bool
}

// Simulator implements ports.LocationProvider from a Profile.
type Simulator struct {
	mu      sync.Mutex
	profile Profile
	now     func() time.Time
}

// NewSimulator creates a simulator. Unknown permission values read as
// undetermined.
func NewSimulator(p Profile) *Simulator {
	p.Permission = normalize(p.Permission)
	p.PromptResult = normalize(p.PromptResult)
	return &Simulator{profile: p, now: time.Now}
}

func normalize(s domain.PermissionStatus) domain.PermissionStatus {
	switch s {
	case domain.PermissionGranted, domain.PermissionDenied:
		return s
	default:
		return domain.PermissionUndetermined
	}
}

// SetPermission changes the OS permission, as the user would in settings.
func (s *Simulator) SetPermission(status domain.PermissionStatus, canAskAgain bool) {
	s.mu.Lock()
	s.profile.Permission = normalize(status)
	s.profile.CanAskAgain = canAskAgain
	s.mu.Unlock()
}

// MoveTo changes the simulated receiver position and refreshes the cached fix.
func (s *Simulator) MoveTo(p domain.GeoPoint) {
	s.mu.Lock()
	s.profile.Current = p
	last := p
	s.profile.LastKnown = &last
	s.profile.LastKnownAge = 0
	s.mu.Unlock()
}

func (s *Simulator) CheckPermission(ctx context.Context) (domain.PermissionResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.PermissionResponse{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.PermissionResponse{Status: s.profile.Permission, CanAskAgain: s.profile.CanAskAgain}, nil
}

// RequestPermission answers the prompt with PromptResult. A granted or
// permanently denied permission is returned without prompting.
func (s *Simulator) RequestPermission(ctx context.Context) (domain.PermissionResponse, error) {
	if err := ctx.Err(); err != nil {
		return domain.PermissionResponse{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	p := &s.profile
	if p.Permission == domain.PermissionGranted || (p.Permission == domain.PermissionDenied && !p.CanAskAgain) {
		return domain.PermissionResponse{Status: p.Permission, CanAskAgain: p.CanAskAgain}, nil
	}
	if p.PromptResult != domain.PermissionUndetermined {
		p.Permission = p.PromptResult
	}
	return domain.PermissionResponse{Status: p.Permission, CanAskAgain: p.CanAskAgain}, nil
}

// canRead reports whether position reads are allowed. Only an explicit
// denial blocks them; an undetermined status follows the platform and
// still answers.
func canRead(status domain.PermissionStatus) bool {
	return status != domain.PermissionDenied
}

// LastKnown returns the cached fix when it is younger than opts.MaxAge.
func (s *Simulator) LastKnown(ctx context.Context, opts domain.LastKnownOptions) (*domain.Position, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if !canRead(s.profile.Permission) || s.profile.LastKnown == nil {
		return nil, nil
	}
	if opts.MaxAge > 0 && s.profile.LastKnownAge > opts.MaxAge {
		return nil, nil
	}
	acc := accuracyFor(domain.AccuracyBalanced)
	if opts.RequiredAccuracyM > 0 && acc > opts.RequiredAccuracyM {
		return nil, nil
	}
	return &domain.Position{
		Coordinate: *s.profile.LastKnown,
		AccuracyM:  acc,
		Timestamp:  s.now().Add(-s.profile.LastKnownAge),
	}, nil
}

// Current waits CurrentDelay and returns a fresh fix. It fails when the
// delay exceeds opts.TimeInterval.
func (s *Simulator) Current(ctx context.Context, opts domain.CurrentOptions) (*domain.Position, error) {
	s.mu.Lock()
	p := s.profile
	s.mu.Unlock()

	if !canRead(p.Permission) {
		return nil, fmt.Errorf("current position: permission %s", p.Permission)
	}

	wait := p.CurrentDelay
	timedOut := opts.TimeInterval > 0 && wait > opts.TimeInterval
	if timedOut {
		wait = opts.TimeInterval
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
	}

	if timedOut {
		return nil, fmt.Errorf("current position: no fix within %s", opts.TimeInterval)
	}
	if p.CurrentFails {
		return nil, ErrPositionUnavailable
	}
	return &domain.Position{
		Coordinate: p.Current,
		AccuracyM:  accuracyFor(opts.Accuracy),
		Timestamp:  s.now(),
	}, nil
}

func accuracyFor(a domain.Accuracy) float64 {
	switch a {
	case domain.AccuracyLowest:
		return 3000
	case domain.AccuracyLow:
		return 1000
	case domain.AccuracyHigh:
		return 10
	case domain.AccuracyHighest:
		return 5
	default:
		return 100
	}
}

package device_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/samirrijal/shopradar/internal/adapters/device"
	"github.com/samirrijal/shopradar/internal/core/domain"
)

var tokyo = domain.GeoPoint{Lat: 35.681236, Lng: 139.767125}

func TestSimulator_PromptGrants(t *testing.T) {
	sim := device.NewSimulator(device.Profile{
		Permission:   "undetermined",
		CanAskAgain:  true,
		PromptResult: domain.PermissionGranted,
	})
	ctx := context.Background()

	resp, err := sim.RequestPermission(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != domain.PermissionGranted {
		t.Errorf("expected granted, got %s", resp.Status)
	}
	if got, _ := sim.CheckPermission(ctx); got.Status != domain.PermissionGranted {
		t.Errorf("prompt result not remembered: %s", got.Status)
	}
}

func TestSimulator_PermanentDenialSkipsPrompt(t *testing.T) {
	sim := device.NewSimulator(device.Profile{
		Permission:   domain.PermissionDenied,
		PromptResult: domain.PermissionGranted,
	})
	resp, _ := sim.RequestPermission(context.Background())
	if resp.Status != domain.PermissionDenied || resp.CanAskAgain {
		t.Errorf("expected permanent denial, got %+v", resp)
	}
}

func TestSimulator_LastKnownRespectsMaxAge(t *testing.T) {
	sim := device.NewSimulator(device.Profile{
		Permission:   domain.PermissionGranted,
		LastKnown:    &tokyo,
		LastKnownAge: 10 * time.Minute,
	})
	ctx := context.Background()

	pos, err := sim.LastKnown(ctx, domain.LastKnownOptions{MaxAge: 5 * time.Minute, RequiredAccuracyM: 5000})
	if err != nil || pos != nil {
		t.Errorf("expected no cached fix, got %+v, %v", pos, err)
	}

	pos, err = sim.LastKnown(ctx, domain.LastKnownOptions{MaxAge: time.Hour, RequiredAccuracyM: 5000})
	if err != nil || pos == nil {
		t.Fatalf("expected cached fix, got %+v, %v", pos, err)
	}
	if pos.Coordinate != tokyo {
		t.Errorf("unexpected coordinate %+v", pos.Coordinate)
	}
}

func TestSimulator_CurrentTimesOut(t *testing.T) {
	sim := device.NewSimulator(device.Profile{
		Permission:   domain.PermissionGranted,
		Current:      tokyo,
		CurrentDelay: time.Second,
	})
	_, err := sim.Current(context.Background(), domain.CurrentOptions{TimeInterval: 5 * time.Millisecond})
	if err == nil {
		t.Error("expected timeout error")
	}
}

func TestSimulator_CurrentFails(t *testing.T) {
	sim := device.NewSimulator(device.Profile{
		Permission:   domain.PermissionGranted,
		CurrentFails: true,
	})
	_, err := sim.Current(context.Background(), domain.CurrentOptions{})
	if !errors.Is(err, device.ErrPositionUnavailable) {
		t.Errorf("expected ErrPositionUnavailable, got %v", err)
	}
}

func TestSimulator_CurrentReturnsFix(t *testing.T) {
	sim := device.NewSimulator(device.Profile{Permission: domain.PermissionGranted, Current: tokyo})
	pos, err := sim.Current(context.Background(), domain.CurrentOptions{Accuracy: domain.AccuracyBalanced, TimeInterval: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pos.Coordinate != tokyo || pos.Timestamp.IsZero() {
		t.Errorf("unexpected position %+v", pos)
	}
}

func TestSimulator_UndeterminedStillReads(t *testing.T) {
	sim := device.NewSimulator(device.Profile{
		Permission:   domain.PermissionUndetermined,
		CanAskAgain:  true,
		LastKnown:    &tokyo,
		LastKnownAge: time.Minute,
		Current:      tokyo,
	})
	ctx := context.Background()

	pos, err := sim.LastKnown(ctx, domain.LastKnownOptions{MaxAge: time.Hour, RequiredAccuracyM: 5000})
	if err != nil || pos == nil || pos.Coordinate != tokyo {
		t.Errorf("expected cached fix, got %+v, %v", pos, err)
	}
	pos, err = sim.Current(ctx, domain.CurrentOptions{TimeInterval: time.Second})
	if err != nil || pos == nil || pos.Coordinate != tokyo {
		t.Errorf("expected current fix, got %+v, %v", pos, err)
	}
}

func TestSimulator_DeniedBlocksReads(t *testing.T) {
	sim := device.NewSimulator(device.Profile{
		Permission: domain.PermissionDenied,
		LastKnown:  &tokyo,
		Current:    tokyo,
	})
	ctx := context.Background()

	if pos, err := sim.LastKnown(ctx, domain.LastKnownOptions{}); err != nil || pos != nil {
		t.Errorf("expected no cached fix, got %+v, %v", pos, err)
	}
	if _, err := sim.Current(ctx, domain.CurrentOptions{}); err == nil {
		t.Error("expected current read to fail while denied")
	}
}

type recordingEvents struct {
	settings []string
}

func (r *recordingEvents) PublishRender(context.Context, string, *domain.Render) error { return nil }
func (r *recordingEvents) PublishViewport(context.Context, string, domain.Viewport) error {
	return nil
}
func (r *recordingEvents) PublishForeground(context.Context, string) error { return nil }
func (r *recordingEvents) PublishSettingsOpened(_ context.Context, id string) error {
	r.settings = append(r.settings, id)
	return nil
}

func TestSettingsLauncher_GrantOnOpen(t *testing.T) {
	sim := device.NewSimulator(device.Profile{Permission: domain.PermissionDenied})
	events := &recordingEvents{}
	l := device.NewSettingsLauncher(sim, events, "session-1")
	l.GrantOnOpen = true

	if err := l.Open(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events.settings) != 1 || events.settings[0] != "session-1" {
		t.Errorf("expected one settings event, got %v", events.settings)
	}
	if resp, _ := sim.CheckPermission(context.Background()); resp.Status != domain.PermissionGranted {
		t.Errorf("expected granted after settings, got %s", resp.Status)
	}
}

package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/shopradar/internal/core/domain"
	"github.com/samirrijal/shopradar/internal/pkg/metrics"
)

// Publisher implements ports.EventPublisher using NATS JetStream for
// viewport and settings events and core NATS for render frames and
// foreground signals.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

type foregroundEvent struct {
	SessionID string    `json:"session_id"`
	At        time.Time `json:"at"`
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	if err := ensureStreams(js); err != nil {
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

// ensureStreams creates or updates the session event streams.
func ensureStreams(js nats.JetStreamContext) error {
	streams := []nats.StreamConfig{
		{
			Name:      "SHOPRADAR_VIEWPORTS",
			Subjects:  []string{SubjectViewport + ".>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "SHOPRADAR_SETTINGS",
			Subjects:  []string{SubjectSettings + ".>"},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist, try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}
	return nil
}

// PublishRender broadcasts a render frame to websocket relays.
func (p *Publisher) PublishRender(ctx context.Context, sessionID string, frame *domain.Render) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(SessionSubject(SubjectRender, sessionID), data); err != nil {
		return err
	}
	metrics.RenderFrames.Inc()
	return nil
}

// PublishViewport queues a settled viewport for a locator session.
func (p *Publisher) PublishViewport(ctx context.Context, sessionID string, v domain.Viewport) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SessionSubject(SubjectViewport, sessionID), data, nats.Context(ctx))
	return err
}

// PublishForeground signals that the session's app returned to the
// foreground. Signals are not persisted.
func (p *Publisher) PublishForeground(ctx context.Context, sessionID string) error {
	data, err := json.Marshal(foregroundEvent{SessionID: sessionID, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	return p.conn.Publish(SessionSubject(SubjectForeground, sessionID), data)
}

// PublishSettingsOpened records that the user was sent to the OS settings.
func (p *Publisher) PublishSettingsOpened(ctx context.Context, sessionID string) error {
	data, err := json.Marshal(foregroundEvent{SessionID: sessionID, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SessionSubject(SubjectSettings, sessionID), data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for subscribers sharing it.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}

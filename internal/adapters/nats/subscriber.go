package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/shopradar/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext

	mu   sync.Mutex
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber on an existing connection.
func NewSubscriber(conn *nats.Conn) (*Subscriber, error) {
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeViewports delivers viewport events for one session in order.
// Malformed events are terminated; handler errors are redelivered up to
// three times.
func (s *Subscriber) SubscribeViewports(ctx context.Context, sessionID string, handler func(ctx context.Context, v domain.Viewport) error) error {
	if !ValidSessionID(sessionID) {
		return fmt.Errorf("invalid session id %q", sessionID)
	}
	sub, err := s.js.Subscribe(SessionSubject(SubjectViewport, sessionID), func(msg *nats.Msg) {
		var v domain.Viewport
		if err := json.Unmarshal(msg.Data, &v); err != nil {
			slog.Warn("dropping malformed viewport event", "session", sessionID, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, v); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("viewport-"+sessionID),
		nats.DeliverNew(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
		nats.MaxAckPending(1),
	)
	if err != nil {
		return err
	}
	s.track(sub)
	return nil
}

// Foreground returns a ports.ReentrySource for one session over core NATS.
func (s *Subscriber) Foreground(sessionID string) *ForegroundSource {
	return &ForegroundSource{sub: s, sessionID: sessionID}
}

func (s *Subscriber) track(sub *nats.Subscription) {
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
}

// Close unsubscribes every subscription. The connection is left open.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	s.subs = nil
}

// ForegroundSource emits a signal for each foreground event of a session.
type ForegroundSource struct {
	sub       *Subscriber
	sessionID string
}

// Reentries subscribes to the session's foreground subject. Signals that
// arrive while the consumer is busy are coalesced.
func (f *ForegroundSource) Reentries(ctx context.Context) (<-chan struct{}, error) {
	msgs := make(chan *nats.Msg, 16)
	sub, err := f.sub.conn.ChanSubscribe(SessionSubject(SubjectForeground, f.sessionID), msgs)
	if err != nil {
		return nil, fmt.Errorf("subscribe foreground: %w", err)
	}
	f.sub.track(sub)

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Unsubscribe() //nolint:errcheck
		for {
			select {
			case <-ctx.Done():
				return
			case <-msgs:
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out, nil
}

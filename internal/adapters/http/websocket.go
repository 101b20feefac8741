package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/shopradar/internal/adapters/nats"
	"github.com/samirrijal/shopradar/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to sessions.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Session string `json:"session"` // session id, "" = all sessions
}

// wsFrame wraps a render frame with the session it belongs to.
type wsFrame struct {
	Session string          `json:"session"`
	Frame   json.RawMessage `json:"frame"`
}

func renderSubject(session string) string {
	if session == "" {
		return natsadapter.SubjectRender + ".>"
	}
	return natsadapter.SessionSubject(natsadapter.SubjectRender, session)
}

// WebSocketHandler returns a handler that upgrades to WebSocket and relays
// map-session render frames from NATS to connected clients.
// Clients send JSON: {"action":"subscribe","session":"<id>"}. Every client
// starts subscribed to all sessions.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		log := slog.Default().With("remote", remoteAddr)
		log.Info("ws client connected")
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		// Helper: thread-safe write
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		relay := func(msg *nats.Msg) {
			_ = writeJSON(wsFrame{
				Session: natsadapter.SessionFromSubject(msg.Subject),
				Frame:   json.RawMessage(msg.Data),
			})
		}

		if nc == nil {
			_ = writeJSON(map[string]string{"error": "event bus not available"})
			return
		}

		defaultSubject := renderSubject("")
		sub, err := nc.Subscribe(defaultSubject, relay)
		if err != nil {
			log.Error("ws default subscribe failed", "error", err)
			return
		}
		subs[defaultSubject] = sub

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		// Read client messages for subscribe/unsubscribe
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}
			if m.Session != "" && !natsadapter.ValidSessionID(m.Session) {
				_ = writeJSON(map[string]string{"error": "invalid session id"})
				continue
			}
			subject := renderSubject(m.Session)

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				// A session-scoped subscription replaces the catch-all one.
				if m.Session != "" {
					if all, ok := subs[defaultSubject]; ok {
						_ = all.Unsubscribe()
						delete(subs, defaultSubject)
					}
				}
				s, err := nc.Subscribe(subject, relay)
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		// Cleanup
		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		log.Info("ws client disconnected")
	}
}

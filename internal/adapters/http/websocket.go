package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/polysync/internal/adapters/nats"
	"github.com/samirrijal/polysync/internal/adapters/widget"
	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/usecases"
	"github.com/samirrijal/polysync/internal/pkg/metrics"
)

const pingInterval = 30 * time.Second

// Message types of the edit protocol.
const (
	msgAttach   = "attach"
	msgSetAt    = "set_at"
	msgInsertAt = "insert_at"
	msgRemoveAt = "remove_at"
	msgDragEnd  = "drag_end"
	msgMouseUp  = "mouse_up"
	msgDetach   = "detach"

	msgFrame = "frame"
	msgError = "error"
)

var errNoGeometry = errors.New("no geometry attached on this connection")

// clientMessage is one widget event. Index and Vertex apply to the vertex
// mutations, Path to attach and drag_end.
type clientMessage struct {
	Type   string          `json:"type"`
	Index  int             `json:"index"`
	Vertex *domain.Vertex  `json:"vertex,omitempty"`
	Path   []domain.Vertex `json:"path,omitempty"`
}

type serverMessage struct {
	Type  string               `json:"type"`
	Frame *domain.OverlayFrame `json:"frame,omitempty"`
	Error string               `json:"error,omitempty"`
}

// wsWriter serialises writes to one connection.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) json(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return w.raw(data)
}

func (w *wsWriter) raw(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *wsWriter) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.PingMessage, nil)
}

// keepAlive pings until done is closed or a write fails.
func (w *wsWriter) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := w.ping(); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// EditorHandler speaks the edit protocol for one session. The connection
// plays the widget: it attaches a shape, reports vertex mutations and
// pointer/drag releases, and receives a render frame after every change.
func EditorHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		w := &wsWriter{conn: c}
		sessionID := c.Params("id")
		logger := slog.Default().With("session_id", sessionID, "remote", c.RemoteAddr().String())

		s, err := deps.Sessions.Get(sessionID)
		if err != nil {
			_ = w.json(serverMessage{Type: msgError, Error: err.Error()})
			return
		}
		logger.Info("editor connected")

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})

		// The session loop never waits on this socket.
		latest := newSnapshotMailbox()
		stopObserving := s.Observe(latest.push)
		latest.push(s.Snapshot())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			w.keepAlive(done)
		}()
		go func() {
			defer wg.Done()
			var (
				sent    bool
				version uint64
			)
			for {
				select {
				case snap := <-latest.ch:
					// The initial snapshot can arrive after a newer one.
					if sent && snap.Version <= version {
						continue
					}
					sent, version = true, snap.Version
					frame, err := deps.Overlay.Render(ctx, sessionID, snap, nil)
					if err != nil {
						_ = w.json(serverMessage{Type: msgError, Error: err.Error()})
						continue
					}
					if err := w.json(serverMessage{Type: msgFrame, Frame: &frame}); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		e := &editorConn{session: s}
		for {
			_, data, err := c.ReadMessage()
			if err != nil {
				break
			}
			var m clientMessage
			if err := json.Unmarshal(data, &m); err != nil {
				_ = w.json(serverMessage{Type: msgError, Error: "invalid JSON"})
				continue
			}
			if err := e.handle(m); err != nil {
				logger.Debug("edit rejected", "type", m.Type, "error", err)
				_ = w.json(serverMessage{Type: msgError, Error: err.Error()})
				if errors.Is(err, usecases.ErrSessionClosed) {
					break
				}
			}
		}

		// Cleanup
		stopObserving()
		e.release()
		close(done)
		cancel()
		wg.Wait()
		logger.Info("editor disconnected")
	}
}

// snapshotMailbox holds at most one pending snapshot: the newest pushed.
type snapshotMailbox struct {
	ch chan domain.PathSnapshot
}

func newSnapshotMailbox() *snapshotMailbox {
	return &snapshotMailbox{ch: make(chan domain.PathSnapshot, 1)}
}

// push never blocks. A pending snapshot with a higher version is kept.
func (m *snapshotMailbox) push(snap domain.PathSnapshot) {
	for {
		select {
		case m.ch <- snap:
			return
		default:
		}
		select {
		case old := <-m.ch:
			if old.Version > snap.Version {
				snap = old
			}
		default:
		}
	}
}

// editorConn is the widget side of one editor connection.
type editorConn struct {
	session  *usecases.Session
	geometry *widget.Geometry
}

func (e *editorConn) handle(m clientMessage) error {
	switch m.Type {
	case msgAttach:
		if err := widget.ValidatePath(m.Path); err != nil {
			return fmt.Errorf("attach %w", err)
		}
		g := widget.NewGeometry(m.Path)
		if err := e.session.Attach(g); err != nil {
			return err
		}
		e.geometry = g
		return nil

	case msgSetAt, msgInsertAt:
		if e.geometry == nil {
			return errNoGeometry
		}
		if m.Vertex == nil {
			return errors.New(m.Type + " requires a vertex")
		}
		g, v := e.geometry, *m.Vertex
		return e.session.Deliver(func() error {
			if m.Type == msgSetAt {
				return g.SetAt(m.Index, v)
			}
			return g.InsertAt(m.Index, v)
		})

	case msgRemoveAt:
		if e.geometry == nil {
			return errNoGeometry
		}
		g := e.geometry
		return e.session.Deliver(func() error { return g.RemoveAt(m.Index) })

	case msgDragEnd:
		if e.geometry != nil && m.Path != nil {
			g := e.geometry
			if err := e.session.Deliver(func() error { return g.Reset(m.Path) }); err != nil {
				return err
			}
		}
		_, err := e.session.Trigger(domain.TriggerDragEnd)
		return err

	case msgMouseUp:
		_, err := e.session.Trigger(domain.TriggerMouseUp)
		return err

	case msgDetach:
		if e.geometry == nil {
			return errNoGeometry
		}
		err := e.session.DetachHandle(e.geometry)
		e.geometry.Release()
		e.geometry = nil
		return err

	default:
		return errors.New("unknown message type: " + m.Type)
	}
}

// release detaches the connection's shape when the widget goes away.
func (e *editorConn) release() {
	if e.geometry == nil {
		return
	}
	_ = e.session.DetachHandle(e.geometry)
	e.geometry.Release()
	e.geometry = nil
}

// WatchHandler relays path updates published on NATS to read-only viewers.
// ?session=<id> limits the feed to one session.
func WatchHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		w := &wsWriter{conn: c}

		session := c.Query("session")
		if session != "" {
			if _, err := uuid.Parse(session); err != nil {
				_ = w.json(serverMessage{Type: msgError, Error: "invalid session id"})
				return
			}
		}
		if nc == nil {
			_ = w.json(serverMessage{Type: msgError, Error: "path updates unavailable"})
			return
		}
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		subject := natsadapter.PathSubject(session)
		sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
			_ = w.raw(msg.Data)
		})
		if err != nil {
			slog.Warn("ws watch subscribe", "subject", subject, "error", err)
			_ = w.json(serverMessage{Type: msgError, Error: "subscribe failed"})
			return
		}
		defer func() { _ = sub.Unsubscribe() }()

		done := make(chan struct{})
		defer close(done)
		go w.keepAlive(done)

		// Viewers send nothing; reading detects the close.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}
}

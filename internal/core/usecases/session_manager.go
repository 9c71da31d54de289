package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/ports"
	"github.com/samirrijal/polysync/internal/pkg/metrics"
)

// ErrSessionNotFound is returned for unknown session IDs.
var ErrSessionNotFound = errors.New("session not found")

// SessionManagerOptions configures a SessionManager.
type SessionManagerOptions struct {
	QueueSize int
	Publisher ports.EventPublisher // optional
	Logger    *slog.Logger
}

// SessionManager creates and indexes edit sessions.
type SessionManager struct {
	ctx       context.Context
	initial   domain.Path
	queueSize int
	publisher ports.EventPublisher
	logger    *slog.Logger
	newID     func() string

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a manager whose sessions start from initial.
// Sessions live at most as long as ctx.
func NewSessionManager(ctx context.Context, initial domain.Path, opts SessionManagerOptions) *SessionManager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		ctx:       ctx,
		initial:   initial,
		queueSize: opts.QueueSize,
		publisher: opts.Publisher,
		logger:    logger,
		newID:     uuid.NewString,
		sessions:  make(map[string]*Session),
	}
}

// Create starts a new session seeded with the configured initial path.
func (m *SessionManager) Create() *Session {
	id := m.newID()
	s := StartSession(m.ctx, id, m.initial, SessionOptions{
		QueueSize: m.queueSize,
		Logger:    m.logger,
	})

	if m.publisher != nil {
		s.Observe(func(snap domain.PathSnapshot) {
			update := domain.PathUpdate{
				SessionID: id,
				Path:      snap.Path,
				Version:   snap.Version,
				UpdatedAt: snap.UpdatedAt,
			}
			if err := m.publisher.PublishPathUpdated(m.ctx, update); err != nil {
				m.logger.Warn("publish path update failed", "session_id", id, "error", err)
			}
		})
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()
	metrics.ActiveSessions.Inc()

	m.logger.Info("session created", "session_id", id, "vertices", m.initial.Len())
	return s
}

// Get returns the session with the given ID.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Close stops and forgets one session.
func (m *SessionManager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	s.Close()
	metrics.ActiveSessions.Dec()
	m.logger.Info("session closed", "session_id", id)
	return nil
}

// CloseAll stops every session.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
		metrics.ActiveSessions.Dec()
	}
}

// List returns the open sessions, oldest first.
func (m *SessionManager) List() []*Session {
	m.mu.RLock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out
}

// Len returns the number of open sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

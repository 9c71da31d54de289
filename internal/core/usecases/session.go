package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/ports"
)

// ErrSessionClosed is returned for events submitted to a closed session.
var ErrSessionClosed = errors.New("session closed")

const defaultQueueSize = 64

// SessionOptions tunes a Session.
type SessionOptions struct {
	QueueSize int
	Logger    *slog.Logger
}

// Session is one editable polygon and its synchronization machinery. Every
// event (lifecycle notifications, widget-side geometry mutations, pointer and
// drag triggers) is queued and handled one at a time, in delivery order, on
// the session's own goroutine. Only Path, Snapshot and Observe may be used
// from anywhere.
type Session struct {
	id        string
	createdAt time.Time

	state    *PathState
	registry *SubscriptionRegistry
	binding  *BindingController
	sync     *EditSynchronizer

	queue     chan func()
	done      chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once
	logger    *slog.Logger
}

// StartSession creates a session seeded with initial and starts its event
// loop. The loop stops when ctx is cancelled or Close is called.
func StartSession(ctx context.Context, id string, initial domain.Path, opts SessionOptions) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("session_id", id)
	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}

	s := &Session{
		id:        id,
		createdAt: time.Now(),
		state:     NewPathState(initial),
		registry:  NewSubscriptionRegistry(logger),
		queue:     make(chan func(), size),
		done:      make(chan struct{}),
		logger:    logger,
	}
	s.binding = NewBindingController(s.registry, func(t domain.EditTrigger) {
		s.sync.OnMutationEvent(t)
	}, logger)
	s.sync = NewEditSynchronizer(s.state, s.binding, logger)

	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was started.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	for {
		select {
		case <-ctx.Done():
			if s.binding.State() == Attached {
				_ = s.binding.OnDetach()
			}
			s.logger.Debug("session loop stopped")
			return
		case fn := <-s.queue:
			fn()
		}
	}
}

// call enqueues fn and waits for its result. It must not be used from inside
// the event loop (observers, mutation listeners).
func (s *Session) call(fn func() error) error {
	reply := make(chan error, 1)
	select {
	case s.queue <- func() { reply <- fn() }:
	case <-s.done:
		return ErrSessionClosed
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrSessionClosed
	}
}

// Attach binds the widget's geometry for this session's shape.
func (s *Session) Attach(h ports.GeometryHandle) error {
	return s.call(func() error { return s.binding.OnAttach(h) })
}

// Detach unbinds the current geometry.
func (s *Session) Detach() error {
	return s.call(s.binding.OnDetach)
}

// DetachHandle unbinds h if it is the geometry currently bound, so one
// widget connection cannot tear down another's shape.
func (s *Session) DetachHandle(h ports.GeometryHandle) error {
	return s.call(func() error {
		if s.binding.State() != Attached || s.binding.CurrentHandle() != h {
			return ErrNotAttached
		}
		return s.binding.OnDetach()
	})
}

// Trigger runs the edit synchronizer for a widget event that is not a
// geometry mutation (drag released, pointer released). applied is false when
// no geometry was bound.
func (s *Session) Trigger(t domain.EditTrigger) (applied bool, err error) {
	err = s.call(func() error {
		applied = s.sync.OnMutationEvent(t)
		return nil
	})
	return applied, err
}

// Deliver runs a widget-side callback, typically a mutation of the bound
// geometry, on the event loop. Listeners it fires run inside the same event.
func (s *Session) Deliver(fn func() error) error {
	return s.call(fn)
}

// Info reports the session's lifecycle state.
func (s *Session) Info() (domain.SessionInfo, error) {
	var info domain.SessionInfo
	err := s.call(func() error {
		snap := s.state.Load()
		info = domain.SessionInfo{
			ID:                  s.id,
			State:               s.binding.State().String(),
			ActiveSubscriptions: s.binding.ActiveSubscriptions(),
			Version:             snap.Version,
			Vertices:            snap.Path.Len(),
			CreatedAt:           s.createdAt,
		}
		return nil
	})
	return info, err
}

// Snapshot returns the current path and version. Safe from any goroutine.
func (s *Session) Snapshot() domain.PathSnapshot {
	return s.state.Load()
}

// Path returns the current path. Safe from any goroutine.
func (s *Session) Path() domain.Path {
	return s.state.Path()
}

// Observe registers fn to run on the event loop after every path replace.
// fn must not block and must not call back into the session.
func (s *Session) Observe(fn PathObserver) (cancel func()) {
	return s.state.Observe(fn)
}

// Done is closed once the event loop has stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close stops the event loop, detaching any bound geometry, and waits for it
// to finish.
func (s *Session) Close() {
	s.closeOnce.Do(s.cancel)
	<-s.done
}

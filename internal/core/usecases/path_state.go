package usecases

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samirrijal/polysync/internal/core/domain"
)

// PathObserver is called after every replace with the new snapshot.
type PathObserver func(snap domain.PathSnapshot)

// PathState is the application-owned path of one editable polygon.
// Replace swaps the whole snapshot atomically, so Load never observes a
// partially written path regardless of the calling goroutine.
type PathState struct {
	current atomic.Pointer[domain.PathSnapshot]

	mu        sync.Mutex
	observers map[uint64]PathObserver
	nextID    uint64
	now       func() time.Time
}

// NewPathState seeds the state with the initial path at version 0.
func NewPathState(initial domain.Path) *PathState {
	s := &PathState{
		observers: make(map[uint64]PathObserver),
		now:       time.Now,
	}
	s.current.Store(&domain.PathSnapshot{Path: initial, UpdatedAt: s.now()})
	return s
}

// Load returns the current snapshot.
func (s *PathState) Load() domain.PathSnapshot {
	return *s.current.Load()
}

// Path returns the current path.
func (s *PathState) Path() domain.Path {
	return s.current.Load().Path
}

// Replace installs p as the new path and notifies observers in registration
// order. It is only called from a session's event loop.
func (s *PathState) Replace(p domain.Path) domain.PathSnapshot {
	prev := s.current.Load()
	next := &domain.PathSnapshot{
		Path:      p,
		Version:   prev.Version + 1,
		UpdatedAt: s.now(),
	}
	s.current.Store(next)

	for _, fn := range s.snapshotObservers() {
		fn(*next)
	}
	return *next
}

// Observe registers fn for future replaces and returns a function that
// removes it.
func (s *PathState) Observe(fn PathObserver) (cancel func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

func (s *PathState) snapshotObservers() []PathObserver {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint64, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	fns := make([]PathObserver, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.observers[id])
	}
	return fns
}

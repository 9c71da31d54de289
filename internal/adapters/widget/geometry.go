// Package widget holds the server-side mirror of the map widget's editable
// polygon. The edit protocol applies the widget's reported mutations here and
// the core subscribes to it through ports.GeometryHandle.
package widget

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/ports"
)

var (
	ErrIndexOutOfRange = errors.New("vertex index out of range")
	ErrReleased        = errors.New("geometry released")
	ErrInvalidVertex   = errors.New("invalid vertex")
)

type listener struct {
	class   domain.MutationClass
	handler ports.MutationHandler
}

// Geometry is a mutable vertex array with per-class listeners.
type Geometry struct {
	mu        sync.Mutex
	vertices  []domain.Vertex
	listeners map[uint64]listener
	nextID    uint64
	released  bool
}

// ValidatePath reports the first vertex outside valid lat/lng ranges.
func ValidatePath(vs []domain.Vertex) error {
	for i, v := range vs {
		if !v.Valid() {
			return fmt.Errorf("vertex %d: %w", i, ErrInvalidVertex)
		}
	}
	return nil
}

// NewGeometry creates a geometry holding a copy of vs.
func NewGeometry(vs []domain.Vertex) *Geometry {
	g := &Geometry{listeners: make(map[uint64]listener)}
	g.vertices = append(g.vertices, vs...)
	return g
}

// Snapshot returns a copy of the current vertices.
func (g *Geometry) Snapshot() []domain.Vertex {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.Vertex, len(g.vertices))
	copy(out, g.vertices)
	return out
}

// Len returns the vertex count.
func (g *Geometry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.vertices)
}

// Subscribe registers handler for class.
func (g *Geometry) Subscribe(class domain.MutationClass, handler ports.MutationHandler) (ports.Subscription, error) {
	if handler == nil {
		return nil, errors.New("nil handler")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return nil, ErrReleased
	}
	id := g.nextID
	g.nextID++
	g.listeners[id] = listener{class: class, handler: handler}
	return &subscription{g: g, id: id}, nil
}

// ListenerCount returns the number of registered listeners.
func (g *Geometry) ListenerCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.listeners)
}

// SetAt replaces the vertex at i and fires set_at.
func (g *Geometry) SetAt(i int, v domain.Vertex) error {
	if !v.Valid() {
		return fmt.Errorf("set_at %d: %w", i, ErrInvalidVertex)
	}
	g.mu.Lock()
	if i < 0 || i >= len(g.vertices) {
		g.mu.Unlock()
		return fmt.Errorf("set_at %d: %w", i, ErrIndexOutOfRange)
	}
	g.vertices[i] = v
	handlers := g.handlersLocked(domain.VertexReplaced)
	g.mu.Unlock()

	fire(handlers, domain.VertexReplaced, i)
	return nil
}

// InsertAt inserts v before position i (i == Len appends) and fires insert_at.
func (g *Geometry) InsertAt(i int, v domain.Vertex) error {
	if !v.Valid() {
		return fmt.Errorf("insert_at %d: %w", i, ErrInvalidVertex)
	}
	g.mu.Lock()
	if i < 0 || i > len(g.vertices) {
		g.mu.Unlock()
		return fmt.Errorf("insert_at %d: %w", i, ErrIndexOutOfRange)
	}
	g.vertices = append(g.vertices, domain.Vertex{})
	copy(g.vertices[i+1:], g.vertices[i:])
	g.vertices[i] = v
	handlers := g.handlersLocked(domain.VertexInserted)
	g.mu.Unlock()

	fire(handlers, domain.VertexInserted, i)
	return nil
}

// RemoveAt deletes the vertex at i and fires remove_at.
func (g *Geometry) RemoveAt(i int) error {
	g.mu.Lock()
	if i < 0 || i >= len(g.vertices) {
		g.mu.Unlock()
		return fmt.Errorf("remove_at %d: %w", i, ErrIndexOutOfRange)
	}
	g.vertices = append(g.vertices[:i], g.vertices[i+1:]...)
	handlers := g.handlersLocked(domain.VertexRemoved)
	g.mu.Unlock()

	fire(handlers, domain.VertexRemoved, i)
	return nil
}

// Reset replaces every vertex without firing any listener. A whole-shape
// drag moves all vertices at once and settles through drag_end instead.
func (g *Geometry) Reset(vs []domain.Vertex) error {
	if err := ValidatePath(vs); err != nil {
		return fmt.Errorf("reset %w", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.vertices = append(g.vertices[:0:0], vs...)
	return nil
}

// Release marks the shape destroyed. Later Subscribe calls fail; existing
// listeners are dropped.
func (g *Geometry) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.released = true
	clear(g.listeners)
}

// handlersLocked returns the class's handlers in registration order.
func (g *Geometry) handlersLocked(class domain.MutationClass) []ports.MutationHandler {
	ids := make([]uint64, 0, len(g.listeners))
	for id, l := range g.listeners {
		if l.class == class {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	out := make([]ports.MutationHandler, len(ids))
	for i, id := range ids {
		out[i] = g.listeners[id].handler
	}
	return out
}

// fire runs outside the lock so handlers may read the geometry.
func fire(handlers []ports.MutationHandler, class domain.MutationClass, i int) {
	for _, h := range handlers {
		h(class, i)
	}
}

type subscription struct {
	g    *Geometry
	id   uint64
	once sync.Once
}

// Cancel removes the listener. Repeated calls are no-ops.
func (s *subscription) Cancel() error {
	s.once.Do(func() {
		s.g.mu.Lock()
		delete(s.g.listeners, s.id)
		s.g.mu.Unlock()
	})
	return nil
}

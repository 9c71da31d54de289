package usecases_test

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/ports"
)

var square = []domain.Vertex{
	{Lat: 40.7308, Lng: -73.9973},
	{Lat: 40.7282, Lng: -73.9942},
	{Lat: 40.7260, Lng: -73.9980},
	{Lat: 40.7290, Lng: -74.0010},
}

var errRefused = errors.New("refused")

// --- Fake GeometryHandle ---

type fakeHandle struct {
	mu        sync.Mutex
	vertices  []domain.Vertex
	listeners map[int]fakeListener
	nextID    int
	failOn    domain.MutationClass
	cancelErr error
}

type fakeListener struct {
	class   domain.MutationClass
	handler ports.MutationHandler
}

func newFakeHandle(vs []domain.Vertex) *fakeHandle {
	return &fakeHandle{
		vertices:  append([]domain.Vertex(nil), vs...),
		listeners: make(map[int]fakeListener),
	}
}

func (h *fakeHandle) Snapshot() []domain.Vertex {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Vertex(nil), h.vertices...)
}

func (h *fakeHandle) Subscribe(class domain.MutationClass, handler ports.MutationHandler) (ports.Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if class == h.failOn {
		return nil, errRefused
	}
	id := h.nextID
	h.nextID++
	h.listeners[id] = fakeListener{class: class, handler: handler}
	return &fakeSub{h: h, id: id}, nil
}

func (h *fakeHandle) active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

func (h *fakeHandle) classes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for _, l := range h.listeners {
		out = append(out, string(l.class))
	}
	sort.Strings(out)
	return out
}

func (h *fakeHandle) setVertices(vs []domain.Vertex) {
	h.mu.Lock()
	h.vertices = append([]domain.Vertex(nil), vs...)
	h.mu.Unlock()
}

// mutate edits the vertices and fires class listeners, like the widget does.
func (h *fakeHandle) mutate(class domain.MutationClass, index int, edit func([]domain.Vertex) []domain.Vertex) {
	h.mu.Lock()
	h.vertices = edit(h.vertices)
	var handlers []ports.MutationHandler
	for _, l := range h.listeners {
		if l.class == class {
			handlers = append(handlers, l.handler)
		}
	}
	h.mu.Unlock()
	for _, fn := range handlers {
		fn(class, index)
	}
}

type fakeSub struct {
	h  *fakeHandle
	id int
}

func (s *fakeSub) Cancel() error {
	s.h.mu.Lock()
	defer s.h.mu.Unlock()
	delete(s.h.listeners, s.id)
	return s.h.cancelErr
}

func removeAt(i int) func([]domain.Vertex) []domain.Vertex {
	return func(vs []domain.Vertex) []domain.Vertex {
		return append(vs[:i:i], vs[i+1:]...)
	}
}

func setAt(i int, v domain.Vertex) func([]domain.Vertex) []domain.Vertex {
	return func(vs []domain.Vertex) []domain.Vertex {
		out := append([]domain.Vertex(nil), vs...)
		out[i] = v
		return out
	}
}

func insertAt(i int, v domain.Vertex) func([]domain.Vertex) []domain.Vertex {
	return func(vs []domain.Vertex) []domain.Vertex {
		out := append([]domain.Vertex(nil), vs[:i]...)
		out = append(out, v)
		return append(out, vs[i:]...)
	}
}

// --- Mock BoundaryRepository ---

type mockBoundaryRepo struct {
	listFn func(ctx context.Context) ([]domain.BoundaryFeature, error)
}

func (m *mockBoundaryRepo) List(ctx context.Context) ([]domain.BoundaryFeature, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

// --- Mock CacheService ---

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMockCache() *mockCache {
	return &mockCache{data: make(map[string][]byte)}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return nil, errors.New("miss")
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.sets++
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu      sync.Mutex
	updates []domain.PathUpdate
	err     error
}

func (m *mockPublisher) PublishPathUpdated(ctx context.Context, u domain.PathUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, u)
	return m.err
}

func (m *mockPublisher) published() []domain.PathUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.PathUpdate(nil), m.updates...)
}

package ports

import "github.com/samirrijal/polysync/internal/core/domain"

// MutationHandler receives one mutation-class event. index is the vertex
// position the widget reported; the synchronizer does not consume it.
type MutationHandler func(class domain.MutationClass, index int)

// Subscription is a cancellable registration on a GeometryHandle.
// Cancel must be safe to call more than once.
type Subscription interface {
	Cancel() error
}

// GeometryHandle is the widget-owned, mutable geometry of one editable shape.
// The core only reads snapshots and registers listeners; it never mutates it.
type GeometryHandle interface {
	// Snapshot returns the current vertex sequence in order.
	Snapshot() []domain.Vertex
	// Subscribe registers handler for one mutation class.
	Subscribe(class domain.MutationClass, handler MutationHandler) (Subscription, error)
}

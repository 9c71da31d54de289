package usecases_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/usecases"
)

// newBinding wires the three core components the way a session does.
func newBinding(initial []domain.Vertex) (*usecases.BindingController, *usecases.EditSynchronizer, *usecases.PathState) {
	state := usecases.NewPathState(domain.NewPath(initial))
	var syncer *usecases.EditSynchronizer
	binding := usecases.NewBindingController(usecases.NewSubscriptionRegistry(nil), func(t domain.EditTrigger) {
		syncer.OnMutationEvent(t)
	}, nil)
	syncer = usecases.NewEditSynchronizer(state, binding, nil)
	return binding, syncer, state
}

func TestBindingController_Lifecycle(t *testing.T) {
	h := newFakeHandle(square)
	binding, _, _ := newBinding(square)
	assert.Equal(t, usecases.Detached, binding.State())
	assert.Nil(t, binding.CurrentHandle())

	require.NoError(t, binding.OnAttach(h))
	assert.Equal(t, usecases.Attached, binding.State())
	assert.Equal(t, 3, binding.ActiveSubscriptions())
	assert.Equal(t, 3, h.active())
	assert.Equal(t, "attached", binding.State().String())

	require.NoError(t, binding.OnDetach())
	assert.Equal(t, usecases.Detached, binding.State())
	assert.Equal(t, 0, binding.ActiveSubscriptions())
	assert.Equal(t, 0, h.active())
	assert.Nil(t, binding.CurrentHandle())
}

func TestBindingController_ReattachAfterDetach(t *testing.T) {
	first, second := newFakeHandle(square), newFakeHandle(square[:3])
	binding, _, _ := newBinding(square)

	require.NoError(t, binding.OnAttach(first))
	require.NoError(t, binding.OnDetach())
	require.NoError(t, binding.OnAttach(second))

	assert.Equal(t, 0, first.active())
	assert.Equal(t, 3, second.active())
	assert.Same(t, second, binding.CurrentHandle())
}

func TestBindingController_SecondAttachRejected(t *testing.T) {
	first, second := newFakeHandle(square), newFakeHandle(square[:3])
	binding, _, _ := newBinding(square)

	require.NoError(t, binding.OnAttach(first))
	err := binding.OnAttach(second)
	assert.ErrorIs(t, err, usecases.ErrAlreadyAttached)

	assert.Equal(t, 3, first.active())
	assert.Equal(t, 0, second.active())
	assert.Same(t, first, binding.CurrentHandle())
	assert.Equal(t, 3, binding.ActiveSubscriptions())
}

func TestBindingController_Misuse(t *testing.T) {
	binding, _, _ := newBinding(square)

	assert.ErrorIs(t, binding.OnDetach(), usecases.ErrNotAttached)
	assert.ErrorIs(t, binding.OnAttach(nil), usecases.ErrNilGeometry)
	assert.Equal(t, usecases.Detached, binding.State())
}

func TestBindingController_SubscribeFailureLeavesDetached(t *testing.T) {
	h := newFakeHandle(square)
	h.failOn = domain.VertexInserted
	binding, _, _ := newBinding(square)

	err := binding.OnAttach(h)
	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, usecases.Detached, binding.State())
	assert.Equal(t, 0, h.active())
}

func TestEditSynchronizer_MirrorsGeometry(t *testing.T) {
	h := newFakeHandle(square)
	binding, _, state := newBinding(square)
	require.NoError(t, binding.OnAttach(h))

	moved := domain.Vertex{Lat: 40.7310, Lng: -73.9990}
	h.mutate(domain.VertexReplaced, 1, func(vs []domain.Vertex) []domain.Vertex {
		vs[1] = moved
		return vs
	})
	assert.Equal(t, h.Snapshot(), state.Path().Vertices())
	assert.Equal(t, uint64(1), state.Load().Version)

	h.mutate(domain.VertexInserted, 4, insertAt(4, square[0]))
	assert.Equal(t, h.Snapshot(), state.Path().Vertices())
	assert.Equal(t, 5, state.Path().Len())
}

func TestEditSynchronizer_StaleEventIsNoop(t *testing.T) {
	_, syncer, state := newBinding(square)
	before := state.Load()

	assert.False(t, syncer.OnMutationEvent(domain.TriggerMouseUp))
	assert.False(t, syncer.OnMutationEvent(domain.TriggerDragEnd))

	after := state.Load()
	assert.Equal(t, before.Version, after.Version)
	assert.True(t, before.Path.Equal(after.Path))
}

func TestEditSynchronizer_UnchangedGeometryStillReplaces(t *testing.T) {
	h := newFakeHandle(square)
	binding, syncer, state := newBinding(square)
	require.NoError(t, binding.OnAttach(h))

	assert.True(t, syncer.OnMutationEvent(domain.TriggerMouseUp))
	assert.Equal(t, uint64(1), state.Load().Version)
	assert.Equal(t, square, state.Path().Vertices())
}

func TestEditSynchronizer_DragEndPicksUpWholeShapeMove(t *testing.T) {
	h := newFakeHandle(square)
	binding, syncer, state := newBinding(square)
	require.NoError(t, binding.OnAttach(h))

	shifted := make([]domain.Vertex, len(square))
	for i, v := range square {
		shifted[i] = domain.Vertex{Lat: v.Lat + 0.01, Lng: v.Lng + 0.01}
	}
	h.setVertices(shifted)
	assert.Equal(t, uint64(0), state.Load().Version)

	assert.True(t, syncer.OnMutationEvent(domain.TriggerDragEnd))
	assert.Equal(t, shifted, state.Path().Vertices())
}

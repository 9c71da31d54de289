package usecases_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/usecases"
)

func TestSubscriptionRegistry_AttachDetach(t *testing.T) {
	h := newFakeHandle(square)
	reg := usecases.NewSubscriptionRegistry(nil)

	require.NoError(t, reg.Attach(h, func(domain.EditTrigger) {}))
	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, []string{"insert_at", "remove_at", "set_at"}, h.classes())

	reg.DetachAll()
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, h.active())

	// Second teardown is a no-op.
	reg.DetachAll()
	assert.Equal(t, 0, reg.Len())
}

func TestSubscriptionRegistry_AttachNilHandle(t *testing.T) {
	reg := usecases.NewSubscriptionRegistry(nil)
	require.NoError(t, reg.Attach(nil, func(domain.EditTrigger) {}))
	assert.Equal(t, 0, reg.Len())

	var typedNil *fakeHandle
	require.NoError(t, reg.Attach(typedNil, func(domain.EditTrigger) {}))
	assert.Equal(t, 0, reg.Len())
}

func TestSubscriptionRegistry_HandlerReceivesClassAsTrigger(t *testing.T) {
	h := newFakeHandle(square)
	reg := usecases.NewSubscriptionRegistry(nil)
	var got []domain.EditTrigger
	require.NoError(t, reg.Attach(h, func(tr domain.EditTrigger) { got = append(got, tr) }))

	h.mutate(domain.VertexRemoved, 2, removeAt(2))
	h.mutate(domain.VertexInserted, 0, insertAt(0, square[2]))
	assert.Equal(t, []domain.EditTrigger{domain.TriggerRemoveAt, domain.TriggerInsertAt}, got)
}

func TestSubscriptionRegistry_PartialFailureRollsBack(t *testing.T) {
	h := newFakeHandle(square)
	h.failOn = domain.VertexRemoved
	reg := usecases.NewSubscriptionRegistry(nil)

	err := reg.Attach(h, func(domain.EditTrigger) {})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errRefused))
	assert.Equal(t, 0, reg.Len())
	assert.Equal(t, 0, h.active())
}

func TestSubscriptionRegistry_CancelErrorsIgnored(t *testing.T) {
	h := newFakeHandle(square)
	h.cancelErr = errors.New("already gone")
	reg := usecases.NewSubscriptionRegistry(nil)

	require.NoError(t, reg.Attach(h, func(domain.EditTrigger) {}))
	reg.DetachAll()
	assert.Equal(t, 0, reg.Len())
}

package usecases_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/polysync/internal/core/domain"
	"github.com/samirrijal/polysync/internal/core/usecases"
)

// --- Mock ReferenceSource ---

type mockRefs struct {
	allFn    func() []domain.BoundaryFeature
	withinFn func(ctx context.Context, b domain.Bounds) ([]domain.BoundaryFeature, error)
}

func (m *mockRefs) All() []domain.BoundaryFeature {
	if m.allFn != nil {
		return m.allFn()
	}
	return nil
}

func (m *mockRefs) Within(ctx context.Context, b domain.Bounds) ([]domain.BoundaryFeature, error) {
	if m.withinFn != nil {
		return m.withinFn(ctx, b)
	}
	return nil, nil
}

var nyc = usecases.Viewport{Center: domain.Vertex{Lat: 40.730610, Lng: -73.935242}, Zoom: 12}

func TestOverlayService_Render(t *testing.T) {
	refs := &mockRefs{allFn: testBoundaries}
	svc := usecases.NewOverlayService(refs, nyc, nil)
	snap := domain.PathSnapshot{Path: domain.NewPath(square), Version: 7}

	frame, err := svc.Render(context.Background(), "s1", snap, nil)
	require.NoError(t, err)

	assert.Equal(t, "s1", frame.SessionID)
	assert.Equal(t, uint64(7), frame.Version)
	assert.Equal(t, nyc.Center, frame.Center)
	assert.Equal(t, 12, frame.Zoom)
	assert.True(t, frame.Editable.Editable)
	assert.True(t, frame.Editable.Draggable)
	assert.True(t, frame.Editable.Path.Equal(snap.Path))
	assert.Greater(t, frame.Editable.PerimeterMeters, 0.0)

	// The keyless and two-vertex features are skipped; the duplicate key is
	// the source's concern and is drawn.
	require.Len(t, frame.References, 3)
	assert.Equal(t, "11201", frame.References[0].Key)
	assert.Equal(t, "11101", frame.References[1].Key)
	assert.Equal(t, 2, frame.Skipped)
}

func TestOverlayService_RenderViewport(t *testing.T) {
	var asked domain.Bounds
	refs := &mockRefs{
		withinFn: func(ctx context.Context, b domain.Bounds) ([]domain.BoundaryFeature, error) {
			asked = b
			return testBoundaries()[:1], nil
		},
	}
	svc := usecases.NewOverlayService(refs, nyc, nil)
	bbox := &domain.Bounds{MinLat: 40.6, MinLng: -74.1, MaxLat: 40.8, MaxLng: -73.9}

	frame, err := svc.Render(context.Background(), "s1", domain.PathSnapshot{}, bbox)
	require.NoError(t, err)
	assert.Equal(t, *bbox, asked)
	require.Len(t, frame.References, 1)
	assert.Zero(t, frame.Editable.PerimeterMeters)
}

func TestOverlayService_RenderWithoutDataset(t *testing.T) {
	svc := usecases.NewOverlayService(nil, nyc, nil)

	frame, err := svc.Render(context.Background(), "", domain.PathSnapshot{Path: domain.NewPath(square)}, nil)
	require.NoError(t, err)
	assert.NotNil(t, frame.References)
	assert.Empty(t, frame.References)
}

func TestOverlayService_RenderWithBoundaryService(t *testing.T) {
	boundaries := loadedService(t, nil)
	svc := usecases.NewOverlayService(boundaries, nyc, nil)

	_, err := svc.Render(context.Background(), "", domain.PathSnapshot{}, &domain.Bounds{MinLat: 2, MaxLat: 1})
	assert.ErrorIs(t, err, usecases.ErrInvalidBounds)
}

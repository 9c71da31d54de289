package ports

import (
	"context"

	"github.com/samirrijal/polysync/internal/core/domain"
)

// BoundaryRepository supplies the reference polygon dataset.
type BoundaryRepository interface {
	List(ctx context.Context) ([]domain.BoundaryFeature, error)
}

// BoundaryWriter persists reference polygons. Only the import tooling writes.
type BoundaryWriter interface {
	UpsertBatch(ctx context.Context, features []domain.BoundaryFeature) error
}

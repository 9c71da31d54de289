package ports

import (
	"context"

	"github.com/samirrijal/polysync/internal/core/domain"
)

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishPathUpdated(ctx context.Context, update domain.PathUpdate) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribePathUpdates(ctx context.Context, sessionID string, handler func(ctx context.Context, update domain.PathUpdate) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

package port

import (
	"context"

	"github.com/mvribeiro/zapstore/internal/core/domain"
)

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)
}

type EventPublisher interface {
	// PublishOrderCreated hands an order-created fact to the notification
	// channel. Delivery is best-effort; the placement never depends on it.
	PublishOrderCreated(ctx context.Context, event domain.OrderCreatedEvent) error
}

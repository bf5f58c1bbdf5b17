package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type CacheRepository interface {
	// CachedStock returns the snapshots found in cache; misses are omitted
	CachedStock(ctx context.Context, productIDs []int64) (domain.StockLevels, error)

	// CacheStock stores snapshots, including unknown products
	CacheStock(ctx context.Context, snapshots []domain.StockSnapshot) error

	// SetIdempotency stores token under key, returns false if the key already exists
	SetIdempotency(ctx context.Context, key, token string) (bool, error)

	// ReleaseIdempotency deletes key only while it still holds token
	ReleaseIdempotency(ctx context.Context, key, token string) error

	// RecordFailedAttempt increments the failure count for an order reference and returns it
	RecordFailedAttempt(ctx context.Context, reference string) (int, error)

	// FailedAttempts returns the failure count for an order reference
	FailedAttempts(ctx context.Context, reference string) (int, error)
}

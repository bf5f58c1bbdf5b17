package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type InventoryLookup interface {
	// Lookup returns one snapshot per requested product; unknown products have a nil quantity
	Lookup(ctx context.Context, productIDs []int64) (domain.StockLevels, error)
}

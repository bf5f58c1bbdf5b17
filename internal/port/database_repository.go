package port

import (
	"context"

	"github.com/rl1809/storefront/internal/core/domain"
)

type DatabaseRepository interface {
	// CreateOrder persists an order and its lines in one transaction
	CreateOrder(ctx context.Context, sub domain.OrderSubmission) (domain.Order, error)

	// FindOrderByReference returns domain.ErrNotFound when no order carries the reference
	FindOrderByReference(ctx context.Context, reference string) (domain.Order, error)

	// MarkPaidIfPending flips a pending order to paid, returns false if it was not pending
	MarkPaidIfPending(ctx context.Context, reference string) (bool, error)

	// GetStock reads inventory rows for the given products
	GetStock(ctx context.Context, productIDs []int64) (map[int64]domain.Inventory, error)
}

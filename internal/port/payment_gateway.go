package port

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

type PaymentLinkRequest struct {
	Reference   string          `json:"reference"`
	OrderNumber string          `json:"order_number"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Customer    domain.Customer `json:"customer"`
	// Attempt is the 1-based submit attempt for Reference.
	Attempt int `json:"attempt"`
}

type PaymentGateway interface {
	// CreatePaymentLink returns the URL the customer is redirected to
	CreatePaymentLink(ctx context.Context, req PaymentLinkRequest) (string, error)
}

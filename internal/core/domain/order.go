package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// OrderLine is one variant selection of a cart line item.
type OrderLine struct {
	ProductID   int64             `json:"product_id"`
	ProductName string            `json:"product_name"`
	VariantID   *string           `json:"variant_id,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Quantity    int               `json:"quantity"`
	UnitPrice   decimal.Decimal   `json:"unit_price"`
	LineTotal   decimal.Decimal   `json:"line_total"`
}

// OrderSubmission is the payload sent to order creation.
type OrderSubmission struct {
	OrderNumber     string          `json:"order_number"`
	Reference       string          `json:"reference"`
	Customer        Customer        `json:"customer"`
	Lines           []OrderLine     `json:"lines"`
	ShippingAddress *AddressForm    `json:"shipping_address,omitempty"`
	BillingAddress  AddressForm     `json:"billing_address"`
	DeliveryOption  DeliveryOption  `json:"delivery_option"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	ShippingFee     decimal.Decimal `json:"shipping_fee"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"currency"`
	SubmittedAt     time.Time       `json:"submitted_at"`
}

type Order struct {
	ID            string
	OrderNumber   string
	Reference     string
	CustomerName  string
	CustomerEmail string
	PaymentStatus PaymentStatus
	TotalAmount   decimal.Decimal
	Currency      string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

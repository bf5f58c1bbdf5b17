package domain

import "github.com/shopspring/decimal"

type VariantSelection struct {
	VariantID  *string           `json:"variant_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Quantity   int               `json:"quantity"`
	UnitPrice  decimal.Decimal   `json:"unit_price"`
}

// Matches reports whether the selection is addressed by variantID. A nil
// variantID addresses a selection without a variant ID.
func (v VariantSelection) Matches(variantID *string) bool {
	if v.VariantID == nil || variantID == nil {
		return v.VariantID == nil && variantID == nil
	}
	return *v.VariantID == *variantID
}

func (v VariantSelection) LineTotal() decimal.Decimal {
	return v.UnitPrice.Mul(decimal.NewFromInt(int64(v.Quantity)))
}

// CartLineItem aggregates every variant selection of one product.
// TotalQuantity and TotalPrice are derived from Variants by Recompute.
type CartLineItem struct {
	ProductID      int64              `json:"product_id"`
	Name           string             `json:"name"`
	ReferencePrice decimal.Decimal    `json:"reference_price"`
	Variants       []VariantSelection `json:"variants"`
	TotalQuantity  int                `json:"total_quantity"`
	TotalPrice     decimal.Decimal    `json:"total_price"`
}

func (li *CartLineItem) Recompute() {
	qty := 0
	total := decimal.Zero
	for _, v := range li.Variants {
		qty += v.Quantity
		total = total.Add(v.LineTotal())
	}
	li.TotalQuantity = qty
	li.TotalPrice = total
}

// EffectivePrice is the price used by the low-price rule. Without an explicit
// reference price the first variant's unit price is used.
func (li CartLineItem) EffectivePrice() decimal.Decimal {
	if !li.ReferencePrice.IsZero() || len(li.Variants) == 0 {
		return li.ReferencePrice
	}
	return li.Variants[0].UnitPrice
}

func (li CartLineItem) VariantIndex(variantID *string) int {
	for i, v := range li.Variants {
		if v.Matches(variantID) {
			return i
		}
	}
	return -1
}

// Selection is a set of product IDs. The zero value selects the whole cart.
type Selection struct {
	ids map[int64]struct{}
}

func SelectAll() Selection {
	return Selection{}
}

func SelectProducts(ids ...int64) Selection {
	if len(ids) == 0 {
		return Selection{}
	}
	s := Selection{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s
}

func (s Selection) All() bool {
	return len(s.ids) == 0
}

func (s Selection) Includes(productID int64) bool {
	if s.All() {
		return true
	}
	_, ok := s.ids[productID]
	return ok
}

type SelectionSummary struct {
	ItemCount     int             `json:"item_count"`
	TotalQuantity int             `json:"total_quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
}

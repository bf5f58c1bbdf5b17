package service

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/rl1809/storefront/internal/core/domain"
)

// StockSource caps quantity increases. Products it does not know are uncapped.
type StockSource interface {
	StockFor(productID int64) (int, bool)
}

// Cart holds the line items of one session. The caller owns it; it is not
// safe for concurrent use.
type Cart struct {
	rules domain.Rules
	stock StockSource
	items []domain.CartLineItem
}

func NewCart(rules domain.Rules, stock StockSource) *Cart {
	return &Cart{rules: rules, stock: stock}
}

// Add merges a line item into the cart. Variants already present have their
// quantities summed.
func (c *Cart) Add(item domain.CartLineItem) {
	item = cloneLineItem(item)
	idx := c.index(item.ProductID)
	if idx < 0 {
		item.Recompute()
		c.items = append(c.items, item)
		return
	}

	li := &c.items[idx]
	for _, v := range item.Variants {
		if vi := li.VariantIndex(v.VariantID); vi >= 0 {
			li.Variants[vi].Quantity += v.Quantity
			continue
		}
		li.Variants = append(li.Variants, v)
	}
	li.Recompute()
}

func (c *Cart) Len() int {
	return len(c.items)
}

func (c *Cart) Items() []domain.CartLineItem {
	out := make([]domain.CartLineItem, len(c.items))
	for i, li := range c.items {
		out[i] = cloneLineItem(li)
	}
	return out
}

func (c *Cart) Item(productID int64) (domain.CartLineItem, bool) {
	idx := c.index(productID)
	if idx < 0 {
		return domain.CartLineItem{}, false
	}
	return cloneLineItem(c.items[idx]), true
}

// ChangeQuantity adds delta to the quantity of one variant selection.
func (c *Cart) ChangeQuantity(productID int64, variantID *string, delta int) (domain.CartLineItem, error) {
	idx, vi, err := c.locate(productID, variantID)
	if err != nil {
		return domain.CartLineItem{}, err
	}
	return c.apply(idx, vi, c.items[idx].Variants[vi].Quantity+delta)
}

// SetQuantity replaces the quantity of one variant selection.
func (c *Cart) SetQuantity(productID int64, variantID *string, value int) (domain.CartLineItem, error) {
	idx, vi, err := c.locate(productID, variantID)
	if err != nil {
		return domain.CartLineItem{}, err
	}
	return c.apply(idx, vi, value)
}

// SetQuantityInput is SetQuantity for raw form input. Non-numeric input
// counts as 1, or as the minimum quantity for low-priced products.
func (c *Cart) SetQuantityInput(productID int64, variantID *string, raw string) (domain.CartLineItem, error) {
	idx, _, err := c.locate(productID, variantID)
	if err != nil {
		return domain.CartLineItem{}, err
	}

	value, convErr := strconv.Atoi(strings.TrimSpace(raw))
	if convErr != nil {
		value = 1
		if c.rules.LowPriced(c.items[idx].EffectivePrice()) {
			value = c.rules.MinimumQuantity
		}
	}
	return c.SetQuantity(productID, variantID, value)
}

// RemoveItem drops every variant of a product.
func (c *Cart) RemoveItem(productID int64) error {
	idx := c.index(productID)
	if idx < 0 {
		return fmt.Errorf("%w: product %d is not in the cart", domain.ErrInvalidTarget, productID)
	}
	c.items = slices.Delete(c.items, idx, idx+1)
	return nil
}

func (c *Cart) Clear() {
	c.items = nil
}

// ComputeSelection totals the selected line items.
func (c *Cart) ComputeSelection(sel domain.Selection) domain.SelectionSummary {
	sum := domain.SelectionSummary{Subtotal: decimal.Zero}
	for _, li := range c.items {
		if !sel.Includes(li.ProductID) {
			continue
		}
		sum.ItemCount++
		sum.TotalQuantity += li.TotalQuantity
		sum.Subtotal = sum.Subtotal.Add(li.TotalPrice)
	}
	return sum
}

// CheckMinimums rejects a selection holding a low-priced variant below the
// minimum quantity. Zero quantities are not ordered and pass.
func (c *Cart) CheckMinimums(sel domain.Selection) error {
	for _, li := range c.items {
		if !sel.Includes(li.ProductID) || !c.rules.LowPriced(li.EffectivePrice()) {
			continue
		}
		for _, v := range li.Variants {
			if v.Quantity > 0 && v.Quantity < c.rules.MinimumQuantity {
				return &domain.MinimumQuantityError{
					ProductID:   li.ProductID,
					ProductName: li.Name,
					Minimum:     c.rules.MinimumQuantity,
				}
			}
		}
	}
	return nil
}

func (c *Cart) ComputeShippingFee(subtotal decimal.Decimal, option domain.DeliveryOption) decimal.Decimal {
	return c.rules.ShippingFee(subtotal, option)
}

// Lines flattens the selected line items into order lines. Variants with a
// zero quantity are skipped.
func (c *Cart) Lines(sel domain.Selection) []domain.OrderLine {
	var lines []domain.OrderLine
	for _, li := range c.items {
		if !sel.Includes(li.ProductID) {
			continue
		}
		for _, v := range li.Variants {
			if v.Quantity == 0 {
				continue
			}
			lines = append(lines, domain.OrderLine{
				ProductID:   li.ProductID,
				ProductName: li.Name,
				VariantID:   v.VariantID,
				Attributes:  maps.Clone(v.Attributes),
				Quantity:    v.Quantity,
				UnitPrice:   v.UnitPrice,
				LineTotal:   v.LineTotal(),
			})
		}
	}
	return lines
}

// ProductIDs lists the distinct products in the cart.
func (c *Cart) ProductIDs() []int64 {
	ids := make([]int64, 0, len(c.items))
	for _, li := range c.items {
		ids = append(ids, li.ProductID)
	}
	return ids
}

func (c *Cart) apply(idx, vi, newQty int) (domain.CartLineItem, error) {
	li := &c.items[idx]
	current := li.Variants[vi].Quantity

	if newQty < 0 {
		return domain.CartLineItem{}, fmt.Errorf("%w: quantity %d for product %d", domain.ErrInvalidTarget, newQty, li.ProductID)
	}

	if newQty < current && newQty < c.rules.MinimumQuantity && c.rules.LowPriced(li.EffectivePrice()) {
		return domain.CartLineItem{}, &domain.MinimumQuantityError{
			ProductID:   li.ProductID,
			ProductName: li.Name,
			Minimum:     c.rules.MinimumQuantity,
		}
	}

	if newQty > current && c.stock != nil {
		if available, ok := c.stock.StockFor(li.ProductID); ok {
			requested := li.TotalQuantity - current + newQty
			if requested > available {
				return domain.CartLineItem{}, &domain.StockInsufficientError{
					ProductID: li.ProductID,
					Requested: requested,
					Available: available,
				}
			}
		}
	}

	li.Variants[vi].Quantity = newQty
	li.Recompute()
	return cloneLineItem(*li), nil
}

func (c *Cart) locate(productID int64, variantID *string) (int, int, error) {
	idx := c.index(productID)
	if idx < 0 {
		return 0, 0, fmt.Errorf("%w: product %d is not in the cart", domain.ErrInvalidTarget, productID)
	}
	vi := c.items[idx].VariantIndex(variantID)
	if vi < 0 {
		return 0, 0, fmt.Errorf("%w: variant not found for product %d", domain.ErrInvalidTarget, productID)
	}
	return idx, vi, nil
}

func (c *Cart) index(productID int64) int {
	return slices.IndexFunc(c.items, func(li domain.CartLineItem) bool {
		return li.ProductID == productID
	})
}

func cloneLineItem(li domain.CartLineItem) domain.CartLineItem {
	out := li
	out.Variants = make([]domain.VariantSelection, len(li.Variants))
	for i, v := range li.Variants {
		v.Attributes = maps.Clone(v.Attributes)
		out.Variants[i] = v
	}
	return out
}

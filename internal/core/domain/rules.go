package domain

import "github.com/shopspring/decimal"

// Rules holds the business constants of the cart and checkout.
type Rules struct {
	LowPriceThreshold     decimal.Decimal
	MinimumQuantity       int
	FreeShippingThreshold decimal.Decimal
	StandardShippingFee   decimal.Decimal
	MaxSubmitAttempts     int
}

func DefaultRules() Rules {
	return Rules{
		LowPriceThreshold:     decimal.NewFromInt(500),
		MinimumQuantity:       5,
		FreeShippingThreshold: decimal.NewFromInt(100000),
		StandardShippingFee:   decimal.NewFromInt(5000),
		MaxSubmitAttempts:     2,
	}
}

// LowPriced reports whether the minimum quantity floor applies to price.
func (r Rules) LowPriced(price decimal.Decimal) bool {
	return r.MinimumQuantity > 0 && price.LessThan(r.LowPriceThreshold)
}

func (r Rules) ShippingFee(subtotal decimal.Decimal, option DeliveryOption) decimal.Decimal {
	if option == DeliveryPickup {
		return decimal.Zero
	}
	if subtotal.GreaterThanOrEqual(r.FreeShippingThreshold) {
		return decimal.Zero
	}
	return r.StandardShippingFee
}

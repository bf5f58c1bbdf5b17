package service

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/rl1809/storefront/internal/core/domain"
)

// Flow is one branch of the checkout, fixed once the delivery option is chosen.
type Flow interface {
	Option() domain.DeliveryOption
	Steps() []domain.Step
	Validator(step domain.Step) Validator
	// Addresses returns the shipping address (nil for pickup) and the billing/contact address.
	Addresses(draft domain.CheckoutDraft) (*domain.AddressForm, domain.AddressForm)
}

type PickupFlow struct{}

func (PickupFlow) Option() domain.DeliveryOption { return domain.DeliveryPickup }

func (PickupFlow) Steps() []domain.Step {
	return []domain.Step{domain.StepDeliveryOption, domain.StepContactInfo, domain.StepOrderReview, domain.StepConfirmed}
}

func (PickupFlow) Validator(step domain.Step) Validator {
	switch step {
	case domain.StepDeliveryOption:
		return deliveryOptionValidator
	case domain.StepContactInfo:
		return contactInfoValidator
	default:
		return reviewValidator
	}
}

func (PickupFlow) Addresses(d domain.CheckoutDraft) (*domain.AddressForm, domain.AddressForm) {
	return nil, d.BillingAddress
}

type ShippingFlow struct{}

func (ShippingFlow) Option() domain.DeliveryOption { return domain.DeliveryShipping }

func (ShippingFlow) Steps() []domain.Step {
	return []domain.Step{domain.StepDeliveryOption, domain.StepShippingAddress, domain.StepBillingInfo, domain.StepOrderReview, domain.StepConfirmed}
}

func (ShippingFlow) Validator(step domain.Step) Validator {
	switch step {
	case domain.StepDeliveryOption:
		return deliveryOptionValidator
	case domain.StepShippingAddress:
		return shippingAddressValidator
	case domain.StepBillingInfo:
		return billingInfoValidator
	default:
		return reviewValidator
	}
}

func (ShippingFlow) Addresses(d domain.CheckoutDraft) (*domain.AddressForm, domain.AddressForm) {
	shipping := d.ShippingAddress
	if d.SameAsShipping {
		return &shipping, shipping
	}
	return &shipping, d.BillingAddress
}

func flowFor(option domain.DeliveryOption) Flow {
	switch option {
	case domain.DeliveryPickup:
		return PickupFlow{}
	case domain.DeliveryShipping:
		return ShippingFlow{}
	default:
		return nil
	}
}

// Checkout drives one checkout session through its steps.
type Checkout struct {
	draft domain.CheckoutDraft
	flow  Flow
}

// NewCheckout starts a session. An empty reference gets a fresh one.
func NewCheckout(reference string) *Checkout {
	if reference == "" {
		reference = uuid.NewString()
	}
	return &Checkout{draft: domain.CheckoutDraft{Reference: reference}}
}

func (c *Checkout) Draft() domain.CheckoutDraft { return c.draft }

func (c *Checkout) Reference() string { return c.draft.Reference }

func (c *Checkout) Flow() Flow { return c.flow }

func (c *Checkout) Step() domain.Step {
	return c.steps()[c.draft.CurrentStep]
}

// ChooseDelivery records the delivery option. Once a flow is bound the
// option cannot change.
func (c *Checkout) ChooseDelivery(option domain.DeliveryOption) error {
	if c.flow != nil && c.flow.Option() != option {
		return domain.ErrBranchLocked
	}
	c.draft.DeliveryOption = option
	return nil
}

func (c *Checkout) SetShippingAddress(addr domain.AddressForm) {
	c.draft.ShippingAddress = addr
	if c.draft.SameAsShipping {
		c.draft.BillingAddress = addr
	}
}

func (c *Checkout) SetBillingAddress(addr domain.AddressForm) {
	c.draft.BillingAddress = addr
}

func (c *Checkout) SetSameAsShipping(same bool) {
	c.draft.SameAsShipping = same
	if same {
		c.draft.BillingAddress = c.draft.ShippingAddress
	}
}

// Advance validates the current step and moves forward. A failed validation
// returns *domain.ValidationError and leaves the step unchanged. Advance stops
// at OrderReview; Confirmed is reached through Submit.
func (c *Checkout) Advance() error {
	step := c.Step()
	if step == domain.StepConfirmed {
		return nil
	}

	var v Validator = deliveryOptionValidator
	if c.flow != nil {
		v = c.flow.Validator(step)
	}
	if errs := v.Validate(c.draft); len(errs) > 0 {
		return &domain.ValidationError{Fields: errs}
	}

	if step == domain.StepDeliveryOption && c.flow == nil {
		c.flow = flowFor(c.draft.DeliveryOption)
	}
	if step == domain.StepBillingInfo && c.draft.SameAsShipping {
		c.draft.BillingAddress = c.draft.ShippingAddress
	}
	if step == domain.StepOrderReview {
		return nil
	}

	c.draft.CurrentStep++
	return nil
}

// Done reports whether the checkout reached Confirmed. Confirmed is terminal.
func (c *Checkout) Done() bool {
	return c.Step() == domain.StepConfirmed
}

// Retreat moves one step back without validation. At the first step it
// reports leave=true and the caller navigates away. At Confirmed it does
// nothing and reports false; callers check Done first.
func (c *Checkout) Retreat() (leave bool) {
	if c.draft.CurrentStep == 0 {
		return true
	}
	if c.Step() == domain.StepConfirmed {
		return false
	}
	c.draft.CurrentStep--
	return false
}

// AdvanceTo advances until target is reached or a step fails validation.
func (c *Checkout) AdvanceTo(target domain.Step) error {
	for c.Step() != target {
		before := c.draft.CurrentStep
		if err := c.Advance(); err != nil {
			return err
		}
		if c.draft.CurrentStep == before {
			return fmt.Errorf("%w: cannot reach %s from %s", domain.ErrInvalidTarget, target, c.Step())
		}
	}
	return nil
}

func (c *Checkout) confirm() {
	steps := c.steps()
	c.draft.CurrentStep = len(steps) - 1
}

func (c *Checkout) steps() []domain.Step {
	if c.flow == nil {
		return []domain.Step{domain.StepDeliveryOption}
	}
	return c.flow.Steps()
}

package domain

import "fmt"

type DeliveryOption string

const (
	DeliveryNone     DeliveryOption = ""
	DeliveryShipping DeliveryOption = "shipping"
	DeliveryPickup   DeliveryOption = "pickup"
)

func (o DeliveryOption) Valid() bool {
	return o == DeliveryShipping || o == DeliveryPickup
}

type Step int

const (
	StepDeliveryOption Step = iota
	StepContactInfo
	StepShippingAddress
	StepBillingInfo
	StepOrderReview
	StepConfirmed
)

func (s Step) String() string {
	switch s {
	case StepDeliveryOption:
		return "delivery_option"
	case StepContactInfo:
		return "contact_info"
	case StepShippingAddress:
		return "shipping_address"
	case StepBillingInfo:
		return "billing_info"
	case StepOrderReview:
		return "order_review"
	case StepConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

type AddressForm struct {
	FullName          string `json:"full_name"`
	Phone             string `json:"phone"`
	Email             string `json:"email"`
	Country           string `json:"country"`
	City              string `json:"city"`
	StreetName        string `json:"street_name"`
	HouseNumber       string `json:"house_number"`
	Landmark          string `json:"landmark"`
	PostalCode        string `json:"postal_code,omitempty"`
	AdditionalDetails string `json:"additional_details,omitempty"`
	TIN               string `json:"tin,omitempty"`
}

// CheckoutDraft is the state of one checkout session. For pickup orders the
// contact form is kept in BillingAddress.
type CheckoutDraft struct {
	Reference       string         `json:"reference"`
	DeliveryOption  DeliveryOption `json:"delivery_option"`
	ShippingAddress AddressForm    `json:"shipping_address"`
	BillingAddress  AddressForm    `json:"billing_address"`
	SameAsShipping  bool           `json:"same_as_shipping"`
	CurrentStep     int            `json:"current_step"`
}

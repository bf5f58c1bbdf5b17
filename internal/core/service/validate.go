package service

import (
	"regexp"
	"strings"

	"github.com/rl1809/storefront/internal/core/domain"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validator checks the fields owned by one checkout step.
type Validator interface {
	Validate(draft domain.CheckoutDraft) map[string]string
}

type ValidatorFunc func(draft domain.CheckoutDraft) map[string]string

func (f ValidatorFunc) Validate(draft domain.CheckoutDraft) map[string]string {
	return f(draft)
}

type field struct {
	name  string
	label string
	value func(domain.AddressForm) string
}

var (
	fieldFullName    = field{"full_name", "Full name", func(a domain.AddressForm) string { return a.FullName }}
	fieldPhone       = field{"phone", "Phone number", func(a domain.AddressForm) string { return a.Phone }}
	fieldEmail       = field{"email", "Email", func(a domain.AddressForm) string { return a.Email }}
	fieldCity        = field{"city", "City", func(a domain.AddressForm) string { return a.City }}
	fieldStreetName  = field{"street_name", "Street name", func(a domain.AddressForm) string { return a.StreetName }}
	fieldHouseNumber = field{"house_number", "Address line 1", func(a domain.AddressForm) string { return a.HouseNumber }}
	fieldLandmark    = field{"landmark", "Address line 2", func(a domain.AddressForm) string { return a.Landmark }}
)

var (
	contactFields  = []field{fieldFullName, fieldPhone, fieldEmail}
	shippingFields = []field{fieldFullName, fieldPhone, fieldEmail, fieldCity, fieldStreetName, fieldHouseNumber, fieldLandmark}
	billingFields  = []field{fieldFullName, fieldPhone, fieldEmail, fieldCity, fieldStreetName, fieldHouseNumber}
)

func validateAddress(addr domain.AddressForm, fields []field) map[string]string {
	errs := make(map[string]string)
	for _, f := range fields {
		if strings.TrimSpace(f.value(addr)) == "" {
			errs[f.name] = f.label + " is required"
		}
	}
	if _, missing := errs[fieldEmail.name]; !missing && !emailPattern.MatchString(strings.TrimSpace(addr.Email)) {
		errs[fieldEmail.name] = "Email is not valid"
	}
	return errs
}

var (
	deliveryOptionValidator = ValidatorFunc(func(d domain.CheckoutDraft) map[string]string {
		if !d.DeliveryOption.Valid() {
			return map[string]string{"delivery_option": "Choose shipping or pickup"}
		}
		return nil
	})

	shippingAddressValidator = ValidatorFunc(func(d domain.CheckoutDraft) map[string]string {
		return validateAddress(d.ShippingAddress, shippingFields)
	})

	billingInfoValidator = ValidatorFunc(func(d domain.CheckoutDraft) map[string]string {
		if d.SameAsShipping {
			return nil
		}
		return validateAddress(d.BillingAddress, billingFields)
	})

	contactInfoValidator = ValidatorFunc(func(d domain.CheckoutDraft) map[string]string {
		return validateAddress(d.BillingAddress, contactFields)
	})

	reviewValidator = ValidatorFunc(func(domain.CheckoutDraft) map[string]string { return nil })
)

package enums

import "fmt"

// ShippingMethod selects how the buyer receives the order.
type ShippingMethod string

const (
	ShippingMethodPickup          ShippingMethod = "pickup"
	ShippingMethodCarrierDelivery ShippingMethod = "carrier_delivery"
)

var validShippingMethods = []ShippingMethod{
	ShippingMethodPickup,
	ShippingMethodCarrierDelivery,
}

// String implements fmt.Stringer.
func (s ShippingMethod) String() string {
	return string(s)
}

// IsValid reports whether the value is a known ShippingMethod.
func (s ShippingMethod) IsValid() bool {
	for _, candidate := range validShippingMethods {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseShippingMethod converts raw input into a ShippingMethod.
func ParseShippingMethod(value string) (ShippingMethod, error) {
	for _, candidate := range validShippingMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid shipping method %q", value)
}

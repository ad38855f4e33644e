package types

import "strings"

// ShippingAddress is the delivery destination snapshot stored on the
// order. Lat and Lng stay in the string form the carrier API expects
// and are required for carrier placement quotes.
type ShippingAddress struct {
	Name       string  `json:"name,omitempty"`
	Line1      string  `json:"line1"`
	Line2      *string `json:"line2,omitempty"`
	City       string  `json:"city"`
	PostalCode string  `json:"postal_code"`
	Country    string  `json:"country"`
	Phone      string  `json:"phone"`
	Lat        string  `json:"lat"`
	Lng        string  `json:"lng"`
}

// IsComplete reports whether the address carries everything carrier
// placement needs.
func (a ShippingAddress) IsComplete() bool {
	if strings.TrimSpace(a.Line1) == "" {
		return false
	}
	if strings.TrimSpace(a.City) == "" {
		return false
	}
	if strings.TrimSpace(a.Phone) == "" {
		return false
	}
	return strings.TrimSpace(a.Lat) != "" && strings.TrimSpace(a.Lng) != ""
}

package types

// DriverInfo is the courier snapshot extracted from carrier webhooks.
// Fields the payload omits stay empty.
type DriverInfo struct {
	Name        string `json:"name,omitempty"`
	Phone       string `json:"phone,omitempty"`
	PlateNumber string `json:"plate_number,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// IsZero reports whether no driver details have been captured yet.
func (d DriverInfo) IsZero() bool {
	return d == DriverInfo{}
}

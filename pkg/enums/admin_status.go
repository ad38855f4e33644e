package enums

import "fmt"

// AdminStatus is the back-office preparation workflow, an independent
// axis from OrderStatus.
type AdminStatus string

const (
	AdminStatusReceived          AdminStatus = "received"
	AdminStatusPreparing         AdminStatus = "preparing"
	AdminStatusPrepared          AdminStatus = "prepared"
	AdminStatusPlacedWithCarrier AdminStatus = "placed_with_carrier"
	AdminStatusPickedUp          AdminStatus = "picked_up"
	AdminStatusCompleted         AdminStatus = "completed"
)

var validAdminStatuses = []AdminStatus{
	AdminStatusReceived,
	AdminStatusPreparing,
	AdminStatusPrepared,
	AdminStatusPlacedWithCarrier,
	AdminStatusPickedUp,
	AdminStatusCompleted,
}

// String implements fmt.Stringer.
func (a AdminStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AdminStatus.
func (a AdminStatus) IsValid() bool {
	for _, candidate := range validAdminStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAdminStatus converts raw input into an AdminStatus.
func ParseAdminStatus(value string) (AdminStatus, error) {
	for _, candidate := range validAdminStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid admin status %q", value)
}

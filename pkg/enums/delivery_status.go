package enums

import "fmt"

// DeliveryStatus mirrors the carrier-facing state of a delivery order.
// awaiting_placement means the order is paid but not yet handed to the
// carrier; the remaining values track the carrier's own lifecycle.
type DeliveryStatus string

const (
	DeliveryStatusAwaitingPlacement DeliveryStatus = "awaiting_placement"
	DeliveryStatusPending           DeliveryStatus = "pending"
	DeliveryStatusAccepted          DeliveryStatus = "accepted"
	DeliveryStatusPickedUp          DeliveryStatus = "picked_up"
	DeliveryStatusDelivered         DeliveryStatus = "delivered"
	DeliveryStatusCancelled         DeliveryStatus = "cancelled"
	DeliveryStatusFailed            DeliveryStatus = "failed"
	DeliveryStatusExpired           DeliveryStatus = "expired"
)

var validDeliveryStatuses = []DeliveryStatus{
	DeliveryStatusAwaitingPlacement,
	DeliveryStatusPending,
	DeliveryStatusAccepted,
	DeliveryStatusPickedUp,
	DeliveryStatusDelivered,
	DeliveryStatusCancelled,
	DeliveryStatusFailed,
	DeliveryStatusExpired,
}

// deliveryStageRanks orders the forward lifecycle so webhooks replayed
// out of order cannot regress a delivery. Terminal states carry no rank.
var deliveryStageRanks = map[DeliveryStatus]int{
	DeliveryStatusAwaitingPlacement: 0,
	DeliveryStatusPending:           1,
	DeliveryStatusAccepted:          2,
	DeliveryStatusPickedUp:          3,
	DeliveryStatusDelivered:         4,
}

// String implements fmt.Stringer.
func (d DeliveryStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryStatus.
func (d DeliveryStatus) IsValid() bool {
	for _, candidate := range validDeliveryStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// IsAbsorbing reports whether the status ends the delivery lifecycle.
func (d DeliveryStatus) IsAbsorbing() bool {
	switch d {
	case DeliveryStatusDelivered, DeliveryStatusCancelled, DeliveryStatusFailed, DeliveryStatusExpired:
		return true
	default:
		return false
	}
}

// StageRank returns the forward-lifecycle position of the status and
// whether it participates in stage ordering at all.
func (d DeliveryStatus) StageRank() (int, bool) {
	rank, ok := deliveryStageRanks[d]
	return rank, ok
}

// ParseDeliveryStatus converts raw input into a DeliveryStatus.
func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	for _, candidate := range validDeliveryStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery status %q", value)
}

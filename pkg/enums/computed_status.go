package enums

// ComputedStatus is the single customer-facing status derived from the
// payment, internal, admin, and delivery axes. It is never persisted;
// the status computer derives it on every read.
type ComputedStatus string

const (
	ComputedStatusPending         ComputedStatus = "PENDING"
	ComputedStatusOrderReceived   ComputedStatus = "ORDER_RECEIVED"
	ComputedStatusOrderPreparing  ComputedStatus = "ORDER_PREPARING"
	ComputedStatusOrderPrepared   ComputedStatus = "ORDER_PREPARED"
	ComputedStatusReadyForPickup  ComputedStatus = "READY_FOR_PICKUP"
	ComputedStatusPickedUp        ComputedStatus = "PICKED_UP"
	ComputedStatusCompleted       ComputedStatus = "COMPLETED"
	ComputedStatusAssigningDriver ComputedStatus = "ASSIGNING_DRIVER"
	ComputedStatusOnGoing         ComputedStatus = "ON_GOING"
	ComputedStatusRejected        ComputedStatus = "REJECTED"
	ComputedStatusExpired         ComputedStatus = "EXPIRED"
	ComputedStatusCanceled        ComputedStatus = "CANCELED"
	ComputedStatusProcessing      ComputedStatus = "PROCESSING"
)

// String implements fmt.Stringer.
func (c ComputedStatus) String() string {
	return string(c)
}

package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/primecutco/primecut-backend/pkg/enums"
)

// OrderCreatedEvent signals a provisional order was persisted at checkout.
type OrderCreatedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	TotalCents int       `json:"total_cents"`
}

// OrderPaidEvent is emitted once when payment settlement completes.
type OrderPaidEvent struct {
	OrderID        uuid.UUID            `json:"order_id"`
	OwnerID        uuid.UUID            `json:"owner_id"`
	TotalCents     int                  `json:"total_cents"`
	PaidAt         time.Time            `json:"paid_at"`
	ComputedStatus enums.ComputedStatus `json:"computed_status"`
}

// DeliveryUpdatedEvent is emitted when a carrier webhook changes the
// customer-facing status.
type DeliveryUpdatedEvent struct {
	OrderID        uuid.UUID            `json:"order_id"`
	OwnerID        uuid.UUID            `json:"owner_id"`
	DeliveryStatus enums.DeliveryStatus `json:"delivery_status"`
	ComputedStatus enums.ComputedStatus `json:"computed_status"`
	PreviousStatus enums.ComputedStatus `json:"previous_status"`
	TrackingURL    *string              `json:"tracking_url,omitempty"`
}

// AdminTransitionedEvent records a back-office workflow transition.
type AdminTransitionedEvent struct {
	OrderID        uuid.UUID            `json:"order_id"`
	OwnerID        uuid.UUID            `json:"owner_id"`
	From           *enums.AdminStatus   `json:"from,omitempty"`
	To             enums.AdminStatus    `json:"to"`
	ComputedStatus enums.ComputedStatus `json:"computed_status"`
}

// OrderCancelledEvent is emitted whenever an order reaches a cancelled state.
type OrderCancelledEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	CancelledAt time.Time `json:"cancelled_at"`
	Reason      string    `json:"reason,omitempty"`
}

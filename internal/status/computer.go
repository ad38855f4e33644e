// Package status derives the single customer-facing order status from
// the four stored status axes. The computation is pure: it reads a
// snapshot of the order and never touches storage, which lets both the
// read path and the reconciler call it freely.
package status

import (
	"github.com/primecutco/primecut-backend/pkg/db/models"
	"github.com/primecutco/primecut-backend/pkg/enums"
)

// adminPickupStatuses maps the back-office workflow onto the statuses a
// pickup customer sees.
var adminPickupStatuses = map[enums.AdminStatus]enums.ComputedStatus{
	enums.AdminStatusReceived:          enums.ComputedStatusOrderReceived,
	enums.AdminStatusPreparing:         enums.ComputedStatusOrderPreparing,
	enums.AdminStatusPrepared:          enums.ComputedStatusOrderPrepared,
	enums.AdminStatusPlacedWithCarrier: enums.ComputedStatusReadyForPickup,
	enums.AdminStatusPickedUp:          enums.ComputedStatusPickedUp,
	enums.AdminStatusCompleted:         enums.ComputedStatusCompleted,
}

// adminPreCarrierStatuses covers the preparation window before a
// delivery order is handed to the carrier.
var adminPreCarrierStatuses = map[enums.AdminStatus]enums.ComputedStatus{
	enums.AdminStatusReceived:  enums.ComputedStatusOrderReceived,
	enums.AdminStatusPreparing: enums.ComputedStatusOrderPreparing,
	enums.AdminStatusPrepared:  enums.ComputedStatusOrderPrepared,
}

// deliveryStatuses maps the carrier lifecycle onto customer statuses
// once an order has been placed with the carrier.
var deliveryStatuses = map[enums.DeliveryStatus]enums.ComputedStatus{
	enums.DeliveryStatusPending:   enums.ComputedStatusAssigningDriver,
	enums.DeliveryStatusAccepted:  enums.ComputedStatusOnGoing,
	enums.DeliveryStatusPickedUp:  enums.ComputedStatusPickedUp,
	enums.DeliveryStatusDelivered: enums.ComputedStatusCompleted,
	enums.DeliveryStatusCancelled: enums.ComputedStatusCanceled,
	enums.DeliveryStatusFailed:    enums.ComputedStatusRejected,
	enums.DeliveryStatusExpired:   enums.ComputedStatusExpired,
}

// Compute resolves the customer-facing status for an order snapshot.
// Priority order, first match wins: unpaid, terminal, then the axis
// that owns the order's current phase. Unmapped values fall open to the
// least-advanced status of their phase rather than erroring, so a new
// enum value upstream can never break order reads.
func Compute(order *models.Order) enums.ComputedStatus {
	if order == nil {
		return enums.ComputedStatusProcessing
	}

	if order.PaymentStatus != enums.PaymentStatusPaid {
		return enums.ComputedStatusPending
	}

	if order.Status.IsTerminal() {
		return enums.ComputedStatusCanceled
	}

	switch order.ShippingMethod {
	case enums.ShippingMethodPickup:
		if order.AdminStatus != nil {
			if mapped, ok := adminPickupStatuses[*order.AdminStatus]; ok {
				return mapped
			}
		}
		return enums.ComputedStatusOrderReceived

	case enums.ShippingMethodCarrierDelivery:
		if order.DeliveryStatus == nil || *order.DeliveryStatus == enums.DeliveryStatusAwaitingPlacement {
			if order.AdminStatus != nil {
				if mapped, ok := adminPreCarrierStatuses[*order.AdminStatus]; ok {
					return mapped
				}
			}
			return enums.ComputedStatusOrderReceived
		}
		if mapped, ok := deliveryStatuses[*order.DeliveryStatus]; ok {
			return mapped
		}
		return enums.ComputedStatusAssigningDriver
	}

	return enums.ComputedStatusProcessing
}

// Package deliverysync reconciles carrier webhook callbacks into the
// delivery axis of an order.
package deliverysync

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/primecutco/primecut-backend/pkg/enums"
	pkgerrors "github.com/primecutco/primecut-backend/pkg/errors"
	"github.com/primecutco/primecut-backend/pkg/types"
)

// Event is the carrier-neutral form of one webhook callback. Both
// payload generations normalize into this before reconciliation.
type Event struct {
	EventID         string
	ProviderOrderID string
	RawStatus       string
	Driver          *types.DriverInfo
	TrackingURL     *string
	OccurredAt      time.Time
}

// v3Payload is the current enveloped generation: order and driver
// details nest under data.
type v3Payload struct {
	EventID   string `json:"eventId"`
	EventType string `json:"eventType"`
	Timestamp int64  `json:"timestamp"`
	Data      struct {
		Order struct {
			OrderID   string `json:"orderId"`
			Status    string `json:"status"`
			ShareLink string `json:"shareLink"`
		} `json:"order"`
		Driver struct {
			Name        string `json:"name"`
			Phone       string `json:"phone"`
			PlateNumber string `json:"plateNumber"`
			Photo       string `json:"photo"`
		} `json:"driver"`
	} `json:"data"`
}

// legacyPayload is the original flat generation still sent by the
// carrier's older webhook registrations.
type legacyPayload struct {
	EventID   string `json:"event_id"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	ShareLink string `json:"share_link"`
	Driver    struct {
		Name        string `json:"name"`
		Phone       string `json:"phone"`
		PlateNumber string `json:"plate_number"`
		PhotoURL    string `json:"photo_url"`
	} `json:"driver"`
	Timestamp int64 `json:"timestamp"`
}

// Normalize decodes a webhook body from either payload generation. A
// body that cannot yield an order reference and a status is
// structurally invalid and the only class of input the webhook rejects.
func Normalize(body []byte) (*Event, error) {
	var v3 v3Payload
	if err := json.Unmarshal(body, &v3); err == nil && v3.Data.Order.OrderID != "" {
		event := &Event{
			EventID:         v3.EventID,
			ProviderOrderID: v3.Data.Order.OrderID,
			RawStatus:       v3.Data.Order.Status,
			OccurredAt:      unixOrNow(v3.Timestamp),
		}
		if link := v3.Data.Order.ShareLink; link != "" {
			event.TrackingURL = &link
		}
		driver := types.DriverInfo{
			Name:        v3.Data.Driver.Name,
			Phone:       v3.Data.Driver.Phone,
			PlateNumber: v3.Data.Driver.PlateNumber,
			PhotoURL:    v3.Data.Driver.Photo,
		}
		if !driver.IsZero() {
			event.Driver = &driver
		}
		if event.RawStatus == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing order status")
		}
		return event, nil
	}

	var legacy legacyPayload
	if err := json.Unmarshal(body, &legacy); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "webhook payload is not valid json")
	}
	if legacy.OrderID == "" || legacy.Status == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "webhook payload missing order reference or status")
	}

	event := &Event{
		EventID:         legacy.EventID,
		ProviderOrderID: legacy.OrderID,
		RawStatus:       legacy.Status,
		OccurredAt:      unixOrNow(legacy.Timestamp),
	}
	if legacy.ShareLink != "" {
		event.TrackingURL = &legacy.ShareLink
	}
	driver := types.DriverInfo{
		Name:        legacy.Driver.Name,
		Phone:       legacy.Driver.Phone,
		PlateNumber: legacy.Driver.PlateNumber,
		PhotoURL:    legacy.Driver.PhotoURL,
	}
	if !driver.IsZero() {
		event.Driver = &driver
	}
	return event, nil
}

// carrierStatuses maps the carrier's wire statuses onto the delivery
// axis. Statuses outside this table are stored lower-cased as-is so a
// carrier vocabulary change degrades to an odd label instead of a
// dropped update.
var carrierStatuses = map[string]enums.DeliveryStatus{
	"ASSIGNING_DRIVER": enums.DeliveryStatusPending,
	"ON_GOING":         enums.DeliveryStatusAccepted,
	"PICKED_UP":        enums.DeliveryStatusPickedUp,
	"COMPLETED":        enums.DeliveryStatusDelivered,
	"CANCELED":         enums.DeliveryStatusCancelled,
	"REJECTED":         enums.DeliveryStatusFailed,
	"EXPIRED":          enums.DeliveryStatusExpired,
}

func mapCarrierStatus(raw string) (enums.DeliveryStatus, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	if mapped, ok := carrierStatuses[normalized]; ok {
		return mapped, true
	}
	return enums.DeliveryStatus(strings.ToLower(strings.TrimSpace(raw))), false
}

func unixOrNow(ts int64) time.Time {
	if ts <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(ts, 0).UTC()
}

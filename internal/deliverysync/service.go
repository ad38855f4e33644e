package deliverysync

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/primecutco/primecut-backend/internal/orders"
	"github.com/primecutco/primecut-backend/internal/status"
	"github.com/primecutco/primecut-backend/pkg/db/models"
	"github.com/primecutco/primecut-backend/pkg/enums"
	pkgerrors "github.com/primecutco/primecut-backend/pkg/errors"
	"github.com/primecutco/primecut-backend/pkg/logger"
	"github.com/primecutco/primecut-backend/pkg/metrics"
	"github.com/primecutco/primecut-backend/pkg/outbox"
	"github.com/primecutco/primecut-backend/pkg/outbox/payloads"
)

var (
	errStaleEvent    = errors.New("delivery event is stale")
	errTerminalOrder = errors.New("order lifecycle is terminal")
)

type orderStore interface {
	FindByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Order, error)
	ApplyMutation(ctx context.Context, orderID uuid.UUID, mutate orders.Mutation, hooks ...orders.TxHook) (*models.Order, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Outcome classifies what the reconciler did with a webhook event.
type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	OutcomeStale   Outcome = "stale"
	OutcomeIgnored Outcome = "ignored"
	OutcomeOrphan  Outcome = "orphan"
)

// Service applies normalized carrier events onto orders.
type Service struct {
	store   orderStore
	outbox  outboxPublisher
	metrics *metrics.EngineMetrics
	logg    *logger.Logger
}

// NewService wires the delivery reconciler.
func NewService(store orderStore, publisher outboxPublisher, engineMetrics *metrics.EngineMetrics, logg *logger.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("order store required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{store: store, outbox: publisher, metrics: engineMetrics, logg: logg}, nil
}

// HandleEvent reconciles one carrier callback. Events for unknown
// orders, terminal orders, or stale stages resolve without error so the
// webhook can ack; the carrier retries on anything else and a retry
// storm is worse than a skipped update.
func (s *Service) HandleEvent(ctx context.Context, event *Event) (Outcome, error) {
	order, err := s.store.FindByProviderOrderID(ctx, event.ProviderOrderID)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			s.metrics.IncWebhookEvent(string(OutcomeOrphan))
			s.logg.Warn(s.logg.WithField(ctx, "provider_order_id", event.ProviderOrderID),
				"carrier event references unknown order")
			return OutcomeOrphan, nil
		}
		return "", err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())

	mapped, known := mapCarrierStatus(event.RawStatus)
	if !known {
		s.logg.Warn(s.logg.WithField(logCtx, "carrier_status", event.RawStatus),
			"carrier sent unrecognized delivery status")
	}

	var previous, current enums.ComputedStatus
	updated, err := s.store.ApplyMutation(ctx, order.ID,
		func(o *models.Order) error {
			if o.Status.IsTerminal() {
				return errTerminalOrder
			}
			if !shouldApply(o.DeliveryStatus, mapped, known) {
				return errStaleEvent
			}

			previous = status.Compute(o)
			s.applyEvent(o, event, mapped)
			current = status.Compute(o)
			return nil
		},
		func(tx *gorm.DB, o *models.Order) error {
			if current == previous {
				return nil
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.OutboxEventOrderDeliveryUpdated,
				AggregateType: enums.OutboxAggregateOrder,
				AggregateID:   o.ID,
				Data: payloads.DeliveryUpdatedEvent{
					OrderID:        o.ID,
					OwnerID:        o.OwnerID,
					DeliveryStatus: mapped,
					ComputedStatus: current,
					PreviousStatus: previous,
					TrackingURL:    o.TrackingURL,
				},
			}); err != nil {
				return err
			}
			if mapped != enums.DeliveryStatusCancelled {
				return nil
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.OutboxEventOrderCancelled,
				AggregateType: enums.OutboxAggregateOrder,
				AggregateID:   o.ID,
				Data: payloads.OrderCancelledEvent{
					OrderID:     o.ID,
					OwnerID:     o.OwnerID,
					CancelledAt: event.OccurredAt,
					Reason:      "carrier cancelled the delivery",
				},
			})
		},
	)
	if err != nil {
		switch {
		case errors.Is(err, errTerminalOrder):
			s.metrics.IncWebhookEvent(string(OutcomeIgnored))
			s.logg.Info(logCtx, "carrier event ignored for terminal order")
			return OutcomeIgnored, nil
		case errors.Is(err, errStaleEvent):
			s.metrics.IncWebhookEvent(string(OutcomeStale))
			s.logg.Info(s.logg.WithField(logCtx, "carrier_status", event.RawStatus),
				"carrier event arrived behind the stored stage")
			return OutcomeStale, nil
		default:
			return "", err
		}
	}

	s.metrics.IncWebhookEvent(string(OutcomeApplied))
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"delivery_status": updated.DeliveryStatus,
		"computed_status": current,
	}), "carrier event applied")
	return OutcomeApplied, nil
}

// applyEvent writes the event onto the order. A completed delivery
// closes the internal lifecycle; a cancelled one couples the internal
// axis so the derived status lands on CANCELED.
func (s *Service) applyEvent(o *models.Order, event *Event, mapped enums.DeliveryStatus) {
	o.DeliveryStatus = &mapped
	occurredAt := event.OccurredAt
	o.DeliveryLastUpdate = &occurredAt

	if event.Driver != nil {
		o.DriverInfo = event.Driver
	}
	if event.TrackingURL != nil {
		o.TrackingURL = event.TrackingURL
	}

	switch mapped {
	case enums.DeliveryStatusDelivered:
		o.Status = enums.OrderStatusDelivered
	case enums.DeliveryStatusCancelled:
		o.Status = enums.OrderStatusCancelled
		o.CancelledAt = &occurredAt
	}
}

// shouldApply enforces stage ordering on the forward lifecycle.
// Absorbing states accept no successor; an unknown incoming status is
// applied rather than dropped.
func shouldApply(current *enums.DeliveryStatus, incoming enums.DeliveryStatus, known bool) bool {
	if current == nil {
		return true
	}
	if current.IsAbsorbing() {
		return false
	}
	if !known {
		return true
	}
	if incoming.IsAbsorbing() {
		return true
	}

	incomingRank, incomingOK := incoming.StageRank()
	currentRank, currentOK := current.StageRank()
	if !incomingOK || !currentOK {
		return true
	}
	return incomingRank > currentRank
}

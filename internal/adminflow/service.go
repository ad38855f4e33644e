// Package adminflow gates back-office workflow transitions, including
// the handoff that places a paid delivery order with the carrier.
package adminflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/primecutco/primecut-backend/internal/orders"
	"github.com/primecutco/primecut-backend/internal/status"
	"github.com/primecutco/primecut-backend/pkg/config"
	"github.com/primecutco/primecut-backend/pkg/db/models"
	"github.com/primecutco/primecut-backend/pkg/enums"
	pkgerrors "github.com/primecutco/primecut-backend/pkg/errors"
	"github.com/primecutco/primecut-backend/pkg/lalamove"
	"github.com/primecutco/primecut-backend/pkg/logger"
	"github.com/primecutco/primecut-backend/pkg/metrics"
	"github.com/primecutco/primecut-backend/pkg/outbox"
	"github.com/primecutco/primecut-backend/pkg/outbox/payloads"
	"github.com/primecutco/primecut-backend/pkg/types"
)

type orderStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ApplyMutation(ctx context.Context, orderID uuid.UUID, mutate orders.Mutation, hooks ...orders.TxHook) (*models.Order, error)
}

type carrierClient interface {
	Quote(ctx context.Context, req lalamove.QuoteRequest) (*lalamove.Quotation, error)
	PlaceOrder(ctx context.Context, req lalamove.PlaceOrderRequest) (*lalamove.Order, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service validates and applies admin workflow transitions.
type Service struct {
	store      orderStore
	carrier    carrierClient
	outbox     outboxPublisher
	carrierCfg config.LalamoveConfig
	storeCfg   config.StoreConfig
	metrics    *metrics.EngineMetrics
	logg       *logger.Logger
}

// Params collects the adminflow dependencies.
type Params struct {
	Store      orderStore
	Carrier    carrierClient
	Outbox     outboxPublisher
	CarrierCfg config.LalamoveConfig
	StoreCfg   config.StoreConfig
	Metrics    *metrics.EngineMetrics
	Logger     *logger.Logger
}

// NewService wires the admin workflow service.
func NewService(params Params) (*Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.Carrier == nil {
		return nil, fmt.Errorf("carrier client required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		store:      params.Store,
		carrier:    params.Carrier,
		outbox:     params.Outbox,
		carrierCfg: params.CarrierCfg,
		storeCfg:   params.StoreCfg,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

// Transition moves an order to the requested workflow status on behalf
// of actorID. placed_with_carrier additionally quotes and places the
// delivery before the transition commits; every other status is a plain
// workflow step.
func (s *Service) Transition(ctx context.Context, orderID uuid.UUID, rawStatus string, actorID uuid.UUID) (*models.Order, error) {
	target, err := enums.ParseAdminStatus(strings.TrimSpace(rawStatus))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidStatus, fmt.Sprintf("unknown admin status %q", rawStatus))
	}

	order, err := s.store.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, fmt.Sprintf("order is %s and cannot change", order.Status))
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, "order is not paid yet")
	}

	logCtx := s.logg.WithOrderID(s.logg.WithUserID(ctx, actorID.String()), orderID.String())

	var updated *models.Order
	if target == enums.AdminStatusPlacedWithCarrier {
		updated, err = s.placeWithCarrier(logCtx, order, target)
	} else {
		updated, err = s.applyTransition(logCtx, order.ID, target, nil)
	}
	if err != nil {
		return nil, err
	}

	s.metrics.IncAdminTransition(target.String())
	s.logg.Info(s.logg.WithField(logCtx, "admin_status", target), "admin transition applied")
	return updated, nil
}

// applyTransition commits a workflow step and emits the transition
// event for the customer notification fan-out.
func (s *Service) applyTransition(ctx context.Context, orderID uuid.UUID, target enums.AdminStatus, extra orders.Mutation) (*models.Order, error) {
	var from *enums.AdminStatus
	return s.store.ApplyMutation(ctx, orderID,
		func(o *models.Order) error {
			if o.Status.IsTerminal() {
				return pkgerrors.New(pkgerrors.CodePrecondition, fmt.Sprintf("order is %s and cannot change", o.Status))
			}
			from = o.AdminStatus
			target := target
			o.AdminStatus = &target
			if extra != nil {
				return extra(o)
			}
			return nil
		},
		func(tx *gorm.DB, o *models.Order) error {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.OutboxEventOrderAdminTransitioned,
				AggregateType: enums.OutboxAggregateOrder,
				AggregateID:   o.ID,
				Data: payloads.AdminTransitionedEvent{
					OrderID:        o.ID,
					OwnerID:        o.OwnerID,
					From:           from,
					To:             target,
					ComputedStatus: status.Compute(o),
				},
			})
		},
	)
}

// placeWithCarrier quotes and places the delivery, then commits the
// transition with the carrier references. A placement failure marks the
// delivery axis failed and surfaces the upstream error so the operator
// can retry once the carrier recovers.
func (s *Service) placeWithCarrier(ctx context.Context, order *models.Order, target enums.AdminStatus) (*models.Order, error) {
	if err := s.checkPlacementPreconditions(order); err != nil {
		return nil, err
	}

	start := time.Now()
	placed, err := s.quoteAndPlace(ctx, order)
	s.metrics.ObserveCarrierPlacement(time.Since(start))
	if err != nil {
		s.metrics.IncCarrierFailure()
		s.logg.Error(ctx, "carrier placement failed", err)

		failed := enums.DeliveryStatusFailed
		if _, markErr := s.store.ApplyMutation(ctx, order.ID, func(o *models.Order) error {
			o.DeliveryStatus = &failed
			return nil
		}); markErr != nil {
			s.logg.Error(ctx, "recording failed placement", markErr)
		}
		return nil, err
	}

	pending := enums.DeliveryStatusPending
	return s.applyTransition(ctx, order.ID, target, func(o *models.Order) error {
		if o.DeliveryStatus == nil || *o.DeliveryStatus != enums.DeliveryStatusAwaitingPlacement {
			return pkgerrors.New(pkgerrors.CodePrecondition, "delivery is no longer awaiting placement")
		}
		o.ProviderOrderID = &placed.OrderID
		o.DeliveryStatus = &pending
		if placed.ShareLink != "" {
			link := placed.ShareLink
			o.TrackingURL = &link
		}
		return nil
	})
}

func (s *Service) checkPlacementPreconditions(order *models.Order) error {
	if order.ShippingMethod != enums.ShippingMethodCarrierDelivery {
		return pkgerrors.New(pkgerrors.CodePrecondition, "pickup orders are not placed with a carrier")
	}
	if order.DeliveryStatus == nil || *order.DeliveryStatus != enums.DeliveryStatusAwaitingPlacement {
		return pkgerrors.New(pkgerrors.CodePrecondition, "delivery is not awaiting placement")
	}
	if order.ProviderOrderID != nil {
		return pkgerrors.New(pkgerrors.CodePrecondition, "order is already placed with the carrier")
	}
	if order.ShippingAddress == nil || !order.ShippingAddress.IsComplete() {
		return pkgerrors.New(pkgerrors.CodePrecondition, "shipping address is incomplete")
	}
	return nil
}

func (s *Service) quoteAndPlace(ctx context.Context, order *models.Order) (*lalamove.Order, error) {
	address := order.ShippingAddress

	quote, err := s.carrier.Quote(ctx, lalamove.QuoteRequest{
		ServiceType: s.carrierCfg.ServiceType,
		Stops: []lalamove.Stop{
			{
				Coordinates: lalamove.Coordinates{Lat: s.storeCfg.Lat, Lng: s.storeCfg.Lng},
				Address:     storeAddress(s.storeCfg),
			},
			{
				Coordinates: lalamove.Coordinates{Lat: address.Lat, Lng: address.Lng},
				Address:     deliveryAddress(address),
			},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(quote.StopIDs) < 2 {
		return nil, pkgerrors.New(pkgerrors.CodeUpstream, "quotation returned no stop references")
	}

	return s.carrier.PlaceOrder(ctx, lalamove.PlaceOrderRequest{
		QuotationID: quote.QuotationID,
		Sender: lalamove.Contact{
			StopID: quote.StopIDs[0],
			Name:   s.storeCfg.Name,
			Phone:  s.storeCfg.Phone,
		},
		Recipients: []lalamove.Contact{
			{StopID: quote.StopIDs[1], Name: recipientName(address), Phone: address.Phone},
		},
	})
}

func storeAddress(cfg config.StoreConfig) string {
	return joinAddress(cfg.AddressLine1, cfg.City, cfg.PostalCode, cfg.Country)
}

func deliveryAddress(address *types.ShippingAddress) string {
	parts := []string{address.Line1}
	if address.Line2 != nil {
		parts = append(parts, *address.Line2)
	}
	parts = append(parts, address.City, address.PostalCode, address.Country)
	return joinAddress(parts...)
}

func recipientName(address *types.ShippingAddress) string {
	if name := strings.TrimSpace(address.Name); name != "" {
		return name
	}
	return "Recipient"
}

func joinAddress(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, ", ")
}

// Package settlement transitions orders from pending to paid exactly
// once per payment session and fans out the post-payment side effects.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/primecutco/primecut-backend/internal/cart"
	"github.com/primecutco/primecut-backend/internal/coupons"
	"github.com/primecutco/primecut-backend/internal/inventory"
	"github.com/primecutco/primecut-backend/internal/orders"
	"github.com/primecutco/primecut-backend/internal/status"
	"github.com/primecutco/primecut-backend/pkg/config"
	"github.com/primecutco/primecut-backend/pkg/db/models"
	"github.com/primecutco/primecut-backend/pkg/enums"
	pkgerrors "github.com/primecutco/primecut-backend/pkg/errors"
	"github.com/primecutco/primecut-backend/pkg/logger"
	"github.com/primecutco/primecut-backend/pkg/metrics"
	"github.com/primecutco/primecut-backend/pkg/outbox"
	"github.com/primecutco/primecut-backend/pkg/outbox/payloads"
)

var errAlreadySettled = errors.New("order already settled")

type orderStore interface {
	FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	ApplyMutation(ctx context.Context, orderID uuid.UUID, mutate orders.Mutation, hooks ...orders.TxHook) (*models.Order, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Input identifies one confirmed payment from the provider.
type Input struct {
	IdempotencyKey       string
	ConfirmedAmountCents int
	ProviderMetadata     map[string]string
}

// Result reports the settled order and whether this call was a replay.
type Result struct {
	Order            *models.Order
	AlreadyProcessed bool
}

// Service performs idempotent payment settlement.
type Service struct {
	store     orderStore
	inventory inventory.Repository
	coupons   coupons.Repository
	carts     cart.Repository
	outbox    outboxPublisher
	pricing   config.PricingConfig
	metrics   *metrics.EngineMetrics
	logg      *logger.Logger
}

// Params collects the settlement dependencies.
type Params struct {
	Store     orderStore
	Inventory inventory.Repository
	Coupons   coupons.Repository
	Carts     cart.Repository
	Outbox    outboxPublisher
	Pricing   config.PricingConfig
	Metrics   *metrics.EngineMetrics
	Logger    *logger.Logger
}

// NewService wires the settlement service.
func NewService(params Params) (*Service, error) {
	if params.Store == nil {
		return nil, fmt.Errorf("order store required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupons repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		store:     params.Store,
		inventory: params.Inventory,
		coupons:   params.Coupons,
		carts:     params.Carts,
		outbox:    params.Outbox,
		pricing:   params.Pricing,
		metrics:   params.Metrics,
		logg:      params.Logger,
	}, nil
}

// Settle marks the order behind idempotencyKey as paid. Replays return
// the stored order with AlreadyProcessed set and run no side effects.
// The paid transition and its outbox event commit atomically; the side
// effect bundle (stock, coupon, cart) runs afterwards and each failure
// is logged without unwinding the payment, since the charge already
// happened.
func (s *Service) Settle(ctx context.Context, input Input) (*Result, error) {
	order, err := s.store.FindByIdempotencyKey(ctx, input.IdempotencyKey)
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())

	if order.PaymentStatus == enums.PaymentStatusPaid {
		s.metrics.IncSettlement("duplicate")
		s.logg.Info(logCtx, "settlement replayed for settled order")
		return &Result{Order: order, AlreadyProcessed: true}, nil
	}
	if order.PaymentStatus == enums.PaymentStatusFailed || order.PaymentStatus == enums.PaymentStatusRefunded {
		s.metrics.IncSettlement("failed")
		return nil, pkgerrors.New(pkgerrors.CodePrecondition, fmt.Sprintf("order payment is %s and cannot settle", order.PaymentStatus))
	}

	settled, err := s.store.ApplyMutation(ctx, order.ID,
		func(o *models.Order) error {
			return s.markPaid(logCtx, o, input)
		},
		func(tx *gorm.DB, o *models.Order) error {
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.OutboxEventOrderPaid,
				AggregateType: enums.OutboxAggregateOrder,
				AggregateID:   o.ID,
				Data: payloads.OrderPaidEvent{
					OrderID:        o.ID,
					OwnerID:        o.OwnerID,
					TotalCents:     o.TotalCents,
					PaidAt:         derefTime(o.PaidAt),
					ComputedStatus: status.Compute(o),
				},
			})
		},
	)
	if err != nil {
		if errors.Is(err, errAlreadySettled) {
			current, findErr := s.store.FindByIdempotencyKey(ctx, input.IdempotencyKey)
			if findErr != nil {
				return nil, findErr
			}
			s.metrics.IncSettlement("duplicate")
			return &Result{Order: current, AlreadyProcessed: true}, nil
		}
		s.metrics.IncSettlement("failed")
		return nil, err
	}

	s.metrics.IncSettlement("settled")
	s.runSideEffects(logCtx, settled)

	return &Result{Order: settled}, nil
}

// markPaid freezes the amounts from the order's own snapshot and flips
// the payment axis. The provider-confirmed amount is advisory: a
// mismatch is logged, but the server-computed total is what persists.
func (s *Service) markPaid(ctx context.Context, o *models.Order, input Input) error {
	if o.PaymentStatus == enums.PaymentStatusPaid {
		return errAlreadySettled
	}

	amounts := orders.ComputeAmounts(o.LineItems, o.Coupon, o.ShippingMethod, s.pricing)
	amounts.Apply(o)

	if input.ConfirmedAmountCents != amounts.TotalCents {
		fields := map[string]any{
			"confirmed_cents":  input.ConfirmedAmountCents,
			"recomputed_cents": amounts.TotalCents,
		}
		s.logg.Warn(s.logg.WithFields(ctx, fields), "confirmed amount differs from recomputed total")
	}

	now := time.Now().UTC()
	o.PaymentStatus = enums.PaymentStatusPaid
	o.Status = enums.OrderStatusProcessing
	o.PaidAt = &now

	if o.ShippingMethod == enums.ShippingMethodCarrierDelivery {
		awaiting := enums.DeliveryStatusAwaitingPlacement
		o.DeliveryStatus = &awaiting
		// The payment session reference has served its purpose; drop
		// it so expiring provider data does not linger on the record.
		o.ProviderSessionID = nil
	}
	return nil
}

// runSideEffects executes the post-payment bundle. Each effect is
// independent and best-effort; failures surface in logs and metrics for
// out-of-band retry, never as a settlement error.
func (s *Service) runSideEffects(ctx context.Context, order *models.Order) {
	var failures error

	for _, item := range order.LineItems {
		if item.ProductID == nil {
			continue
		}
		if err := s.inventory.DecrementStock(ctx, *item.ProductID, item.Qty); err != nil {
			failures = multierr.Append(failures, fmt.Errorf("decrement stock %s: %w", item.ProductID, err))
		}
	}

	if order.Coupon != nil {
		if err := s.coupons.RecordUsage(ctx, order.Coupon.Code, order.ID, order.OwnerID); err != nil {
			failures = multierr.Append(failures, fmt.Errorf("record coupon usage: %w", err))
		}
	}

	if err := s.carts.ClearByOwner(ctx, order.OwnerID); err != nil {
		failures = multierr.Append(failures, fmt.Errorf("clear cart: %w", err))
	}

	for _, err := range multierr.Errors(failures) {
		s.logg.Error(ctx, "settlement side effect failed", err)
	}
}

func derefTime(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}

package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/primecutco/primecut-backend/pkg/config"
	dbpkg "github.com/primecutco/primecut-backend/pkg/db"
	"github.com/primecutco/primecut-backend/pkg/db/models"
	"github.com/primecutco/primecut-backend/pkg/enums"
	pkgerrors "github.com/primecutco/primecut-backend/pkg/errors"
	"github.com/primecutco/primecut-backend/pkg/logger"
	"github.com/primecutco/primecut-backend/pkg/outbox"
	"github.com/primecutco/primecut-backend/pkg/outbox/payloads"
	"github.com/primecutco/primecut-backend/pkg/pagination"
)

const mutationMaxAttempts = 3

var errMutationConflict = errors.New("order version conflict")

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Mutation edits an order inside an atomic read-modify-write.
type Mutation func(order *models.Order) error

// TxHook runs in the same transaction after a mutation persists, for
// effects that must commit or roll back with the order (outbox emits).
type TxHook func(tx *gorm.DB, order *models.Order) error

// Store owns the order aggregate. Every mutation path in the engine
// goes through it; concurrent writers to the same order are serialized
// with a version compare-and-swap retried from a fresh read.
type Store struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	pricing config.PricingConfig
	logg    *logger.Logger
}

// NewStore wires the order store with its required dependencies.
func NewStore(repo Repository, tx txRunner, publisher outboxPublisher, pricing config.PricingConfig, logg *logger.Logger) (*Store, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Store{
		repo:    repo,
		tx:      tx,
		outbox:  publisher,
		pricing: pricing,
		logg:    logg,
	}, nil
}

// CreateProvisional persists a pending order from a checkout draft. The
// line items and amounts written here are the snapshot settlement will
// trust; client-submitted totals are never stored.
func (s *Store) CreateProvisional(ctx context.Context, draft Draft) (*models.Order, error) {
	if err := validateDraft(draft); err != nil {
		return nil, err
	}

	items := make([]models.OrderLineItem, 0, len(draft.LineItems))
	for _, item := range draft.LineItems {
		productID := item.ProductID
		items = append(items, models.OrderLineItem{
			ProductID:      &productID,
			Name:           item.Name,
			Cut:            item.Cut,
			WeightGrams:    item.WeightGrams,
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
			TotalCents:     item.UnitPriceCents * item.Qty,
		})
	}

	sessionID := draft.IdempotencyKey
	order := &models.Order{
		OwnerID:           draft.OwnerID,
		IdempotencyKey:    draft.IdempotencyKey,
		ProviderSessionID: &sessionID,
		ShippingMethod:    draft.ShippingMethod,
		PaymentStatus:     enums.PaymentStatusPending,
		Status:            enums.OrderStatusPending,
		ShippingAddress:   draft.ShippingAddress,
		Coupon:            draft.Coupon,
		Notes:             draft.Notes,
		LineItems:         items,
	}
	ComputeAmounts(items, draft.Coupon, draft.ShippingMethod, s.pricing).Apply(order)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, order); err != nil {
			if dbpkg.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeIdempotency, err, "order already exists for payment session")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventOrderCreated,
			AggregateType: enums.OutboxAggregateOrder,
			AggregateID:   order.ID,
			Data: payloads.OrderCreatedEvent{
				OrderID:    order.ID,
				OwnerID:    order.OwnerID,
				TotalCents: order.TotalCents,
			},
		})
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func validateDraft(draft Draft) error {
	if draft.OwnerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if draft.IdempotencyKey == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment session id required")
	}
	if !draft.ShippingMethod.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping method required")
	}
	if len(draft.LineItems) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one line item")
	}
	for _, item := range draft.LineItems {
		if item.Qty < 1 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line item quantity must be at least 1")
		}
		if item.UnitPriceCents < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line item price cannot be negative")
		}
	}
	if draft.ShippingMethod == enums.ShippingMethodCarrierDelivery {
		if draft.ShippingAddress == nil || !draft.ShippingAddress.IsComplete() {
			return pkgerrors.New(pkgerrors.CodeValidation, "complete shipping address required for delivery")
		}
	}
	return nil
}

// FindByID loads the order and its line items.
func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return order, nil
}

// FindByIdempotencyKey resolves the order created for a payment session.
func (s *Store) FindByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key required")
	}
	order, err := s.repo.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return order, nil
}

// FindByProviderOrderID resolves the order a carrier webhook refers to.
func (s *Store) FindByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Order, error) {
	if providerOrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "provider order id required")
	}
	order, err := s.repo.FindByProviderOrderID(ctx, providerOrderID)
	if err != nil {
		return nil, mapLookupError(err)
	}
	return order, nil
}

// ListByOwner pages through a customer's orders, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID uuid.UUID, params pagination.Params) ([]models.Order, string, error) {
	if ownerID == uuid.Nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	rows, next, err := s.repo.ListByOwner(ctx, ownerID, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return rows, cursor, nil
}

// ListAll pages through every order for the admin console.
func (s *Store) ListAll(ctx context.Context, params pagination.Params) ([]models.Order, string, error) {
	rows, next, err := s.repo.ListAll(ctx, params)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	return rows, cursor, nil
}

// ApplyMutation runs an atomic read-modify-write against one order.
// The mutation re-executes from a fresh read when another writer bumps
// the version first; hooks run in the same transaction after the write
// sticks.
func (s *Store) ApplyMutation(ctx context.Context, orderID uuid.UUID, mutate Mutation, hooks ...TxHook) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if mutate == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "mutation required")
	}

	var updated *models.Order
	for attempt := 0; attempt < mutationMaxAttempts; attempt++ {
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := repo.FindByID(ctx, orderID)
			if err != nil {
				return mapLookupError(err)
			}

			expected := order.Version
			if err := mutate(order); err != nil {
				return err
			}

			order.Version = expected + 1
			ok, err := repo.UpdateVersioned(ctx, order, expected)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
			}
			if !ok {
				return errMutationConflict
			}

			for _, hook := range hooks {
				if hook == nil {
					continue
				}
				if err := hook(tx, order); err != nil {
					return err
				}
			}
			updated = order
			return nil
		})
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, errMutationConflict) {
			logCtx := s.logg.WithOrderID(ctx, orderID.String())
			s.logg.Warn(s.logg.WithField(logCtx, "attempt", attempt+1), "order mutation lost version race, retrying")
			continue
		}
		return nil, err
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, "order is being modified concurrently, try again")
}

// DeleteProvisional removes the pending order behind an abandoned
// payment session. Settled orders are never deleted.
func (s *Store) DeleteProvisional(ctx context.Context, idempotencyKey string) (bool, error) {
	order, err := s.FindByIdempotencyKey(ctx, idempotencyKey)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return false, nil
		}
		return false, err
	}
	if order.PaymentStatus != enums.PaymentStatusPending {
		return false, nil
	}
	deleted, err := s.repo.DeletePending(ctx, order.ID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete provisional order")
	}
	return deleted, nil
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

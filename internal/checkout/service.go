// Package checkout turns a validated cart into a payment session and
// its provisional order.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/primecutco/primecut-backend/internal/coupons"
	"github.com/primecutco/primecut-backend/internal/inventory"
	"github.com/primecutco/primecut-backend/internal/orders"
	"github.com/primecutco/primecut-backend/pkg/config"
	"github.com/primecutco/primecut-backend/pkg/db/models"
	"github.com/primecutco/primecut-backend/pkg/enums"
	pkgerrors "github.com/primecutco/primecut-backend/pkg/errors"
	"github.com/primecutco/primecut-backend/pkg/logger"
	"github.com/primecutco/primecut-backend/pkg/types"
)

type orderStore interface {
	CreateProvisional(ctx context.Context, draft orders.Draft) (*models.Order, error)
}

// ItemInput is one requested product line.
type ItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Qty       int       `json:"qty" validate:"required,min=1"`
}

// SessionInput is the checkout request after authentication.
type SessionInput struct {
	OwnerID         uuid.UUID
	ShippingMethod  string
	ShippingAddress *types.ShippingAddress
	CouponCode      string
	Items           []ItemInput
	Notes           *string
}

// SessionResult points the client at the hosted payment page.
type SessionResult struct {
	OrderID     uuid.UUID `json:"order_id"`
	SessionID   string    `json:"session_id"`
	CheckoutURL string    `json:"checkout_url"`
	TotalCents  int       `json:"total_cents"`
}

// Service builds payment sessions and their provisional orders.
type Service struct {
	store     orderStore
	inventory inventory.Repository
	coupons   coupons.Repository
	stripe    StripeCheckoutClient
	stripeCfg config.StripeConfig
	pricing   config.PricingConfig
	logg      *logger.Logger
}

// Params collects the checkout dependencies.
type Params struct {
	Store     orderStore
	Inventory inventory.Repository
	Coupons   coupons.Repository
	Stripe    StripeCheckoutClient
	StripeCfg config.StripeConfig
	Pricing   config.PricingConfig
	Logger    *logger.Logger
}

// NewService wires the checkout service.
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
	if params.Stripe == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		store:     params.Store,
		inventory: params.Inventory,
		coupons:   params.Coupons,
		stripe:    params.Stripe,
		stripeCfg: params.StripeCfg,
		pricing:   params.Pricing,
		logg:      params.Logger,
	}, nil
}

// CreateSession prices the requested items from the catalog, opens the
// hosted payment session, and persists the provisional order keyed by
// the session id. Prices come from the product table at this moment and
// are frozen onto the order; the client never supplies an amount.
func (s *Service) CreateSession(ctx context.Context, input SessionInput) (*SessionResult, error) {
	method, err := s.validateInput(input)
	if err != nil {
		return nil, err
	}

	lineItems, err := s.priceItems(ctx, input.Items)
	if err != nil {
		return nil, err
	}

	couponRef, err := s.resolveCoupon(ctx, input.CouponCode)
	if err != nil {
		return nil, err
	}

	modelItems := make([]models.OrderLineItem, 0, len(lineItems))
	for _, item := range lineItems {
		modelItems = append(modelItems, models.OrderLineItem{
			UnitPriceCents: item.UnitPriceCents,
			Qty:            item.Qty,
		})
	}
	amounts := orders.ComputeAmounts(modelItems, couponRef, method, s.pricing)
	if couponRef != nil {
		couponRef.DiscountCents = amounts.DiscountCents
	}

	session, err := s.stripe.CreateSession(ctx, s.sessionParams(input.OwnerID, lineItems, amounts))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUpstream, err, "create payment session")
	}

	order, err := s.store.CreateProvisional(ctx, orders.Draft{
		OwnerID:         input.OwnerID,
		IdempotencyKey:  session.ID,
		ShippingMethod:  method,
		ShippingAddress: input.ShippingAddress,
		Coupon:          couponRef,
		LineItems:       lineItems,
		Notes:           input.Notes,
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "checkout session created")
	return &SessionResult{
		OrderID:     order.ID,
		SessionID:   session.ID,
		CheckoutURL: session.URL,
		TotalCents:  order.TotalCents,
	}, nil
}

func (s *Service) validateInput(input SessionInput) (enums.ShippingMethod, error) {
	if input.OwnerID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if len(input.Items) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "checkout requires at least one item")
	}
	for _, item := range input.Items {
		if item.ProductID == uuid.Nil || item.Qty < 1 {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "each item needs a product and a positive quantity")
		}
	}

	method, err := enums.ParseShippingMethod(strings.TrimSpace(input.ShippingMethod))
	if err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "unknown shipping method")
	}
	if method == enums.ShippingMethodCarrierDelivery {
		if input.ShippingAddress == nil || !input.ShippingAddress.IsComplete() {
			return "", pkgerrors.New(pkgerrors.CodeValidation, "carrier delivery requires a complete shipping address")
		}
	}
	return method, nil
}

// priceItems snapshots catalog prices for the requested products.
// Inactive or missing products fail the checkout rather than silently
// pricing at zero.
func (s *Service) priceItems(ctx context.Context, items []ItemInput) ([]orders.DraftLineItem, error) {
	ids := make([]uuid.UUID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ProductID)
	}

	products, err := s.inventory.FindActiveProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	catalog := make(map[uuid.UUID]models.Product, len(products))
	for _, product := range products {
		catalog[product.ID] = product
	}

	lineItems := make([]orders.DraftLineItem, 0, len(items))
	for _, item := range items {
		product, ok := catalog[item.ProductID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("product %s is not available", item.ProductID))
		}
		if product.StockQty < item.Qty {
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("not enough stock for %s", product.Name))
		}
		lineItems = append(lineItems, orders.DraftLineItem{
			ProductID:      product.ID,
			Name:           product.Name,
			Cut:            product.Cut,
			WeightGrams:    product.WeightGrams,
			UnitPriceCents: product.PriceCents,
			Qty:            item.Qty,
		})
	}
	return lineItems, nil
}

func (s *Service) resolveCoupon(ctx context.Context, code string) (*types.CouponRef, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return nil, nil
	}

	coupon, err := s.coupons.FindByCode(ctx, trimmed)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is not valid")
		}
		return nil, err
	}
	if !coupon.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon is no longer active")
	}
	if coupon.ExpiresAt != nil && coupon.ExpiresAt.Before(time.Now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon has expired")
	}
	if coupon.MaxRedemptions != nil && coupon.UsedCount >= *coupon.MaxRedemptions {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon redemption limit reached")
	}

	return &types.CouponRef{
		Code:  coupon.Code,
		Type:  coupon.Type,
		Value: coupon.Value,
	}, nil
}

// sessionParams builds the hosted-page line items. With a discount in
// play the session carries one consolidated line, since the itemized
// prices no longer sum to the charge.
func (s *Service) sessionParams(ownerID uuid.UUID, items []orders.DraftLineItem, amounts orders.Amounts) *stripe.CheckoutSessionParams {
	currency := s.stripeCfg.Currency
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(ownerID.String()),
		SuccessURL:        stripe.String(s.stripeCfg.SuccessURL),
		CancelURL:         stripe.String(s.stripeCfg.CancelURL),
		Metadata: map[string]string{
			"owner_id": ownerID.String(),
		},
	}

	if amounts.DiscountCents > 0 {
		params.LineItems = []*stripe.CheckoutSessionLineItemParams{
			sessionLine(currency, "Prime Cut order (discount applied)", amounts.TotalCents, 1),
		}
		return params
	}

	for _, item := range items {
		params.LineItems = append(params.LineItems,
			sessionLine(currency, item.Name, item.UnitPriceCents, item.Qty))
	}
	if amounts.DeliveryFeeCents > 0 {
		params.LineItems = append(params.LineItems,
			sessionLine(currency, "Delivery fee", amounts.DeliveryFeeCents, 1))
	}
	if amounts.TaxCents > 0 {
		params.LineItems = append(params.LineItems,
			sessionLine(currency, "Tax", amounts.TaxCents, 1))
	}
	return params
}

func sessionLine(currency, name string, unitAmountCents, qty int) *stripe.CheckoutSessionLineItemParams {
	return &stripe.CheckoutSessionLineItemParams{
		Quantity: stripe.Int64(int64(qty)),
		PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(currency),
			UnitAmount: stripe.Int64(int64(unitAmountCents)),
			ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String(name),
			},
		},
	}
}

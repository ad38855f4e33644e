package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/primecutco/primecut-backend/internal/coupons"
	"github.com/primecutco/primecut-backend/internal/inventory"
	"github.com/primecutco/primecut-backend/internal/orders"
	"github.com/primecutco/primecut-backend/pkg/config"
	"github.com/primecutco/primecut-backend/pkg/db/models"
	"github.com/primecutco/primecut-backend/pkg/enums"
	pkgerrors "github.com/primecutco/primecut-backend/pkg/errors"
	"github.com/primecutco/primecut-backend/pkg/logger"
	"github.com/primecutco/primecut-backend/pkg/outbox"
	"github.com/primecutco/primecut-backend/pkg/types"
)

func setupCheckoutTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	schema := []string{
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  idempotency_key TEXT NOT NULL UNIQUE,
  shipping_method TEXT NOT NULL,
  payment_status TEXT NOT NULL DEFAULT 'pending',
  status TEXT NOT NULL DEFAULT 'pending',
  admin_status TEXT,
  subtotal_cents INTEGER NOT NULL,
  discount_cents INTEGER NOT NULL DEFAULT 0,
  delivery_fee_cents INTEGER NOT NULL DEFAULT 0,
  tax_cents INTEGER NOT NULL DEFAULT 0,
  total_cents INTEGER NOT NULL,
  coupon TEXT,
  shipping_address TEXT,
  provider_order_id TEXT,
  delivery_status TEXT,
  delivery_last_update DATETIME,
  driver_info TEXT,
  tracking_url TEXT,
  provider_session_id TEXT,
  notes TEXT,
  version INTEGER NOT NULL DEFAULT 0,
  paid_at DATETIME,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_line_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  product_id TEXT,
  name TEXT NOT NULL,
  cut TEXT,
  weight_grams INTEGER NOT NULL DEFAULT 0,
  unit_price_cents INTEGER NOT NULL,
  qty INTEGER NOT NULL,
  total_cents INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT,
  cut TEXT,
  origin TEXT,
  weight_grams INTEGER NOT NULL DEFAULT 0,
  price_cents INTEGER NOT NULL,
  stock_qty INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS coupons (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  type TEXT NOT NULL,
  value INTEGER NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  max_redemptions INTEGER,
  used_count INTEGER NOT NULL DEFAULT 0,
  expires_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	t.Cleanup(func() {
		for _, table := range []string{"coupons", "products", "order_line_items", "orders"} {
			db.Exec("DELETE FROM " + table)
		}
	})
	return db
}

type checkoutTxRunner struct {
	db *gorm.DB
}

func (r *checkoutTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type checkoutOutbox struct{}

func (o *checkoutOutbox) Emit(_ context.Context, tx *gorm.DB, _ outbox.DomainEvent) error {
	if tx == nil {
		panic("outbox emit requires a transaction")
	}
	return nil
}

type fakeStripe struct {
	err    error
	params []*stripe.CheckoutSessionParams
}

func (f *fakeStripe) CreateSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.params = append(f.params, params)
	return &stripe.CheckoutSession{
		ID:  "cs_test_" + uuid.NewString(),
		URL: "https://checkout.stripe.test/pay",
	}, nil
}

func checkoutPricing() config.PricingConfig {
	return config.PricingConfig{
		TaxRate:              decimal.RequireFromString("0.05"),
		DeliveryFeeCents:     500,
		FreeDeliveryMinCents: 10000,
	}
}

func newCheckoutService(t *testing.T, db *gorm.DB, stripeClient *fakeStripe) *Service {
	t.Helper()

	logg := logger.New(logger.Options{ServiceName: "test"})
	store, err := orders.NewStore(orders.NewRepository(db), &checkoutTxRunner{db: db}, &checkoutOutbox{}, checkoutPricing(), logg)
	require.NoError(t, err)

	svc, err := NewService(Params{
		Store:     store,
		Inventory: inventory.NewRepository(db),
		Coupons:   coupons.NewRepository(db),
		Stripe:    stripeClient,
		StripeCfg: config.StripeConfig{Currency: "hkd", SuccessURL: "https://shop.test/ok", CancelURL: "https://shop.test/back"},
		Pricing:   checkoutPricing(),
		Logger:    logg,
	})
	require.NoError(t, err)
	return svc
}

func seedProduct(t *testing.T, db *gorm.DB, sku string, priceCents, stock int, active bool) *models.Product {
	t.Helper()

	product := &models.Product{
		ID:          uuid.New(),
		SKU:         sku,
		Name:        "Ribeye 300g",
		WeightGrams: 300,
		PriceCents:  priceCents,
		StockQty:    stock,
		IsActive:    active,
	}
	require.NoError(t, db.Create(product).Error)
	return product
}

func completeAddress() *types.ShippingAddress {
	return &types.ShippingAddress{
		Name:       "Chris Wong",
		Line1:      "1 Queen's Road",
		City:       "Hong Kong",
		PostalCode: "999077",
		Country:    "HK",
		Phone:      "+85259876543",
		Lat:        "22.28",
		Lng:        "114.15",
	}
}

func TestCreateSessionHappyPath(t *testing.T) {
	db := setupCheckoutTestDB(t)
	stripeClient := &fakeStripe{}
	svc := newCheckoutService(t, db, stripeClient)

	product := seedProduct(t, db, "RIB-300", 2100, 10, true)

	result, err := svc.CreateSession(context.Background(), SessionInput{
		OwnerID:         uuid.New(),
		ShippingMethod:  "carrier_delivery",
		ShippingAddress: completeAddress(),
		Items:           []ItemInput{{ProductID: product.ID, Qty: 2}},
	})
	require.NoError(t, err)

	// subtotal 4200, 5% tax, 500 delivery fee
	assert.Equal(t, 4910, result.TotalCents)
	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, "https://checkout.stripe.test/pay", result.CheckoutURL)

	var order models.Order
	require.NoError(t, db.Preload("LineItems").First(&order, "id = ?", result.OrderID).Error)
	assert.Equal(t, result.SessionID, order.IdempotencyKey)
	require.NotNil(t, order.ProviderSessionID)
	assert.Equal(t, result.SessionID, *order.ProviderSessionID)
	require.Len(t, order.LineItems, 1)
	assert.Equal(t, 2100, order.LineItems[0].UnitPriceCents)

	// itemized session: product, delivery fee, tax
	require.Len(t, stripeClient.params, 1)
	assert.Len(t, stripeClient.params[0].LineItems, 3)
}

func TestCreateSessionValidation(t *testing.T) {
	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db, &fakeStripe{})
	ctx := context.Background()
	product := seedProduct(t, db, "RIB-301", 2100, 10, true)

	cases := map[string]SessionInput{
		"no items": {
			OwnerID:        uuid.New(),
			ShippingMethod: "pickup",
		},
		"unknown method": {
			OwnerID:        uuid.New(),
			ShippingMethod: "teleport",
			Items:          []ItemInput{{ProductID: product.ID, Qty: 1}},
		},
		"carrier without address": {
			OwnerID:        uuid.New(),
			ShippingMethod: "carrier_delivery",
			Items:          []ItemInput{{ProductID: product.ID, Qty: 1}},
		},
		"zero quantity": {
			OwnerID:        uuid.New(),
			ShippingMethod: "pickup",
			Items:          []ItemInput{{ProductID: product.ID, Qty: 0}},
		},
	}
	for name, input := range cases {
		_, err := svc.CreateSession(ctx, input)
		require.Error(t, err, name)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code(), name)
	}
}

func TestCreateSessionUnavailableProduct(t *testing.T) {
	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db, &fakeStripe{})
	ctx := context.Background()

	inactive := seedProduct(t, db, "RIB-302", 2100, 10, false)
	_, err := svc.CreateSession(ctx, SessionInput{
		OwnerID:        uuid.New(),
		ShippingMethod: "pickup",
		Items:          []ItemInput{{ProductID: inactive.ID, Qty: 1}},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())

	scarce := seedProduct(t, db, "RIB-303", 2100, 1, true)
	_, err = svc.CreateSession(ctx, SessionInput{
		OwnerID:        uuid.New(),
		ShippingMethod: "pickup",
		Items:          []ItemInput{{ProductID: scarce.ID, Qty: 5}},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, pkgerrors.As(err).Code())
}

func TestCreateSessionWithCoupon(t *testing.T) {
	db := setupCheckoutTestDB(t)
	stripeClient := &fakeStripe{}
	svc := newCheckoutService(t, db, stripeClient)

	product := seedProduct(t, db, "RIB-304", 2100, 10, true)
	require.NoError(t, db.Create(&models.Coupon{
		ID:       uuid.New(),
		Code:     "WELCOME10",
		Type:     enums.CouponTypePercentage,
		Value:    10,
		IsActive: true,
	}).Error)

	result, err := svc.CreateSession(context.Background(), SessionInput{
		OwnerID:        uuid.New(),
		ShippingMethod: "pickup",
		CouponCode:     "welcome10",
		Items:          []ItemInput{{ProductID: product.ID, Qty: 2}},
	})
	require.NoError(t, err)

	// subtotal 4200, 10% off, 5% tax on 3780
	assert.Equal(t, 3969, result.TotalCents)

	var order models.Order
	require.NoError(t, db.First(&order, "id = ?", result.OrderID).Error)
	require.NotNil(t, order.Coupon)
	assert.Equal(t, 420, order.Coupon.DiscountCents)

	// discounted sessions collapse to one consolidated line
	require.Len(t, stripeClient.params, 1)
	assert.Len(t, stripeClient.params[0].LineItems, 1)
}

func TestCreateSessionRejectsDeadCoupons(t *testing.T) {
	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db, &fakeStripe{})
	ctx := context.Background()
	product := seedProduct(t, db, "RIB-305", 2100, 10, true)

	expired := time.Now().UTC().Add(-time.Hour)
	limit := 1
	for _, coupon := range []*models.Coupon{
		{ID: uuid.New(), Code: "GONE", Type: enums.CouponTypeFixed, Value: 100, IsActive: false},
		{ID: uuid.New(), Code: "LATE", Type: enums.CouponTypeFixed, Value: 100, IsActive: true, ExpiresAt: &expired},
		{ID: uuid.New(), Code: "FULL", Type: enums.CouponTypeFixed, Value: 100, IsActive: true, MaxRedemptions: &limit, UsedCount: 1},
	} {
		require.NoError(t, db.Create(coupon).Error)
	}

	for _, code := range []string{"GONE", "LATE", "FULL", "NEVER_EXISTED"} {
		_, err := svc.CreateSession(ctx, SessionInput{
			OwnerID:        uuid.New(),
			ShippingMethod: "pickup",
			CouponCode:     code,
			Items:          []ItemInput{{ProductID: product.ID, Qty: 1}},
		})
		require.Error(t, err, code)
		assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code(), code)
	}
}

func TestCreateSessionStripeFailureLeavesNoOrder(t *testing.T) {
	db := setupCheckoutTestDB(t)
	svc := newCheckoutService(t, db, &fakeStripe{err: pkgerrors.New(pkgerrors.CodeUpstream, "stripe down")})

	product := seedProduct(t, db, "RIB-306", 2100, 10, true)
	_, err := svc.CreateSession(context.Background(), SessionInput{
		OwnerID:        uuid.New(),
		ShippingMethod: "pickup",
		Items:          []ItemInput{{ProductID: product.ID, Qty: 1}},
	})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUpstream, pkgerrors.As(err).Code())

	var count int64
	require.NoError(t, db.Model(&models.Order{}).Count(&count).Error)
	assert.Zero(t, count)
}

package settlement

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/primecutco/primecut-backend/internal/cart"
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

func setupSettlementTestDB(t *testing.T) *gorm.DB {
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
		`CREATE TABLE IF NOT EXISTS coupon_redemptions (
  id TEXT PRIMARY KEY,
  coupon_id TEXT NOT NULL,
  order_id TEXT NOT NULL UNIQUE,
  user_id TEXT NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS cart_records (
  id TEXT PRIMARY KEY,
  owner_id TEXT NOT NULL,
  cleared_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  unit_price_cents INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	}
	for _, stmt := range schema {
		require.NoError(t, db.Exec(stmt).Error)
	}
	t.Cleanup(func() {
		for _, table := range []string{
			"cart_items", "cart_records", "coupon_redemptions",
			"coupons", "products", "order_line_items", "orders",
		} {
			db.Exec("DELETE FROM " + table)
		}
	})
	return db
}

type settlementTxRunner struct {
	db *gorm.DB
}

func (r *settlementTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type settlementOutbox struct {
	events []outbox.DomainEvent
}

func (o *settlementOutbox) Emit(_ context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if tx == nil {
		panic("outbox emit requires a transaction")
	}
	o.events = append(o.events, event)
	return nil
}

func settlementPricing() config.PricingConfig {
	return config.PricingConfig{
		TaxRate:              decimal.RequireFromString("0.05"),
		DeliveryFeeCents:     500,
		FreeDeliveryMinCents: 10000,
	}
}

type settlementFixture struct {
	db      *gorm.DB
	svc     *Service
	store   *orders.Store
	sink    *settlementOutbox
	product *models.Product
}

func newSettlementFixture(t *testing.T) *settlementFixture {
	t.Helper()

	db := setupSettlementTestDB(t)
	sink := &settlementOutbox{}
	logg := logger.New(logger.Options{ServiceName: "test"})

	store, err := orders.NewStore(orders.NewRepository(db), &settlementTxRunner{db: db}, sink, settlementPricing(), logg)
	require.NoError(t, err)

	svc, err := NewService(Params{
		Store:     store,
		Inventory: inventory.NewRepository(db),
		Coupons:   coupons.NewRepository(db),
		Carts:     cart.NewRepository(db),
		Outbox:    sink,
		Pricing:   settlementPricing(),
		Logger:    logg,
	})
	require.NoError(t, err)

	product := &models.Product{
		ID:         uuid.New(),
		SKU:        "RIB-300",
		Name:       "Ribeye 300g",
		PriceCents: 2100,
		StockQty:   10,
		IsActive:   true,
	}
	require.NoError(t, db.Create(product).Error)

	return &settlementFixture{db: db, svc: svc, store: store, sink: sink, product: product}
}

func (f *settlementFixture) createOrder(t *testing.T, key string, draftMutators ...func(*orders.Draft)) *models.Order {
	t.Helper()

	draft := orders.Draft{
		OwnerID:        uuid.New(),
		IdempotencyKey: key,
		ShippingMethod: enums.ShippingMethodCarrierDelivery,
		ShippingAddress: &types.ShippingAddress{
			Line1:      "1 Queen's Road",
			City:       "Hong Kong",
			PostalCode: "999077",
			Country:    "HK",
			Phone:      "+85259876543",
			Lat:        "22.28",
			Lng:        "114.15",
		},
		LineItems: []orders.DraftLineItem{
			{ProductID: f.product.ID, Name: f.product.Name, WeightGrams: 300, UnitPriceCents: 2100, Qty: 2},
		},
	}
	for _, mutate := range draftMutators {
		mutate(&draft)
	}

	order, err := f.store.CreateProvisional(context.Background(), draft)
	require.NoError(t, err)
	return order
}

func TestSettleMarksPaidAndRunsSideEffects(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	coupon := &models.Coupon{
		ID:       uuid.New(),
		Code:     "WELCOME10",
		Type:     enums.CouponTypePercentage,
		Value:    10,
		IsActive: true,
	}
	require.NoError(t, f.db.Create(coupon).Error)

	order := f.createOrder(t, "cs_test_settle", func(d *orders.Draft) {
		d.Coupon = &types.CouponRef{Code: "WELCOME10", Type: enums.CouponTypePercentage, Value: 10, DiscountCents: 420}
	})

	cartRecord := &models.CartRecord{ID: uuid.New(), OwnerID: order.OwnerID}
	require.NoError(t, f.db.Create(cartRecord).Error)
	require.NoError(t, f.db.Create(&models.CartItem{
		ID: uuid.New(), CartID: cartRecord.ID, ProductID: f.product.ID, Quantity: 2, UnitPriceCents: 2100,
	}).Error)

	// subtotal 4200, 10% off, 5% tax on 3780, 500 delivery fee
	result, err := f.svc.Settle(ctx, Input{IdempotencyKey: "cs_test_settle", ConfirmedAmountCents: 4469})
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)

	settled := result.Order
	assert.Equal(t, enums.PaymentStatusPaid, settled.PaymentStatus)
	assert.Equal(t, enums.OrderStatusProcessing, settled.Status)
	require.NotNil(t, settled.PaidAt)
	require.NotNil(t, settled.DeliveryStatus)
	assert.Equal(t, enums.DeliveryStatusAwaitingPlacement, *settled.DeliveryStatus)
	assert.Equal(t, 4469, settled.TotalCents)

	paidEvents := 0
	for _, event := range f.sink.events {
		if event.EventType == enums.OutboxEventOrderPaid {
			paidEvents++
		}
	}
	assert.Equal(t, 1, paidEvents)

	var product models.Product
	require.NoError(t, f.db.First(&product, "id = ?", f.product.ID).Error)
	assert.Equal(t, 8, product.StockQty)

	var stored models.Coupon
	require.NoError(t, f.db.First(&stored, "id = ?", coupon.ID).Error)
	assert.Equal(t, 1, stored.UsedCount)

	var cleared models.CartRecord
	require.NoError(t, f.db.First(&cleared, "id = ?", cartRecord.ID).Error)
	assert.NotNil(t, cleared.ClearedAt)
}

func TestSettleReplayReturnsWithoutSideEffects(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	f.createOrder(t, "cs_test_replay")

	first, err := f.svc.Settle(ctx, Input{IdempotencyKey: "cs_test_replay", ConfirmedAmountCents: 4910})
	require.NoError(t, err)
	require.False(t, first.AlreadyProcessed)

	second, err := f.svc.Settle(ctx, Input{IdempotencyKey: "cs_test_replay", ConfirmedAmountCents: 4910})
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, first.Order.TotalCents, second.Order.TotalCents)

	// Stock moved exactly once across both deliveries of the event.
	var product models.Product
	require.NoError(t, f.db.First(&product, "id = ?", f.product.ID).Error)
	assert.Equal(t, 8, product.StockQty)
}

func TestSettleUnknownSession(t *testing.T) {
	f := newSettlementFixture(t)

	_, err := f.svc.Settle(context.Background(), Input{IdempotencyKey: "cs_test_missing", ConfirmedAmountCents: 100})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}

func TestSettleRecomputedTotalWins(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	f.createOrder(t, "cs_test_tamper")

	// A tampered confirmed amount never overrides the snapshot pricing.
	result, err := f.svc.Settle(ctx, Input{IdempotencyKey: "cs_test_tamper", ConfirmedAmountCents: 1})
	require.NoError(t, err)
	assert.Equal(t, 4910, result.Order.TotalCents)
	assert.Equal(t, 210, result.Order.TaxCents)
	assert.Equal(t, 500, result.Order.DeliveryFeeCents)
}

func TestSettleSideEffectFailureKeepsPayment(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	missingProduct := uuid.New()
	f.createOrder(t, "cs_test_soft_fail", func(d *orders.Draft) {
		d.LineItems = []orders.DraftLineItem{
			{ProductID: missingProduct, Name: "Discontinued Cut", UnitPriceCents: 900, Qty: 1},
		}
	})

	result, err := f.svc.Settle(ctx, Input{IdempotencyKey: "cs_test_soft_fail", ConfirmedAmountCents: 1445})
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, result.Order.PaymentStatus)
}

func TestSettlePickupOrderSkipsDeliveryAxis(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	f.createOrder(t, "cs_test_pickup", func(d *orders.Draft) {
		d.ShippingMethod = enums.ShippingMethodPickup
		d.ShippingAddress = nil
	})

	result, err := f.svc.Settle(ctx, Input{IdempotencyKey: "cs_test_pickup", ConfirmedAmountCents: 4410})
	require.NoError(t, err)
	assert.Nil(t, result.Order.DeliveryStatus)
	assert.Equal(t, 0, result.Order.DeliveryFeeCents)
	assert.Equal(t, 4410, result.Order.TotalCents)
}

func TestSettleRefundedOrderRejected(t *testing.T) {
	f := newSettlementFixture(t)
	ctx := context.Background()

	order := f.createOrder(t, "cs_test_refunded")
	require.NoError(t, f.db.Model(&models.Order{}).
		Where("id = ?", order.ID).
		UpdateColumn("payment_status", enums.PaymentStatusRefunded).Error)

	_, err := f.svc.Settle(ctx, Input{IdempotencyKey: "cs_test_refunded", ConfirmedAmountCents: 4910})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodePrecondition, typed.Code())
}

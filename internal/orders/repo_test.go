package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/primecutco/primecut-backend/pkg/db/models"
	"github.com/primecutco/primecut-backend/pkg/enums"
	"github.com/primecutco/primecut-backend/pkg/pagination"
	"github.com/primecutco/primecut-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
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
);`
	orderLineItems := `
CREATE TABLE IF NOT EXISTS order_line_items (
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
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec(orderLineItems).Error)
	t.Cleanup(func() {
		db.Exec("DELETE FROM order_line_items")
		db.Exec("DELETE FROM orders")
	})
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, owner uuid.UUID, key string, created time.Time) *models.Order {
	t.Helper()

	cut := "ribeye"
	order := &models.Order{
		ID:             uuid.New(),
		OwnerID:        owner,
		IdempotencyKey: key,
		ShippingMethod: enums.ShippingMethodCarrierDelivery,
		PaymentStatus:  enums.PaymentStatusPending,
		Status:         enums.OrderStatusPending,
		SubtotalCents:  4200,
		TotalCents:     4200,
		ShippingAddress: &types.ShippingAddress{
			Line1:      "1 Queen's Road",
			City:       "Hong Kong",
			PostalCode: "999077",
			Country:    "HK",
			Phone:      "+85259876543",
			Lat:        "22.28",
			Lng:        "114.15",
		},
		LineItems: []models.OrderLineItem{
			{
				ID:             uuid.New(),
				Name:           "Ribeye 300g",
				Cut:            &cut,
				WeightGrams:    300,
				UnitPriceCents: 2100,
				Qty:            2,
				TotalCents:     4200,
			},
		},
		CreatedAt: created,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepositoryCreateAndFindByIdempotencyKey(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	seeded := seedOrder(t, db, uuid.New(), "cs_test_abc", time.Now().UTC())

	found, err := repo.FindByIdempotencyKey(ctx, "cs_test_abc")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, found.ID)
	require.Len(t, found.LineItems, 1)
	assert.Equal(t, "Ribeye 300g", found.LineItems[0].Name)

	_, err = repo.FindByIdempotencyKey(ctx, "cs_test_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryFindByProviderOrderID(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, uuid.New(), "cs_test_provider", time.Now().UTC())
	providerID := "lal-123"
	order.ProviderOrderID = &providerID
	require.NoError(t, db.Save(order).Error)

	found, err := repo.FindByProviderOrderID(ctx, "lal-123")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = repo.FindByProviderOrderID(ctx, "lal-missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryUpdateVersionedCAS(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, uuid.New(), "cs_test_cas", time.Now().UTC())

	order.PaymentStatus = enums.PaymentStatusPaid
	order.Version = 1
	ok, err := repo.UpdateVersioned(ctx, order, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	// A writer holding the stale version must lose.
	stale := *order
	stale.Status = enums.OrderStatusCancelled
	stale.Version = 1
	ok, err = repo.UpdateVersioned(ctx, &stale, 0)
	require.NoError(t, err)
	assert.False(t, ok)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentStatusPaid, found.PaymentStatus)
	assert.Equal(t, enums.OrderStatusPending, found.Status)
	assert.Equal(t, 1, found.Version)
}

func TestRepositoryListByOwnerPaginates(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	owner := uuid.New()
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		seedOrder(t, db, owner, uuid.NewString(), base.Add(time.Duration(i)*time.Minute))
	}
	seedOrder(t, db, uuid.New(), uuid.NewString(), base)

	rows, next, err := repo.ListByOwner(ctx, owner, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, next)
	assert.True(t, rows[0].CreatedAt.After(rows[1].CreatedAt))

	rest, last, err := repo.ListByOwner(ctx, owner, pagination.Params{
		Limit:  2,
		Cursor: pagination.EncodeCursor(*next),
	})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Nil(t, last)
}

func TestRepositoryDeletePendingOnly(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	pending := seedOrder(t, db, uuid.New(), "cs_test_pending", time.Now().UTC())
	deleted, err := repo.DeletePending(ctx, pending.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	paid := seedOrder(t, db, uuid.New(), "cs_test_paid", time.Now().UTC())
	paid.PaymentStatus = enums.PaymentStatusPaid
	paid.Status = enums.OrderStatusProcessing
	require.NoError(t, db.Save(paid).Error)

	deleted, err = repo.DeletePending(ctx, paid.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

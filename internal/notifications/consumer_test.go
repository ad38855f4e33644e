package notifications

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"

	"github.com/primecutco/primecut-backend/pkg/enums"
	"github.com/primecutco/primecut-backend/pkg/logger"
	"github.com/primecutco/primecut-backend/pkg/outbox/payloads"
)

func newTestConsumer(repo *fakeRepository, adminIDs ...uuid.UUID) *Consumer {
	return &Consumer{
		repo:         repo,
		adminUserIDs: adminIDs,
		logg:         logger.New(logger.Options{ServiceName: "test"}),
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return raw
}

func TestConsumer_OrderPaidNotifiesEveryAdmin(t *testing.T) {
	repo := &fakeRepository{}
	adminA, adminB := uuid.New(), uuid.New()
	consumer := newTestConsumer(repo, adminA, adminB)

	payload := mustJSON(t, payloads.OrderPaidEvent{
		OrderID:    uuid.New(),
		OwnerID:    uuid.New(),
		TotalCents: 4910,
	})
	if err := consumer.handleEvent(context.Background(), enums.OutboxEventOrderPaid, payload, context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.created) != 2 {
		t.Fatalf("expected 2 admin notifications, got %d", len(repo.created))
	}
	if repo.created[0].UserID != adminA || repo.created[1].UserID != adminB {
		t.Fatal("notifications not addressed to configured admins")
	}
	if repo.created[0].Type != enums.NotificationTypeOrderAlert {
		t.Fatalf("expected order_alert, got %s", repo.created[0].Type)
	}
}

func TestConsumer_OrderPaidWithoutAdminsIsNoOp(t *testing.T) {
	repo := &fakeRepository{}
	consumer := newTestConsumer(repo)

	payload := mustJSON(t, payloads.OrderPaidEvent{OrderID: uuid.New(), TotalCents: 100})
	if err := consumer.handleEvent(context.Background(), enums.OutboxEventOrderPaid, payload, context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no notifications, got %d", len(repo.created))
	}
}

func TestConsumer_DeliveryUpdateNotifiesOwner(t *testing.T) {
	repo := &fakeRepository{}
	consumer := newTestConsumer(repo, uuid.New())
	owner := uuid.New()

	payload := mustJSON(t, payloads.DeliveryUpdatedEvent{
		OrderID:        uuid.New(),
		OwnerID:        owner,
		DeliveryStatus: enums.DeliveryStatusPickedUp,
		ComputedStatus: enums.ComputedStatusPickedUp,
	})
	if err := consumer.handleEvent(context.Background(), enums.OutboxEventOrderDeliveryUpdated, payload, context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(repo.created))
	}
	created := repo.created[0]
	if created.UserID != owner {
		t.Fatal("notification not addressed to the order owner")
	}
	if created.Type != enums.NotificationTypeDeliveryUpdate {
		t.Fatalf("expected delivery_update, got %s", created.Type)
	}
	if created.Message != "Your order is now picked up." {
		t.Fatalf("unexpected message %q", created.Message)
	}
}

func TestConsumer_AdminTransitionNotifiesOwner(t *testing.T) {
	repo := &fakeRepository{}
	consumer := newTestConsumer(repo)
	owner := uuid.New()

	payload := mustJSON(t, payloads.AdminTransitionedEvent{
		OrderID:        uuid.New(),
		OwnerID:        owner,
		To:             enums.AdminStatusPreparing,
		ComputedStatus: enums.ComputedStatusOrderPreparing,
	})
	if err := consumer.handleEvent(context.Background(), enums.OutboxEventOrderAdminTransitioned, payload, context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.created) != 1 || repo.created[0].UserID != owner {
		t.Fatal("expected one owner notification")
	}
}

func TestConsumer_UnhandledEventTypeSkipped(t *testing.T) {
	repo := &fakeRepository{}
	consumer := newTestConsumer(repo)

	payload := mustJSON(t, payloads.OrderCreatedEvent{OrderID: uuid.New()})
	if err := consumer.handleEvent(context.Background(), enums.OutboxEventOrderCreated, payload, context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no notifications, got %d", len(repo.created))
	}
}

func TestConsumer_MalformedPayloadSurfacesError(t *testing.T) {
	repo := &fakeRepository{}
	consumer := newTestConsumer(repo, uuid.New())

	err := consumer.handleEvent(context.Background(), enums.OutboxEventOrderPaid, json.RawMessage(`{"total_cents": "oops"`), context.Background())
	if err == nil {
		t.Fatal("expected decode error")
	}
}

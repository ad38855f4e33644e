package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/primecutco/primecut-backend/internal/settlement"
	"github.com/primecutco/primecut-backend/pkg/db/models"
	pkgerrors "github.com/primecutco/primecut-backend/pkg/errors"
	"github.com/primecutco/primecut-backend/pkg/logger"
)

type stubSettler struct {
	inputs []settlement.Input
	result *settlement.Result
	err    error
}

func (s *stubSettler) Settle(_ context.Context, input settlement.Input) (*settlement.Result, error) {
	s.inputs = append(s.inputs, input)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubProvisionalStore struct {
	deletedKeys []string
	deleted     bool
	err         error
}

func (s *stubProvisionalStore) DeleteProvisional(_ context.Context, key string) (bool, error) {
	s.deletedKeys = append(s.deletedKeys, key)
	return s.deleted, s.err
}

func newWebhookService(t *testing.T, settler *stubSettler, orders *stubProvisionalStore) *Service {
	t.Helper()
	service, err := NewService(ServiceParams{
		Settlement: settler,
		Orders:     orders,
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return service
}

func sessionEvent(t *testing.T, eventType stripe.EventType, session *stripe.CheckoutSession) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(session)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func TestService_HandleCompletedSessionSettles(t *testing.T) {
	settler := &stubSettler{
		result: &settlement.Result{Order: &models.Order{ID: uuid.New()}},
	}
	orders := &stubProvisionalStore{}
	service := newWebhookService(t, settler, orders)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, &stripe.CheckoutSession{
		ID:          "cs_live_1",
		AmountTotal: 4910,
		Metadata:    map[string]string{"owner_id": uuid.NewString()},
	})
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}

	if len(settler.inputs) != 1 {
		t.Fatalf("expected one settlement call, got %d", len(settler.inputs))
	}
	input := settler.inputs[0]
	if input.IdempotencyKey != "cs_live_1" {
		t.Fatalf("unexpected idempotency key %q", input.IdempotencyKey)
	}
	if input.ConfirmedAmountCents != 4910 {
		t.Fatalf("unexpected confirmed amount %d", input.ConfirmedAmountCents)
	}
	if input.ProviderMetadata["provider"] != "stripe" {
		t.Fatalf("expected provider metadata, got %v", input.ProviderMetadata)
	}
	if len(orders.deletedKeys) != 0 {
		t.Fatalf("completed session must not delete orders")
	}
}

func TestService_HandleCompletedSessionSurfacesSettlementError(t *testing.T) {
	settler := &stubSettler{err: pkgerrors.New(pkgerrors.CodePrecondition, "order has a terminal payment state")}
	service := newWebhookService(t, settler, &stubProvisionalStore{})

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionCompleted, &stripe.CheckoutSession{ID: "cs_live_2"})
	err := service.HandleEvent(context.Background(), event)
	if err == nil {
		t.Fatalf("expected settlement error to surface")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodePrecondition {
		t.Fatalf("unexpected error code: %v", err)
	}
}

func TestService_HandleExpiredSessionDeletesProvisional(t *testing.T) {
	orders := &stubProvisionalStore{deleted: true}
	service := newWebhookService(t, &stubSettler{}, orders)

	event := sessionEvent(t, stripe.EventTypeCheckoutSessionExpired, &stripe.CheckoutSession{ID: "cs_live_3"})
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(orders.deletedKeys) != 1 || orders.deletedKeys[0] != "cs_live_3" {
		t.Fatalf("expected delete for cs_live_3, got %v", orders.deletedKeys)
	}
}

func TestService_HandleUnknownEventTypeIsNoOp(t *testing.T) {
	settler := &stubSettler{}
	orders := &stubProvisionalStore{}
	service := newWebhookService(t, settler, orders)

	event := sessionEvent(t, stripe.EventTypePaymentIntentCreated, &stripe.CheckoutSession{ID: "cs_live_4"})
	if err := service.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if len(settler.inputs) != 0 || len(orders.deletedKeys) != 0 {
		t.Fatalf("unknown event types must be ignored")
	}
}

func TestService_RejectsMalformedSession(t *testing.T) {
	service := newWebhookService(t, &stubSettler{}, &stubProvisionalStore{})

	event := &stripe.Event{
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: json.RawMessage(`{"id":""}`)},
	}
	err := service.HandleEvent(context.Background(), event)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error code: %v", err)
	}
}

// Package stripewebhook routes verified Stripe events into the payment
// engine.
package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/stripe/stripe-go/v84"

	"github.com/primecutco/primecut-backend/internal/settlement"
	pkgerrors "github.com/primecutco/primecut-backend/pkg/errors"
	"github.com/primecutco/primecut-backend/pkg/logger"
)

type settler interface {
	Settle(ctx context.Context, input settlement.Input) (*settlement.Result, error)
}

type provisionalStore interface {
	DeleteProvisional(ctx context.Context, idempotencyKey string) (bool, error)
}

type ServiceParams struct {
	Settlement settler
	Orders     provisionalStore
	Logger     *logger.Logger
}

// Service handles the checkout session lifecycle events Stripe sends.
type Service struct {
	settlement settler
	orders     provisionalStore
	logg       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Settlement == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "settlement service required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order store required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		settlement: params.Settlement,
		orders:     params.Orders,
		logg:       params.Logger,
	}, nil
}

// HandleEvent dispatches one verified event. Unrecognized event types
// are acknowledged without action so the endpoint can subscribe broadly.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		return s.settleSession(ctx, session)
	case stripe.EventTypeCheckoutSessionExpired:
		session, err := decodeSession(event)
		if err != nil {
			return err
		}
		return s.expireSession(ctx, session)
	default:
		return nil
	}
}

func (s *Service) settleSession(ctx context.Context, session *stripe.CheckoutSession) error {
	metadata := map[string]string{
		"provider": "stripe",
	}
	if session.PaymentIntent != nil {
		metadata["payment_intent_id"] = session.PaymentIntent.ID
	}
	for key, value := range session.Metadata {
		metadata[key] = value
	}

	result, err := s.settlement.Settle(ctx, settlement.Input{
		IdempotencyKey:       session.ID,
		ConfirmedAmountCents: int(session.AmountTotal),
		ProviderMetadata:     metadata,
	})
	if err != nil {
		return err
	}

	logCtx := s.logg.WithOrderID(ctx, result.Order.ID.String())
	if result.AlreadyProcessed {
		s.logg.Info(logCtx, "checkout session replayed, order already settled")
		return nil
	}
	s.logg.Info(logCtx, "checkout session settled")
	return nil
}

// expireSession drops the provisional order behind an abandoned
// session. A session that settled in the meantime is left alone.
func (s *Service) expireSession(ctx context.Context, session *stripe.CheckoutSession) error {
	deleted, err := s.orders.DeleteProvisional(ctx, session.ID)
	if err != nil {
		return err
	}
	if deleted {
		s.logg.Info(s.logg.WithField(ctx, "session_id", session.ID), "expired checkout session, provisional order removed")
	}
	return nil
}

func decodeSession(event *stripe.Event) (*stripe.CheckoutSession, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}
	if session.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout session id missing")
	}
	return &session, nil
}

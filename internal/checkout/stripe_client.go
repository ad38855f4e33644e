package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	pkgstripe "github.com/primecutco/primecut-backend/pkg/stripe"
)

// StripeCheckoutClient exposes the subset of Stripe operations the
// checkout service needs.
type StripeCheckoutClient interface {
	CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeClientWrapper struct{}

// NewStripeClient wraps the configured Stripe client so the checkout
// service can be tested against a fake.
func NewStripeClient(api *pkgstripe.Client) StripeCheckoutClient {
	if api == nil {
		return nil
	}
	return &stripeClientWrapper{}
}

func (w *stripeClientWrapper) CreateSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params != nil {
		params.Context = ctx
	}
	return session.New(params)
}

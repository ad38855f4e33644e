package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/primecutco/primecut-backend/api/responses"
	"github.com/primecutco/primecut-backend/internal/deliverysync"
	pkgerrors "github.com/primecutco/primecut-backend/pkg/errors"
	"github.com/primecutco/primecut-backend/pkg/lalamove"
	"github.com/primecutco/primecut-backend/pkg/logger"
)

const (
	lalamoveTimestampHeader = "X-Lalamove-Timestamp"
	lalamoveSignatureHeader = "X-Lalamove-Signature"
)

type DeliveryWebhookService interface {
	HandleEvent(ctx context.Context, event *deliverysync.Event) (deliverysync.Outcome, error)
}

// LalamoveWebhook ingests carrier delivery callbacks. Only structurally
// invalid payloads are rejected; anything the reconciler classifies as
// stale, orphaned, or terminal still acks so the carrier stops retrying.
func LalamoveWebhook(svc DeliveryWebhookService, webhookSecret string, guard webhookGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}
		if guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard unavailable"))
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		if webhookSecret != "" {
			timestamp := r.Header.Get(lalamoveTimestampHeader)
			signature := r.Header.Get(lalamoveSignatureHeader)
			if !lalamove.VerifyWebhookSignature(webhookSecret, timestamp, body, signature) {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature"))
				return
			}
		}

		event, err := deliverysync.Normalize(body)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		// Legacy flat payloads may omit the event id; with nothing to
		// dedup on, the event goes straight to the reconciler.
		if event.EventID != "" {
			alreadyProcessed, err := guard.CheckAndMark(ctx, event.EventID)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if alreadyProcessed {
				responses.WriteSuccess(w, map[string]string{"outcome": "duplicate"})
				return
			}
		}

		outcome, err := svc.HandleEvent(ctx, event)
		if err != nil {
			if event.EventID != "" {
				_ = guard.Delete(ctx, event.EventID)
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if logg != nil {
			logCtx := logg.WithFields(ctx, map[string]any{
				"event_id": event.EventID,
				"outcome":  string(outcome),
			})
			logg.Info(logCtx, "lalamove event processed")
		}
		responses.WriteSuccess(w, map[string]string{"outcome": string(outcome)})
	}
}

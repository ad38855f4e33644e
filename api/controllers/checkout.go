package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/primecutco/primecut-backend/api/middleware"
	"github.com/primecutco/primecut-backend/api/responses"
	"github.com/primecutco/primecut-backend/api/validators"
	checkoutsvc "github.com/primecutco/primecut-backend/internal/checkout"
	pkgerrors "github.com/primecutco/primecut-backend/pkg/errors"
	"github.com/primecutco/primecut-backend/pkg/logger"
	"github.com/primecutco/primecut-backend/pkg/types"
)

type checkoutRequest struct {
	ShippingMethod  string                  `json:"shipping_method" validate:"required"`
	ShippingAddress *types.ShippingAddress  `json:"shipping_address,omitempty"`
	CouponCode      string                  `json:"coupon_code,omitempty"`
	Items           []checkoutsvc.ItemInput `json:"items" validate:"required,min=1,dive"`
	Notes           *string                 `json:"notes,omitempty"`
}

// CreateCheckoutSession opens a hosted payment session for the caller's
// requested items and returns the redirect URL.
func CreateCheckoutSession(svc *checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		ownerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateSession(r.Context(), checkoutsvc.SessionInput{
			OwnerID:         ownerID,
			ShippingMethod:  payload.ShippingMethod,
			ShippingAddress: payload.ShippingAddress,
			CouponCode:      payload.CouponCode,
			Items:           payload.Items,
			Notes:           payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func callerID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return id, nil
}

package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/primecutco/primecut-backend/api/responses"
	"github.com/primecutco/primecut-backend/api/validators"
	internalorders "github.com/primecutco/primecut-backend/internal/orders"
	"github.com/primecutco/primecut-backend/internal/status"
	pkgerrors "github.com/primecutco/primecut-backend/pkg/errors"
	"github.com/primecutco/primecut-backend/pkg/logger"
	"github.com/primecutco/primecut-backend/pkg/pagination"
)

type orderListResponse struct {
	Orders     []*internalorders.View `json:"orders"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

// ListOrders returns the caller's orders, newest first.
func ListOrders(store *internalorders.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order store unavailable"))
			return
		}

		ownerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}

		rows, next, err := store.ListByOwner(r.Context(), ownerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		views := make([]*internalorders.View, 0, len(rows))
		for i := range rows {
			order := rows[i]
			views = append(views, internalorders.NewView(&order, status.Compute(&order)))
		}
		responses.WriteSuccess(w, orderListResponse{Orders: views, NextCursor: next})
	}
}

// GetOrder returns one of the caller's orders with its derived status.
func GetOrder(store *internalorders.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order store unavailable"))
			return
		}

		ownerID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := store.FindByID(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if order.OwnerID != ownerID {
			// Hide other customers' orders rather than confirming they exist.
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
			return
		}
		responses.WriteSuccess(w, internalorders.NewView(order, status.Compute(order)))
	}
}

func orderIDParam(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id")
	}
	return id, nil
}

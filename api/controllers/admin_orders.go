package controllers

import (
	"net/http"
	"strings"

	"github.com/primecutco/primecut-backend/api/middleware"
	"github.com/primecutco/primecut-backend/api/responses"
	"github.com/primecutco/primecut-backend/api/validators"
	"github.com/primecutco/primecut-backend/internal/adminflow"
	internalorders "github.com/primecutco/primecut-backend/internal/orders"
	"github.com/primecutco/primecut-backend/internal/status"
	pkgerrors "github.com/primecutco/primecut-backend/pkg/errors"
	"github.com/primecutco/primecut-backend/pkg/logger"
	"github.com/primecutco/primecut-backend/pkg/pagination"
)

// AdminListOrders pages through every order for the fulfillment console.
func AdminListOrders(store *internalorders.Store, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order store unavailable"))
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

		rows, next, err := store.ListAll(r.Context(), params)
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

type adminTransitionRequest struct {
	Status string `json:"status" validate:"required"`
}

// AdminTransitionOrder moves an order through the fulfillment workflow.
func AdminTransitionOrder(svc *adminflow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "admin workflow unavailable"))
			return
		}

		actorID, err := callerID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		orderID, err := orderIDParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload adminTransitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Transition(r.Context(), orderID, payload.Status, actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			logCtx := logg.WithOrderID(r.Context(), orderID.String())
			logg.Info(logg.WithField(logCtx, "actor_role", middleware.RoleFromContext(r.Context())), "admin transition applied")
		}
		responses.WriteSuccess(w, internalorders.NewView(order, status.Compute(order)))
	}
}

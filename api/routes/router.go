package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/primecutco/primecut-backend/api/controllers"
	webhookcontrollers "github.com/primecutco/primecut-backend/api/controllers/webhooks"
	"github.com/primecutco/primecut-backend/api/middleware"
	"github.com/primecutco/primecut-backend/internal/adminflow"
	checkoutsvc "github.com/primecutco/primecut-backend/internal/checkout"
	"github.com/primecutco/primecut-backend/internal/deliverysync"
	"github.com/primecutco/primecut-backend/internal/notifications"
	"github.com/primecutco/primecut-backend/internal/orders"
	internalwebhooks "github.com/primecutco/primecut-backend/internal/webhooks"
	"github.com/primecutco/primecut-backend/pkg/config"
	"github.com/primecutco/primecut-backend/pkg/db"
	"github.com/primecutco/primecut-backend/pkg/logger"
	"github.com/primecutco/primecut-backend/pkg/redis"
	"github.com/primecutco/primecut-backend/pkg/stripe"
)

// Deps carries everything the HTTP surface needs. Grouping them in a
// struct keeps main readable as the engine grows.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	DBPinger db.Pinger
	Redis    *redis.Client

	CheckoutService      *checkoutsvc.Service
	OrderStore           *orders.Store
	NotificationsService notifications.Service
	AdminFlow            *adminflow.Service

	StripeClient         *stripe.Client
	StripeWebhookService webhookcontrollers.StripeWebhookService
	StripeWebhookGuard   *internalwebhooks.IdempotencyGuard

	DeliverySync         *deliverysync.Service
	LalamoveWebhookGuard *internalwebhooks.IdempotencyGuard
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: false,
			MaxAge:           300,
		}),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DBPinger, deps.Redis, logg))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhookService, deps.StripeClient, deps.StripeWebhookGuard, logg))
		r.Post("/lalamove", webhookcontrollers.LalamoveWebhook(deps.DeliverySync, cfg.Lalamove.WebhookSecret, deps.LalamoveWebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Post("/checkout/session", controllers.CreateCheckoutSession(deps.CheckoutService, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.OrderStore, logg))
			r.Get("/{orderId}", controllers.GetOrder(deps.OrderStore, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.NotificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.NotificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.NotificationsService, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireAdmin(logg))
		r.Use(middleware.Idempotency(deps.Redis, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(deps.OrderStore, logg))
			r.Post("/{orderId}/transition", controllers.AdminTransitionOrder(deps.AdminFlow, logg))
		})
	})

	return r
}

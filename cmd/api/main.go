package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/primecutco/primecut-backend/api/routes"
	"github.com/primecutco/primecut-backend/internal/adminflow"
	"github.com/primecutco/primecut-backend/internal/cart"
	checkoutsvc "github.com/primecutco/primecut-backend/internal/checkout"
	"github.com/primecutco/primecut-backend/internal/coupons"
	"github.com/primecutco/primecut-backend/internal/deliverysync"
	"github.com/primecutco/primecut-backend/internal/inventory"
	"github.com/primecutco/primecut-backend/internal/notifications"
	"github.com/primecutco/primecut-backend/internal/orders"
	"github.com/primecutco/primecut-backend/internal/settlement"
	internalwebhooks "github.com/primecutco/primecut-backend/internal/webhooks"
	stripewebhook "github.com/primecutco/primecut-backend/internal/webhooks/stripe"
	"github.com/primecutco/primecut-backend/pkg/config"
	"github.com/primecutco/primecut-backend/pkg/db"
	"github.com/primecutco/primecut-backend/pkg/lalamove"
	"github.com/primecutco/primecut-backend/pkg/logger"
	"github.com/primecutco/primecut-backend/pkg/metrics"
	"github.com/primecutco/primecut-backend/pkg/migrate"
	"github.com/primecutco/primecut-backend/pkg/outbox"
	"github.com/primecutco/primecut-backend/pkg/redis"
	"github.com/primecutco/primecut-backend/pkg/stripe"
)

const shutdownGrace = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	lalamoveClient, err := lalamove.NewClient(cfg.Lalamove)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap lalamove client", err)
		os.Exit(1)
	}

	engineMetrics := metrics.NewEngineMetrics(prometheus.DefaultRegisterer)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	orderStore, err := orders.NewStore(orders.NewRepository(dbClient.DB()), dbClient, outboxService, cfg.Pricing, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order store", err)
		os.Exit(1)
	}

	inventoryRepo := inventory.NewRepository(dbClient.DB())
	couponsRepo := coupons.NewRepository(dbClient.DB())
	cartRepo := cart.NewRepository(dbClient.DB())

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.Params{
		Store:     orderStore,
		Inventory: inventoryRepo,
		Coupons:   couponsRepo,
		Stripe:    checkoutsvc.NewStripeClient(stripeClient),
		StripeCfg: cfg.Stripe,
		Pricing:   cfg.Pricing,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	settlementService, err := settlement.NewService(settlement.Params{
		Store:     orderStore,
		Inventory: inventoryRepo,
		Coupons:   couponsRepo,
		Carts:     cartRepo,
		Outbox:    outboxService,
		Pricing:   cfg.Pricing,
		Metrics:   engineMetrics,
		Logger:    logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement service", err)
		os.Exit(1)
	}

	deliverySync, err := deliverysync.NewService(orderStore, outboxService, engineMetrics, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create delivery reconciler", err)
		os.Exit(1)
	}

	adminFlow, err := adminflow.NewService(adminflow.Params{
		Store:      orderStore,
		Carrier:    lalamoveClient,
		Outbox:     outboxService,
		CarrierCfg: cfg.Lalamove,
		StoreCfg:   cfg.Store,
		Metrics:    engineMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create admin workflow service", err)
		os.Exit(1)
	}

	notificationsService, err := notifications.NewService(notifications.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create notifications service", err)
		os.Exit(1)
	}

	stripeWebhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		Settlement: settlementService,
		Orders:     orderStore,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	stripeGuard, err := internalwebhooks.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "stripe-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
		os.Exit(1)
	}
	lalamoveGuard, err := internalwebhooks.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "lalamove-webhook")
	if err != nil {
		logg.Error(context.Background(), "failed to create lalamove webhook guard", err)
		os.Exit(1)
	}

	router := routes.NewRouter(routes.Deps{
		Config:               cfg,
		Logger:               logg,
		DBPinger:             dbClient,
		Redis:                redisClient,
		CheckoutService:      checkoutService,
		OrderStore:           orderStore,
		NotificationsService: notificationsService,
		AdminFlow:            adminFlow,
		StripeClient:         stripeClient,
		StripeWebhookService: stripeWebhookService,
		StripeWebhookGuard:   stripeGuard,
		DeliverySync:         deliverySync,
		LalamoveWebhookGuard: lalamoveGuard,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	shutdownCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-shutdownCtx.Done():
		graceCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logg.Error(ctx, "api server shutdown error", err)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

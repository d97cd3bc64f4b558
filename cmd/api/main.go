package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/storefront-backend/api"
	"github.com/angelmondragon/storefront-backend/api/routes"
	"github.com/angelmondragon/storefront-backend/internal/bag"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	product "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/profiles"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/instance"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

const shutdownTimeout = 20 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, db.Options{UseSQLite: cfg.FeatureFlags.UseSQLite}, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	requireResource(ctx, logg, "stripe client", err)
	gateway, err := stripe.NewGateway(stripeClient, cfg.Stripe)
	requireResource(ctx, logg, "payment gateway", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reconcileMetrics := metrics.NewReconcileMetrics(registry)

	rule := pricing.FromConfig(cfg.Store)
	productRepo := product.NewRepository(dbClient.DB())
	productService, err := product.NewService(productRepo)
	requireResource(ctx, logg, "product service", err)

	bagStore, err := bag.NewStore(redisClient, cfg.Session.BagTTL)
	requireResource(ctx, logg, "bag store", err)
	aggregator := bag.NewAggregator(rule)

	ordersRepo := orders.NewRepository(dbClient.DB())
	ordersService, err := orders.NewService(ordersRepo)
	requireResource(ctx, logg, "order service", err)
	materializer, err := orders.NewMaterializer(ordersRepo, dbClient, rule, logg)
	requireResource(ctx, logg, "order materializer", err)

	profilesService, err := profiles.NewService(profiles.NewRepository(dbClient.DB()), ordersService)
	requireResource(ctx, logg, "profile service", err)

	checkoutService, err := checkout.NewService(
		bagStore,
		productRepo,
		gateway,
		materializer,
		ordersRepo,
		profilesService,
		rule,
		reconcileMetrics,
		logg,
		checkout.Options{Currency: cfg.Store.Currency, PublishableKey: stripeClient.PublishableKey()},
	)
	requireResource(ctx, logg, "checkout service", err)

	reconciler, err := stripewebhook.NewReconciler(stripewebhook.ReconcilerParams{
		Orders:       ordersRepo,
		Materializer: materializer,
		Charges:      gateway,
		Profiles:     profilesService,
		Products:     productRepo,
		Metrics:      reconcileMetrics,
		Logger:       logg,
		Attempts:     cfg.Webhook.ReconcileAttempts,
		Interval:     cfg.Webhook.ReconcileInterval,
	})
	requireResource(ctx, logg, "reconciler", err)
	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{Reconciler: reconciler, Logger: logg})
	requireResource(ctx, logg, "stripe webhook service", err)
	webhookGuard, err := stripewebhook.NewEventGuard(redisClient, cfg.Webhook.IdempotencyTTL, "stripe-webhook")
	requireResource(ctx, logg, "stripe webhook guard", err)

	server := api.NewServer(cfg, routes.NewRouter(
		cfg,
		logg,
		dbClient,
		redisClient,
		registry,
		productService,
		bagStore,
		aggregator,
		productRepo,
		checkoutService,
		ordersService,
		profilesService,
		stripeClient,
		webhookService,
		webhookGuard,
	))

	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       server.Addr,
		"stripe_env": stripeClient.Environment(),
		"instance":   instance.GetID(),
	})
	logg.Info(serverCtx, "starting api server")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(serverCtx, "graceful shutdown failed", err)
		}
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}

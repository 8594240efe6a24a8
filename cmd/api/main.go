package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/emekadefirst/learnhub-backend/api/routes"
	"github.com/emekadefirst/learnhub-backend/internal/notify"
	"github.com/emekadefirst/learnhub-backend/internal/payments"
	"github.com/emekadefirst/learnhub-backend/internal/purchases"
	"github.com/emekadefirst/learnhub-backend/internal/reconcile"
	"github.com/emekadefirst/learnhub-backend/internal/subscriptions"
	paystackwebhook "github.com/emekadefirst/learnhub-backend/internal/webhooks/paystack"
	"github.com/emekadefirst/learnhub-backend/pkg/config"
	"github.com/emekadefirst/learnhub-backend/pkg/db"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
	"github.com/emekadefirst/learnhub-backend/pkg/migrate"
	"github.com/emekadefirst/learnhub-backend/pkg/paystack"
	"github.com/emekadefirst/learnhub-backend/pkg/redis"
)

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

	provider, err := paystack.NewClient(context.Background(), cfg.Paystack, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap paystack client", err)
		os.Exit(1)
	}

	initiator, err := payments.NewInitiator(payments.InitiatorParams{
		Logger:      logg,
		Provider:    provider,
		CallbackURL: cfg.Paystack.CallbackURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment initiator", err)
		os.Exit(1)
	}

	verifier, err := payments.NewVerifier(payments.VerifierParams{
		Logger:   logg,
		Provider: provider,
		Policy: payments.RetryPolicy{
			MaxAttempts: cfg.Paystack.VerifyMaxAttempts,
			BaseDelay:   cfg.Paystack.VerifyBaseDelay,
			MaxTotal:    cfg.Paystack.VerifyMaxWait,
		},
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create payment verifier", err)
		os.Exit(1)
	}

	purchaseRepo := purchases.NewRepository(dbClient.DB())
	mismatchRepo := reconcile.NewMismatchRepository(dbClient.DB())

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		Logger:      logg,
		Repo:        subscriptions.NewRepository(dbClient.DB()),
		Provider:    provider,
		Cycle:       cfg.Billing.Cycle(),
		GraceWindow: cfg.Billing.GraceWindow,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create subscription service", err)
		os.Exit(1)
	}

	reconcileService, err := reconcile.NewService(reconcile.ServiceParams{
		Logger:        logg,
		Purchases:     purchaseRepo,
		Mismatches:    mismatchRepo,
		Subscriptions: subscriptionService,
		Mailer:        notify.NewLogMailer(logg),
		SiteBaseURL:   cfg.App.SiteBaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reconciliation service", err)
		os.Exit(1)
	}

	accessService, err := purchases.NewService(purchases.ServiceParams{
		Logger:      logg,
		Repo:        purchaseRepo,
		SiteBaseURL: cfg.App.SiteBaseURL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create access service", err)
		os.Exit(1)
	}

	guestLinker, err := purchases.NewGuestLinker(logg, purchaseRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create guest linker", err)
		os.Exit(1)
	}

	webhookGuard, err := paystackwebhook.NewIdempotencyGuard(
		redisClient, cfg.Paystack.WebhookIdempotencyTTL, "paystack")
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook guard", err)
		os.Exit(1)
	}

	webhookService, err := paystackwebhook.NewService(paystackwebhook.ServiceParams{
		Logger:     logg,
		Signatures: provider,
		Verifier:   verifier,
		Reconciler: reconcileService,
		Guard:      webhookGuard,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create webhook service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:          cfg,
			Logger:          logg,
			DB:              dbClient,
			Redis:           redisClient,
			Initiator:       initiator,
			Verifier:        verifier,
			Reconciler:      reconcileService,
			Mismatches:      mismatchRepo,
			AccessService:   accessService,
			GuestLinker:     guestLinker,
			Subscriptions:   subscriptionService,
			PaystackWebhook: webhookService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

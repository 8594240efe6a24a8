package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emekadefirst/learnhub-backend/api/controllers"
	webhookcontrollers "github.com/emekadefirst/learnhub-backend/api/controllers/webhooks"
	"github.com/emekadefirst/learnhub-backend/api/middleware"
	"github.com/emekadefirst/learnhub-backend/internal/payments"
	"github.com/emekadefirst/learnhub-backend/internal/purchases"
	"github.com/emekadefirst/learnhub-backend/internal/reconcile"
	"github.com/emekadefirst/learnhub-backend/internal/subscriptions"
	paystackwebhook "github.com/emekadefirst/learnhub-backend/internal/webhooks/paystack"
	"github.com/emekadefirst/learnhub-backend/pkg/config"
	"github.com/emekadefirst/learnhub-backend/pkg/db"
	"github.com/emekadefirst/learnhub-backend/pkg/logger"
	"github.com/emekadefirst/learnhub-backend/pkg/redis"
)

// Deps carries every service the router exposes over HTTP.
type Deps struct {
	Config          *config.Config
	Logger          *logger.Logger
	DB              db.Pinger
	Redis           *redis.Client
	Initiator       *payments.Initiator
	Verifier        *payments.Verifier
	Reconciler      *reconcile.Service
	Mismatches      reconcile.MismatchRepository
	AccessService   *purchases.Service
	GuestLinker     *purchases.GuestLinker
	Subscriptions   *subscriptions.Service
	PaystackWebhook *paystackwebhook.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paystack", webhookcontrollers.PaystackWebhook(deps.PaystackWebhook, logg))
	})

	r.Route("/api/v1/payments", func(r chi.Router) {
		r.Post("/checkout", controllers.CheckoutInitiate(deps.Initiator, logg))
		r.Get("/verify/{reference}", controllers.PaymentVerify(deps.Verifier, deps.Reconciler, logg))
	})

	r.Route("/api/v1/purchases", func(r chi.Router) {
		r.Post("/link", controllers.LinkGuestPurchases(deps.GuestLinker, logg))
	})
	r.Get("/access/{purchaseId}", controllers.CheckAccess(deps.AccessService, logg))

	r.Route("/api/v1/subscriptions", func(r chi.Router) {
		r.Get("/{userId}", controllers.SubscriptionGet(deps.Subscriptions, logg))
		r.Post("/{userId}/cancel", controllers.SubscriptionCancel(deps.Subscriptions, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Post("/access/grant", controllers.AdminGrantAccess(deps.AccessService, logg))
		r.Post("/access/{purchaseId}/revoke", controllers.AdminRevokeAccess(deps.AccessService, logg))
		r.Post("/subscriptions/{subscriptionId}/restore", controllers.SubscriptionRestore(deps.Subscriptions, logg))
		r.Get("/mismatches", controllers.AdminListMismatches(deps.Mismatches, logg))
		r.Post("/mismatches/{mismatchId}/resolve", controllers.AdminResolveMismatch(deps.Mismatches, logg))
	})

	return r
}

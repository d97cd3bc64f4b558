package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/storefront-backend/api/controllers/webhooks"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/bag"
	checkoutsvc "github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	products "github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/internal/profiles"
	stripewebhook "github.com/angelmondragon/storefront-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
	"github.com/angelmondragon/storefront-backend/pkg/stripe"
)

// redisBackend is the slice of the redis client the HTTP layer needs.
type redisBackend interface {
	redis.Pinger
	redis.IdempotencyStore
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient redisBackend,
	gatherer prometheus.Gatherer,
	productService products.Service,
	bagStore controllers.BagService,
	bagProjector controllers.BagProjector,
	productLookup bag.ProductLookup,
	checkoutService checkoutsvc.Service,
	ordersSvc orders.Service,
	profilesSvc profiles.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.EventGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Session(cfg.Session, logg))
		r.Use(middleware.Identity(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ListProducts(productService, logg))
			r.Get("/categories", controllers.ListCategories(productService, logg))
			r.Get("/{productId}", controllers.GetProduct(productService, logg))
		})

		r.Route("/bag", func(r chi.Router) {
			r.Get("/", controllers.GetBag(bagStore, bagProjector, productLookup, logg))
			r.Post("/items", controllers.AddBagItem(bagStore, bagProjector, productLookup, logg))
			r.Put("/items/{productId}", controllers.SetBagItemQuantity(bagStore, bagProjector, productLookup, logg))
			r.Delete("/items/{productId}", controllers.RemoveBagItem(bagStore, bagProjector, productLookup, logg))
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutSubmit(checkoutService, logg))
			r.Post("/intent", controllers.CheckoutIntent(checkoutService, logg))
			r.Post("/cache", controllers.CheckoutCache(checkoutService, logg))
		})

		r.Get("/orders/{orderNumber}", controllers.GetOrder(ordersSvc, logg))

		r.Route("/profile", func(r chi.Router) {
			r.Get("/", controllers.GetProfile(profilesSvc, logg))
			r.Put("/", controllers.UpdateProfile(profilesSvc, logg))
		})
	})

	return r
}

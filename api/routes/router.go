package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/api/controllers"
	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/checkout"
	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/internal/shipping"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Services bundles the domain services the HTTP surface dispatches to.
type Services struct {
	Checkout  checkout.Service
	Cart      cart.Service
	Orders    orders.Service
	Payments  payments.Service
	Shipping  shipping.Service
	Inventory inventory.Service
}

// Infra carries the dependencies probed by readiness and used by middleware.
// Redis and Metrics are optional.
type Infra struct {
	DB      controllers.Pinger
	Tx      txRunner
	Redis   *pkgredis.Client
	Files   controllers.Pinger
	Metrics http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	// a nil *Client must not become a non-nil interface
	var (
		idempotencyStore pkgredis.IdempotencyStore
		limiter          pkgredis.RateLimiter
		redisPinger      controllers.Pinger
	)
	if infra.Redis != nil {
		idempotencyStore = infra.Redis
		limiter = infra.Redis
		redisPinger = infra.Redis
	}

	metricsHandler := infra.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	checkoutPolicy := middleware.NewRateLimitPolicy("checkout", time.Minute, cfg.Checkout.RateLimitPerMinute)
	slipPolicy := middleware.NewRateLimitPolicy("payment_slip", time.Minute, cfg.Checkout.RateLimitPerMinute)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg,
			controllers.ReadinessCheck{Name: "db", Pinger: infra.DB},
			controllers.ReadinessCheck{Name: "redis", Pinger: redisPinger},
			controllers.ReadinessCheck{Name: "storage", Pinger: infra.Files},
		))
	})
	r.Handle("/metrics", metricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		// slip uploads are the largest bodies; multipart framing needs headroom
		r.Use(middleware.Idempotency(idempotencyStore, cfg.Checkout.IdempotencyTTL, cfg.Storage.MaxUploadBytes()+(1<<20), logg))

		r.With(middleware.RateLimit(checkoutPolicy, limiter, logg)).Post("/checkout", controllers.Checkout(svc.Checkout, logg))

		// flat paths keep the full route pattern visible to the idempotency rules
		r.Get("/cart", controllers.CartSummary(svc.Cart, logg))
		r.Post("/cart/items", controllers.CartAddItem(svc.Cart, logg))
		r.Patch("/cart/items/{itemId}", controllers.CartUpdateItem(svc.Cart, logg))
		r.Delete("/cart/items/{itemId}", controllers.CartRemoveItem(svc.Cart, logg))

		r.Get("/orders/{orderId}", controllers.OrderDetail(svc.Orders, logg))
		r.With(middleware.RateLimit(slipPolicy, limiter, logg)).Post("/payments/{paymentId}/slip", controllers.PaymentSlip(svc.Payments, cfg.Storage.MaxUploadBytes(), logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(logg, enums.RoleAdmin))

			r.Post("/payments/{paymentId}/confirm", controllers.PaymentConfirm(svc.Payments, logg))
			r.Put("/orders/{orderId}/status", controllers.OrderUpdateStatus(svc.Orders, logg))
			r.Post("/orders/{orderId}/shipping", controllers.ShippingCreate(svc.Shipping, logg))
			r.Patch("/shipping/{shippingId}", controllers.ShippingUpdate(svc.Shipping, logg))

			r.Post("/stock/adjustment", controllers.StockAdjustment(svc.Inventory, logg))
			r.Post("/stock/products", controllers.StockReceive(svc.Inventory, infra.Tx, logg))
			r.Get("/stock/{productId}/movements", controllers.StockMovements(svc.Inventory, logg))
		})
	})

	return r
}

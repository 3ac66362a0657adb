package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/storefront-checkout/api/controllers"
	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/coupon"
	"github.com/angelmondragon/storefront-checkout/pkg/config"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/redis"
)

// NewRouter wires the storefront API. redisClient may be nil, which disables idempotent replay
// and coupon throttling. metricsHandler may be nil when metrics are off.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	sessions controllers.Pinger,
	redisClient *redis.Client,
	metricsHandler http.Handler,
	cartService cart.Service,
	couponService coupon.Service,
	checkoutService checkoutsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	var (
		idempotencyStore redis.IdempotencyStore
		limiter          middleware.RateLimiterStore
	)
	if redisClient != nil {
		idempotencyStore = redisClient
		limiter = redisClient
	}

	couponPolicy := middleware.NewRateLimitPolicy(
		"coupon",
		cfg.RateLimit.CouponWindow,
		cfg.RateLimit.CouponCustomerLimit,
		cfg.RateLimit.CouponIPLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, sessions, logg))
	})

	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartView(cartService, logg))
			r.Patch("/lines/{lineId}", controllers.CartUpdateQuantity(cartService, logg))
			r.Delete("/lines/{lineId}", controllers.CartRemoveLine(cartService, logg))
			r.Post("/selection/{lineId}/toggle", controllers.SelectionToggle(cartService, logg))
			r.Post("/selection/all", controllers.SelectionAll(cartService, logg))
			r.Delete("/selection", controllers.SelectionClear(cartService, logg))
		})

		r.With(middleware.Idempotency(idempotencyStore, logg)).Post("/checkout", controllers.Checkout(checkoutService, logg))
		r.Get("/checkout/coupon", controllers.CouponActive(couponService, logg))
		r.With(middleware.RateLimit(couponPolicy, limiter, logg)).Post("/checkout/coupon", controllers.CouponApply(couponService, cartService, logg))
		r.Delete("/checkout/coupon", controllers.CouponRemove(couponService, logg))
		r.Get("/checkout/return", controllers.CheckoutReturn(checkoutService, cfg.Checkout, logg))
		r.Get("/checkout/confirmation/{orderId}", controllers.CheckoutConfirmation(checkoutService, logg))
	})

	return r
}

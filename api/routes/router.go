package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/markit/markit-server/api/controllers"
	billingcontrollers "github.com/markit/markit-server/api/controllers/billing"
	deliverycontrollers "github.com/markit/markit-server/api/controllers/delivery"
	ordercontrollers "github.com/markit/markit-server/api/controllers/orders"
	trynbuycontrollers "github.com/markit/markit-server/api/controllers/trynbuy"
	"github.com/markit/markit-server/api/middleware"
	"github.com/markit/markit-server/internal/billing"
	"github.com/markit/markit-server/internal/delivery"
	"github.com/markit/markit-server/internal/orders"
	"github.com/markit/markit-server/internal/trynbuy"
	"github.com/markit/markit-server/pkg/config"
	"github.com/markit/markit-server/pkg/enums"
	"github.com/markit/markit-server/pkg/logger"
	"github.com/markit/markit-server/pkg/redis"
)

type redisClient interface {
	redis.IdempotencyStore
	Ping(context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient redisClient,
	gatherer prometheus.Gatherer,
	trynbuyService trynbuy.Service,
	ordersService orders.Service,
	billingService billing.Service,
	deliveryService delivery.Service,
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
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisClient,
		}))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	delivery := deliverycontrollers.NewController(deliveryService, logg)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		idempotent := middleware.Idempotency(redisClient, cfg.Eventing.RequestIdempotency, logg)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleClient, logg))
			r.With(idempotent).Post("/order/trynbuy", trynbuycontrollers.Create(trynbuyService, logg))
			r.Get("/pack/{id}", ordercontrollers.Detail(ordersService, logg))
			r.Get("/history/trynbuy", ordercontrollers.History(ordersService, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleCompany, logg))
			r.With(idempotent).Put("/pack/trynbuy/{id}/packing-status", ordercontrollers.UpdatePackingStatus(ordersService, logg))
			r.With(idempotent).Post("/checkout/trynbuy/bill", billingcontrollers.Settle(billingService, logg))
		})

		r.Route("/delivery", func(r chi.Router) {
			r.Use(middleware.RequireRole(enums.RoleDeliveryPartner, logg))
			r.Get("/orders", delivery.Orders)
			r.Get("/orders/filter", delivery.OrdersOn)
			r.Get("/orders/last", delivery.LastOrder)
			r.Get("/orders/{orderId}", delivery.Order)
			r.Get("/earnings/{period}", delivery.Earnings)
			r.Get("/earnings/{period}/details", delivery.EarningDetails)
		})
	})

	return r
}

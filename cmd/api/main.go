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

	"github.com/markit/markit-server/api/routes"
	"github.com/markit/markit-server/internal/billing"
	"github.com/markit/markit-server/internal/delivery"
	"github.com/markit/markit-server/internal/inventory"
	"github.com/markit/markit-server/internal/orders"
	"github.com/markit/markit-server/internal/trynbuy"
	"github.com/markit/markit-server/pkg/config"
	"github.com/markit/markit-server/pkg/db"
	"github.com/markit/markit-server/pkg/logger"
	"github.com/markit/markit-server/pkg/metrics"
	"github.com/markit/markit-server/pkg/migrate"
	"github.com/markit/markit-server/pkg/outbox"
	"github.com/markit/markit-server/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

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
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithField(ctx, "env", cfg.App.Env)

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer closeWith(ctx, logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer closeWith(ctx, logg, "redis", redisClient.Close)

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	orderMetrics := metrics.NewOrderMetrics(reg)

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ledger := inventory.NewLedger()

	trynbuyService, err := trynbuy.NewService(trynbuy.ServiceParams{
		Tx:        dbClient,
		Repo:      trynbuy.NewRepository(dbClient.DB()),
		Ledger:    ledger,
		Outbox:    outboxService,
		Metrics:   orderMetrics,
		Logger:    logg,
		Unmatched: cfg.Checkout.UnmatchedItemPolicy,
	})
	if err != nil {
		return err
	}

	ordersService, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, outboxService, logg)
	if err != nil {
		return err
	}

	billingService, err := billing.NewService(billing.ServiceParams{
		Tx:      dbClient,
		Repo:    billing.NewRepository(dbClient.DB()),
		Ledger:  ledger,
		Outbox:  outboxService,
		Metrics: orderMetrics,
		Logger:  logg,
	})
	if err != nil {
		return err
	}

	deliveryService, err := delivery.NewService(delivery.ServiceParams{
		Repo:     delivery.NewRepository(dbClient.DB()),
		Location: loc,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr: ":" + cfg.App.Port,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			reg,
			trynbuyService,
			ordersService,
			billingService,
			deliveryService,
		),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server on "+server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func closeWith(ctx context.Context, logg *logger.Logger, name string, fn func() error) {
	if err := fn(); err != nil {
		logg.Error(ctx, "error closing "+name, err)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/markit/markit-server/internal/relay"
	"github.com/markit/markit-server/pkg/config"
	"github.com/markit/markit-server/pkg/db"
	"github.com/markit/markit-server/pkg/logger"
	"github.com/markit/markit-server/pkg/metrics"
	"github.com/markit/markit-server/pkg/migrate"
	"github.com/markit/markit-server/pkg/outbox"
	"github.com/markit/markit-server/pkg/outbox/registry"
	"github.com/markit/markit-server/pkg/pubsub"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "outbox-publisher"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "outbox-publisher"

	logg = logger.New(logger.Options{
		ServiceName: "outbox-publisher",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "error closing pubsub client", err)
		}
	}()

	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}

	r, err := relay.New(relay.Params{
		Logger:   logg,
		DB:       dbClient,
		Store:    outbox.NewRepository(dbClient.DB()),
		DLQ:      outbox.NewDLQRepository(dbClient.DB()),
		Resolver: events,
		Sink:     relay.NewPubSubSink(pubsubClient),
		Metrics:  metrics.NewRelayMetrics(prometheus.DefaultRegisterer),
		Config:   cfg.Outbox,
	})
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting outbox publisher")
	return r.Run(ctx)
}

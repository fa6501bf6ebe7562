package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/markit/markit-server/internal/analytics/router"
	"github.com/markit/markit-server/internal/analytics/writer"
	"github.com/markit/markit-server/internal/notifications"
	"github.com/markit/markit-server/pkg/bigquery"
	"github.com/markit/markit-server/pkg/config"
	"github.com/markit/markit-server/pkg/db"
	"github.com/markit/markit-server/pkg/fcm"
	"github.com/markit/markit-server/pkg/logger"
	"github.com/markit/markit-server/pkg/outbox/subscriber"
	"github.com/markit/markit-server/pkg/pubsub"
	"github.com/markit/markit-server/pkg/realtime"
	"github.com/markit/markit-server/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": "worker",
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer closeWith(ctx, logg, "database", dbClient.Close)

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer closeWith(ctx, logg, "redis", redisClient.Close)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return err
	}
	defer closeWith(ctx, logg, "pubsub", pubsubClient.Close)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	if err != nil {
		return err
	}
	defer closeWith(ctx, logg, "bigquery", bqClient.Close)

	dedupe, err := subscriber.NewDedupe(redisClient, cfg.Eventing.OutboxIdempotencyTTL)
	if err != nil {
		return err
	}

	emitter, err := realtime.NewEmitter(redisClient, cfg.Realtime.Channel)
	if err != nil {
		return err
	}
	var push fcm.Sender
	if cfg.FCM.Enabled {
		fcmClient, err := fcm.NewClient(ctx, cfg.GCP, cfg.FCM, logg)
		if err != nil {
			return err
		}
		push = fcmClient
	}
	dispatcher, err := notifications.NewDispatcher(emitter, notifications.NewTokenRepository(dbClient.DB()), push, logg)
	if err != nil {
		return err
	}
	notificationHandler, err := notifications.NewHandler(dispatcher)
	if err != nil {
		return err
	}
	notificationConsumer, err := subscriber.New(subscriber.Params{
		Name:         notifications.ConsumerName,
		Subscription: pubsubClient.NotificationSubscription(),
		Dedupe:       dedupe,
		Handler:      notificationHandler,
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	salesWriter, err := writer.New(bqClient, writer.Config{SalesTable: bqClient.SalesTable()})
	if err != nil {
		return err
	}
	salesRouter, err := router.NewRouter(salesWriter, logg)
	if err != nil {
		return err
	}
	analyticsConsumer, err := subscriber.New(subscriber.Params{
		Name:         router.ConsumerName,
		Subscription: pubsubClient.AnalyticsSubscription(),
		Dedupe:       dedupe,
		Handler:      salesRouter,
		Logger:       logg,
	})
	if err != nil {
		return err
	}

	service, err := NewService(logg, []dependency{
		{"database", dbClient},
		{"redis", redisClient},
		{"pubsub", pubsubClient},
		{"bigquery", bqClient},
	}, notificationConsumer, analyticsConsumer)
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting worker")
	return service.Run(ctx)
}

func closeWith(ctx context.Context, logg *logger.Logger, name string, fn func() error) {
	if err := fn(); err != nil {
		logg.Error(ctx, "error closing "+name, err)
	}
}

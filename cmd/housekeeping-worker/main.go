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

	"github.com/markit/markit-server/internal/housekeeping"
	"github.com/markit/markit-server/pkg/config"
	"github.com/markit/markit-server/pkg/db"
	"github.com/markit/markit-server/pkg/logger"
	"github.com/markit/markit-server/pkg/metrics"
	"github.com/markit/markit-server/pkg/migrate"
	"github.com/markit/markit-server/pkg/outbox"
	"github.com/markit/markit-server/pkg/redis"
)

const lockKeyFormat = "markit:housekeeping:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "housekeeping-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "housekeeping-worker"

	logg = logger.New(logger.Options{
		ServiceName: "housekeeping-worker",
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
		logg.Error(ctx, "housekeeping worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "housekeeping worker shutting down gracefully")
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

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	lock, err := housekeeping.NewRedisLock(redisClient, lockKey(cfg.App.Env), 0)
	if err != nil {
		return err
	}

	outboxJob, err := housekeeping.NewOutboxRetentionJob(housekeeping.OutboxRetentionParams{
		Logger:           logg,
		DB:               dbClient,
		Repository:       outbox.NewRepository(dbClient.DB()),
		Retention:        cfg.Housekeeping.OutboxRetention,
		TerminalAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return err
	}
	dlqJob, err := housekeeping.NewDLQRetentionJob(housekeeping.DLQRetentionParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outbox.NewDLQRepository(dbClient.DB()),
		Retention:  cfg.Housekeeping.DLQRetention,
	})
	if err != nil {
		return err
	}

	service, err := housekeeping.NewService(housekeeping.ServiceParams{
		Logger:   logg,
		Registry: housekeeping.NewRegistry(outboxJob, dlqJob),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Housekeeping.Interval,
	})
	if err != nil {
		return err
	}

	logg.Info(ctx, "starting housekeeping worker")
	return service.Run(ctx)
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}

package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/markit/markit-server/pkg/config"
	"github.com/markit/markit-server/pkg/db"
	"github.com/markit/markit-server/pkg/logger"
	"github.com/markit/markit-server/pkg/migrate"
)

type options struct {
	cmd     string
	dir     string
	name    string
	version string
}

func main() {
	var opts options
	flag.StringVar(&opts.cmd, "cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", "", "migrations directory; empty uses the embedded set ("+migrate.DefaultDir+" for create and validate)")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	_ = godotenv.Load()
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s: %v\n", opts.cmd, err)
		os.Exit(1)
	}
}

func run(opts options) error {
	// These work on files only and never need configuration.
	diskDir := opts.dir
	if diskDir == "" {
		diskDir = migrate.DefaultDir
	}
	switch opts.cmd {
	case "create":
		if opts.name == "" {
			return errors.New("-name is required")
		}
		path, err := migrate.CreateSQLMigration(diskDir, opts.name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created migration:", path)
		return nil
	case "validate":
		if err := migrate.ValidateDir(diskDir); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}

	schemaOp, err := databaseCommand(opts)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": opts.cmd})

	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer client.Close()
	pool, err := client.DB().DB()
	if err != nil {
		return err
	}

	start := time.Now()
	if err := schemaOp(ctx, pool); err != nil {
		logg.Error(ctx, "migration failed", err)
		return err
	}
	logg.Info(logg.WithField(ctx, "duration_ms", time.Since(start).Milliseconds()), "migration finished")
	return nil
}

// databaseCommand validates flags before any connection is opened.
func databaseCommand(opts options) (func(context.Context, *sql.DB) error, error) {
	switch opts.cmd {
	case "up", "down", "status":
		return func(ctx context.Context, pool *sql.DB) error {
			return migrate.Run(ctx, pool, opts.dir, opts.cmd)
		}, nil
	case "version":
		if opts.version == "" {
			return nil, errors.New("-version is required")
		}
		return func(ctx context.Context, pool *sql.DB) error {
			return migrate.MigrateToVersion(ctx, pool, opts.dir, opts.version)
		}, nil
	default:
		return nil, fmt.Errorf("unknown command %q", opts.cmd)
	}
}

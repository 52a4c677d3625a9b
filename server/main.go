package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/meikuraledutech/workflow"
	"github.com/meikuraledutech/workflow/catalog"
	"github.com/meikuraledutech/workflow/internal/logging"
	"github.com/meikuraledutech/workflow/memory"
	"github.com/meikuraledutech/workflow/oracle"
	"github.com/meikuraledutech/workflow/postgres"
)

type cli struct {
	Addr         string `help:"Listen address." env:"WORKFLOW_ADDR" default:":3000"`
	DatabaseURL  string `name:"database-url" help:"PostgreSQL connection string. Workflows are kept in memory when empty." env:"DATABASE_URL"`
	CatalogFile  string `name:"catalog-file" help:"YAML or JSON component catalog. The built-in catalog is served when empty." env:"WORKFLOW_CATALOG_FILE"`
	LogLevel     string `name:"log-level" help:"Log level." enum:"debug,info,warn,error" default:"info" env:"WORKFLOW_LOG_LEVEL"`
	LogFormat    string `name:"log-format" help:"Log format." enum:"text,json" default:"text" env:"WORKFLOW_LOG_FORMAT"`
	CreateSchema bool   `name:"create-schema" help:"Create the workflows table on start." env:"WORKFLOW_CREATE_SCHEMA"`
}

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	var cfg cli
	kong.Parse(&cfg,
		kong.Name("workflow-server"),
		kong.Description("Serves the component catalog, workflow validation and workflow storage."),
		kong.UsageOnError(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cli) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	if err != nil {
		return err
	}

	var src catalog.Source = catalog.BuiltinSource
	if cfg.CatalogFile != "" {
		src = catalog.FileSource{Path: cfg.CatalogFile}
	}
	cat := catalog.New(src, catalog.WithLogger(logger))
	if _, err := cat.Load(ctx); err != nil {
		logger.Warn("catalog unavailable, retrying on request", "error", err)
	}

	var store workflow.Store
	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory workflow store")
		store = memory.New()
	} else {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect: %w", err)
		}
		defer pool.Close()
		store = postgres.New(pool)
	}
	if cfg.CreateSchema {
		if err := store.CreateSchema(ctx); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	app := newApp(&server{
		catalog: cat,
		store:   store,
		oracle:  oracle.New(),
		logger:  logger,
	})

	go func() {
		<-ctx.Done()
		if err := app.Shutdown(); err != nil {
			logger.Error("shutdown", "error", err)
		}
	}()

	logger.Info("listening", "addr", cfg.Addr)
	if err := app.Listen(cfg.Addr); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("server stopped")
	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	infraprovider "github.com/finwire/backoffice/infra/provider"
	"github.com/finwire/backoffice/infra/provider/gateway"
	"github.com/finwire/backoffice/infra/provider/mockexchange"
	"github.com/finwire/backoffice/infra/provider/mockwallet"
	infrarepo "github.com/finwire/backoffice/infra/repository"
	"github.com/finwire/backoffice/pkg/app"
	"github.com/finwire/backoffice/pkg/config"
	"github.com/finwire/backoffice/pkg/eventbus"
	"github.com/finwire/backoffice/webapi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadAppConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load application configuration: %w", err)
	}

	db, err := infrarepo.NewDBConnection(cfg.DB, cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := infrarepo.AutoMigrate(db); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps := &app.Deps{
		Uow:        infrarepo.NewUoW(db),
		Exchange:   mockexchange.New(),
		Wallet:     mockwallet.New(),
		Gateway:    gateway.New(cfg.Gateway.SigningSecret),
		Compliance: infraprovider.NewStaticCompliance(1, 0),
		EventBus:   eventbus.NewMemory(),
		Registry:   registry,
		Logger:     logger,
	}

	application, err := app.New(deps, cfg)
	if err != nil {
		return fmt.Errorf("failed to wire application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go application.Confirm.Run(ctx)

	fiberApp := webapi.NewApp(webapi.Deps{
		Operations: application.Operations,
		Confirm:    application.Confirm,
		Gateway:    deps.Gateway,
		Uow:        deps.Uow,
		Registry:   registry,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	logger.Info("starting server", "env", cfg.Env, "address", addr)
	return fiberApp.Listen(addr)
}

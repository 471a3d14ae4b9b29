// Package app wires the engine's services from their dependencies.
package app

import (
	"log/slog"

	"github.com/finwire/backoffice/pkg/config"
	"github.com/finwire/backoffice/pkg/eventbus"
	"github.com/finwire/backoffice/pkg/metrics"
	"github.com/finwire/backoffice/pkg/provider"
	"github.com/finwire/backoffice/pkg/repository"
	"github.com/finwire/backoffice/pkg/service/confirmqueue"
	"github.com/finwire/backoffice/pkg/service/fees"
	ledgersvc "github.com/finwire/backoffice/pkg/service/ledger"
	"github.com/finwire/backoffice/pkg/service/operation"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

// Deps contains the external dependencies the services are built from.
type Deps struct {
	Uow        repository.UnitOfWork
	Exchange   provider.Exchange
	Wallet     provider.WalletCustody
	Gateway    provider.PaymentGateway
	Compliance provider.Compliance
	EventBus   eventbus.Bus
	Registry   *prometheus.Registry
	Logger     *slog.Logger
}

// App holds the wired services.
type App struct {
	Deps       *Deps
	Config     *config.AppConfig
	Metrics    *metrics.Metrics
	Ledger     *ledgersvc.Service
	Fees       *fees.Service
	Operations *operation.Service
	Confirm    *confirmqueue.Service
}

// New wires the application. Collaborators are wrapped in circuit breakers
// and the audit subscriber is attached to the event bus.
func New(deps *Deps, cfg *config.AppConfig) (*App, error) {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var m *metrics.Metrics
	if deps.Registry != nil {
		m = metrics.New(deps.Registry)
	} else {
		m = metrics.NewNop()
	}

	eventbus.NewAuditSubscriber(deps.EventBus, logger)

	var rateTemplateID uuid.UUID
	if cfg.Ledger.RateTemplateID != "" {
		id, err := uuid.Parse(cfg.Ledger.RateTemplateID)
		if err != nil {
			return nil, err
		}
		rateTemplateID = id
	}

	exchange := provider.NewBreakerExchange(deps.Exchange, logger)
	wallet := provider.NewBreakerWallet(deps.Wallet, logger)

	ledgerSvc := ledgersvc.New(deps.EventBus, m, logger)
	ops := operation.New(
		deps.Uow,
		ledgerSvc,
		exchange,
		wallet,
		deps.Compliance,
		deps.EventBus,
		m,
		operation.Config{
			RateTemplateID:    rateTemplateID,
			CorporateWalletID: cfg.Wallet.CorporateWalletID,
			OrderPollAttempts: cfg.Exchange.OrderPollAttempts,
			OrderPollInterval: cfg.Exchange.OrderPollInterval,
		},
		logger,
	)
	confirm := confirmqueue.New(deps.Uow, ops, m, logger)
	confirm.SetInterval(cfg.Confirm.PollInterval)
	confirm.SetBatchSize(cfg.Confirm.BatchSize)

	return &App{
		Deps:       deps,
		Config:     cfg,
		Metrics:    m,
		Ledger:     ledgerSvc,
		Fees:       fees.New(deps.Uow, logger),
		Operations: ops,
		Confirm:    confirm,
	}, nil
}

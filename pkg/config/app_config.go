// Package config loads the application configuration from the environment.
package config

import (
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type DBConfig struct {
	Url string `envconfig:"URL"`
}

type ExchangeConfig struct {
	ApiKey            string        `envconfig:"API_KEY"`
	ApiSecret         string        `envconfig:"API_SECRET"`
	ApiUrl            string        `envconfig:"API_URL" default:""`
	HTTPTimeout       time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	OrderPollAttempts int           `envconfig:"ORDER_POLL_ATTEMPTS" default:"10"`
	OrderPollInterval time.Duration `envconfig:"ORDER_POLL_INTERVAL" default:"500ms"`
}

type WalletConfig struct {
	ApiKey            string `envconfig:"API_KEY"`
	ApiUrl            string `envconfig:"API_URL" default:""`
	CorporateWalletID string `envconfig:"CORPORATE_WALLET_ID"`
}

type GatewayConfig struct {
	SigningSecret string `envconfig:"SIGNING_SECRET"`
}

type LedgerConfig struct {
	// RateTemplateID identifies the shared commission and limit template
	// fallback rules resolve against.
	RateTemplateID string `envconfig:"RATE_TEMPLATE_ID"`
}

type ConfirmConfig struct {
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" default:"30s"`
	BatchSize    int           `envconfig:"BATCH_SIZE" default:"50"`
}

type AppConfig struct {
	Env      string         `envconfig:"APP_ENV" default:"development"`
	Host     string         `envconfig:"APP_HOST" default:"localhost"`
	Port     int            `envconfig:"APP_PORT" default:"3000"`
	DB       DBConfig       `envconfig:"DATABASE"`
	Ledger   LedgerConfig   `envconfig:"LEDGER"`
	Exchange ExchangeConfig `envconfig:"EXCHANGE"`
	Wallet   WalletConfig   `envconfig:"WALLET"`
	Gateway  GatewayConfig  `envconfig:"GATEWAY"`
	Confirm  ConfirmConfig  `envconfig:"CONFIRM"`
}

func maskSecret(key string) string {
	if len(key) <= 6 {
		return "****"
	}
	return key[:2] + "****" + key[len(key)-4:]
}

// LoadAppConfig reads a .env file when one exists, then processes the
// environment into an AppConfig.
func LoadAppConfig(logger *slog.Logger, envFilePath ...string) (*AppConfig, error) {
	var err error
	if len(envFilePath) > 0 && envFilePath[0] != "" {
		err = godotenv.Load(envFilePath[0])
	} else {
		err = godotenv.Load()
	}

	if err != nil {
		logger.Warn("No .env file found or specified, using system environment variables")
	} else {
		logger.Info("Environment variables loaded from .env file")
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	logger.Info("App config loaded",
		"env", cfg.Env,
		"port", cfg.Port,
		"rate_template_id", cfg.Ledger.RateTemplateID,
		"exchange_api_url", cfg.Exchange.ApiUrl,
		"exchange_api_key", maskSecret(cfg.Exchange.ApiKey),
		"wallet_api_key", maskSecret(cfg.Wallet.ApiKey),
		"confirm_poll_interval", cfg.Confirm.PollInterval,
	)
	return &cfg, nil
}

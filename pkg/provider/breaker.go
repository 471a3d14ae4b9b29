package provider

import (
	"context"
	"log/slog"
	"time"

	"github.com/finwire/backoffice/pkg/currency"
	"github.com/sony/gobreaker"
)

// breakerSettings returns the shared circuit-breaker configuration for
// external collaborator calls.
func breakerSettings(name string, logger *slog.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
	}
}

// BreakerExchange wraps an Exchange with a circuit breaker so a failing
// trading venue sheds load instead of stalling every step.
type BreakerExchange struct {
	inner Exchange
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerExchange wraps the given exchange.
func NewBreakerExchange(inner Exchange, logger *slog.Logger) *BreakerExchange {
	return &BreakerExchange{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(breakerSettings("exchange", logger)),
	}
}

func (b *BreakerExchange) Buy(ctx context.Context, from, to currency.Code, amount int64) (string, error) {
	ref, err := b.cb.Execute(func() (any, error) {
		return b.inner.Buy(ctx, from, to, amount)
	})
	if err != nil {
		return "", err
	}
	return ref.(string), nil
}

func (b *BreakerExchange) Sell(ctx context.Context, from, to currency.Code, amount int64) (string, error) {
	ref, err := b.cb.Execute(func() (any, error) {
		return b.inner.Sell(ctx, from, to, amount)
	})
	if err != nil {
		return "", err
	}
	return ref.(string), nil
}

func (b *BreakerExchange) OrderResult(ctx context.Context, orderRef string) (*OrderResult, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.inner.OrderResult(ctx, orderRef)
	})
	if err != nil {
		return nil, err
	}
	return res.(*OrderResult), nil
}

func (b *BreakerExchange) Withdraw(ctx context.Context, code currency.Code, destinationKey string, amount int64) (string, error) {
	ref, err := b.cb.Execute(func() (any, error) {
		return b.inner.Withdraw(ctx, code, destinationKey, amount)
	})
	if err != nil {
		return "", err
	}
	return ref.(string), nil
}

func (b *BreakerExchange) WithdrawStatus(ctx context.Context, code currency.Code) ([]WithdrawInfo, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.inner.WithdrawStatus(ctx, code)
	})
	if err != nil {
		return nil, err
	}
	return res.([]WithdrawInfo), nil
}

// BreakerWallet wraps a WalletCustody with a circuit breaker.
type BreakerWallet struct {
	inner WalletCustody
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerWallet wraps the given custody collaborator.
func NewBreakerWallet(inner WalletCustody, logger *slog.Logger) *BreakerWallet {
	return &BreakerWallet{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(breakerSettings("wallet", logger)),
	}
}

func (b *BreakerWallet) Send(ctx context.Context, fromWallet, toWallet string, amount int64, memo string) (string, error) {
	txid, err := b.cb.Execute(func() (any, error) {
		return b.inner.Send(ctx, fromWallet, toWallet, amount, memo)
	})
	if err != nil {
		return "", err
	}
	return txid.(string), nil
}

func (b *BreakerWallet) ListTransfers(ctx context.Context, code currency.Code, walletID string) ([]Transfer, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.inner.ListTransfers(ctx, code, walletID)
	})
	if err != nil {
		return nil, err
	}
	return res.([]Transfer), nil
}

func (b *BreakerWallet) IsApproved(ctx context.Context, t Transfer) (bool, error) {
	res, err := b.cb.Execute(func() (any, error) {
		return b.inner.IsApproved(ctx, t)
	})
	if err != nil {
		return false, err
	}
	return res.(bool), nil
}

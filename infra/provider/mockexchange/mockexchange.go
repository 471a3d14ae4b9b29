// Package mockexchange is an in-memory Exchange used in development and tests.
// Orders settle instantly at a fixed rate table.
package mockexchange

import (
	"context"
	"fmt"
	"sync"

	"github.com/finwire/backoffice/pkg/currency"
	"github.com/finwire/backoffice/pkg/provider"
	"github.com/google/uuid"
)

type order struct {
	result provider.OrderResult
	// polls left before the order reports Done, simulating settlement lag
	pendingPolls int
}

// Exchange is a deterministic sandbox exchange.
type Exchange struct {
	mu          sync.Mutex
	rates       map[string]float64
	feePercent  float64
	settleAfter int
	orders      map[string]*order
	withdrawals map[currency.Code][]provider.WithdrawInfo
}

// New creates a sandbox exchange with a default rate table.
func New() *Exchange {
	return &Exchange{
		rates: map[string]float64{
			"EUR/BTC": 0.00001,
			"EUR/ETH": 0.0003,
			"USD/BTC": 0.000009,
			"BTC/EUR": 100000,
			"ETH/EUR": 3333,
		},
		feePercent:  0.1,
		orders:      make(map[string]*order),
		withdrawals: make(map[currency.Code][]provider.WithdrawInfo),
	}
}

// SetRate overrides the conversion rate for a pair.
func (e *Exchange) SetRate(from, to currency.Code, rate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rates[pairKey(from, to)] = rate
}

// SettleAfter makes new orders report Done only after n polls.
func (e *Exchange) SettleAfter(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settleAfter = n
}

func pairKey(from, to currency.Code) string {
	return string(from) + "/" + string(to)
}

func (e *Exchange) place(from, to currency.Code, amount int64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rate, ok := e.rates[pairKey(from, to)]
	if !ok {
		return "", fmt.Errorf("mockexchange: no rate for %s/%s", from, to)
	}
	settled := int64(float64(amount) * rate)
	fee := int64(float64(amount) * e.feePercent / 100)
	ref := uuid.NewString()
	e.orders[ref] = &order{
		result: provider.OrderResult{
			Fee:                 float64(fee),
			Rate:                rate,
			SettledFiatAmount:   amount - fee,
			SettledCryptoAmount: settled,
			FiatCurrency:        from,
			CryptoCurrency:      to,
			Done:                true,
		},
		pendingPolls: e.settleAfter,
	}
	return ref, nil
}

func (e *Exchange) Buy(
	ctx context.Context,
	fromCurrency, toCurrency currency.Code,
	amount int64,
) (string, error) {
	return e.place(fromCurrency, toCurrency, amount)
}

func (e *Exchange) Sell(
	ctx context.Context,
	fromCurrency, toCurrency currency.Code,
	amount int64,
) (string, error) {
	return e.place(fromCurrency, toCurrency, amount)
}

func (e *Exchange) OrderResult(ctx context.Context, orderRef string) (*provider.OrderResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderRef]
	if !ok {
		return nil, fmt.Errorf("mockexchange: unknown order %s", orderRef)
	}
	if o.pendingPolls > 0 {
		o.pendingPolls--
		pending := o.result
		pending.Done = false
		return &pending, nil
	}
	result := o.result
	return &result, nil
}

func (e *Exchange) Withdraw(
	ctx context.Context,
	code currency.Code,
	destinationKey string,
	amount int64,
) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	ref := uuid.NewString()
	e.withdrawals[code] = append(e.withdrawals[code], provider.WithdrawInfo{
		ReferenceID: ref,
		Amount:      amount,
		Completed:   true,
	})
	return ref, nil
}

func (e *Exchange) WithdrawStatus(
	ctx context.Context,
	code currency.Code,
) ([]provider.WithdrawInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]provider.WithdrawInfo, len(e.withdrawals[code]))
	copy(out, e.withdrawals[code])
	return out, nil
}

var _ provider.Exchange = (*Exchange)(nil)

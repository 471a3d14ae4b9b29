// Package mockwallet is an in-memory WalletCustody used in development and
// tests. Transfers are approved immediately unless holds are enabled.
package mockwallet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/finwire/backoffice/pkg/currency"
	"github.com/finwire/backoffice/pkg/provider"
	"github.com/google/uuid"
)

// Wallet is a deterministic sandbox custody service.
type Wallet struct {
	mu        sync.Mutex
	transfers map[string][]provider.Transfer // walletID -> transfers
	holds     bool
	approved  map[string]bool // txid -> approval override when holds are on
}

// New creates an empty sandbox wallet service.
func New() *Wallet {
	return &Wallet{
		transfers: make(map[string][]provider.Transfer),
		approved:  make(map[string]bool),
	}
}

// HoldApprovals makes new transfers stay pending until Approve is called.
func (w *Wallet) HoldApprovals() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.holds = true
}

// Approve marks a held transfer as approved.
func (w *Wallet) Approve(txid string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.approved[txid] = true
}

// Deposit records an inbound transfer on a wallet, simulating an external
// sender. Returns the generated txid.
func (w *Wallet) Deposit(walletID string, amount int64, inputs []string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	txid := uuid.NewString()
	state := provider.TransferApproved
	if w.holds {
		state = provider.TransferPending
	}
	w.transfers[walletID] = append(w.transfers[walletID], provider.Transfer{
		TxID:      txid,
		Type:      "receive",
		State:     state,
		Value:     amount,
		Inputs:    inputs,
		CreatedAt: time.Now(),
	})
	return txid
}

func (w *Wallet) Send(
	ctx context.Context,
	fromWallet, toWallet string,
	amount int64,
	memo string,
) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if fromWallet == "" || toWallet == "" {
		return "", fmt.Errorf("mockwallet: missing wallet id")
	}
	txid := uuid.NewString()
	state := provider.TransferApproved
	if w.holds {
		state = provider.TransferPending
	}
	now := time.Now()
	w.transfers[fromWallet] = append(w.transfers[fromWallet], provider.Transfer{
		TxID: txid, Type: "send", State: state, Value: amount, CreatedAt: now,
	})
	w.transfers[toWallet] = append(w.transfers[toWallet], provider.Transfer{
		TxID: txid, Type: "receive", State: state, Value: amount, CreatedAt: now,
	})
	return txid, nil
}

func (w *Wallet) ListTransfers(
	ctx context.Context,
	code currency.Code,
	walletID string,
) ([]provider.Transfer, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]provider.Transfer, len(w.transfers[walletID]))
	copy(out, w.transfers[walletID])
	return out, nil
}

func (w *Wallet) IsApproved(ctx context.Context, t provider.Transfer) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t.State == provider.TransferApproved {
		return true, nil
	}
	return w.approved[t.TxID], nil
}

var _ provider.WalletCustody = (*Wallet)(nil)

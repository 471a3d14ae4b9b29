// Package eventbus provides the in-process bus carrying audit events.
package eventbus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/finwire/backoffice/pkg/domain/events"
)

// HandlerFunc handles a published event.
type HandlerFunc func(ctx context.Context, e events.Event)

// Bus defines the contract for publishing and subscribing to events.
type Bus interface {
	Publish(ctx context.Context, event events.Event)
	Subscribe(eventType string, handler HandlerFunc)
}

// Memory is a synchronous in-process Bus.
type Memory struct {
	handlers map[string][]HandlerFunc
	mu       sync.RWMutex
}

// NewMemory creates an empty in-process bus.
func NewMemory() *Memory {
	return &Memory{handlers: make(map[string][]HandlerFunc)}
}

// Publish delivers the event to every subscriber of its type, synchronously.
func (b *Memory) Publish(ctx context.Context, event events.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, handler := range b.handlers[event.Type()] {
		handler(ctx, event)
	}
}

// Subscribe registers a handler for an event type.
func (b *Memory) Subscribe(eventType string, handler HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// NewAuditSubscriber wires a slog-backed audit trail onto the bus: every
// posting and settlement is logged with both endpoint ids.
func NewAuditSubscriber(bus Bus, logger *slog.Logger) {
	log := logger.With("component", "audit")
	bus.Subscribe("ledger.TransactionPosted", func(_ context.Context, e events.Event) {
		tp, ok := e.(events.TransactionPosted)
		if !ok {
			return
		}
		log.Info("transaction posted",
			"transaction_id", tp.TransactionID,
			"operation_id", tp.OperationID,
			"type", tp.TransactionType,
			"amount", tp.Amount,
			"from_account", tp.FromAccountID,
			"from_owner", tp.FromOwner,
			"to_account", tp.ToAccountID,
			"to_owner", tp.ToOwner,
			"status", tp.Status,
		)
	})
	bus.Subscribe("operation.Advanced", func(_ context.Context, e events.Event) {
		oa, ok := e.(events.OperationAdvanced)
		if !ok {
			return
		}
		log.Info("operation advanced",
			"operation_id", oa.OperationID,
			"type", oa.OperationType,
			"from_step", oa.FromStep,
			"to_step", oa.ToStep,
		)
	})
	bus.Subscribe("operation.Settled", func(_ context.Context, e events.Event) {
		os, ok := e.(events.OperationSettled)
		if !ok {
			return
		}
		log.Info("operation settled",
			"operation_id", os.OperationID,
			"type", os.OperationType,
			"status", os.Status,
		)
	})
}

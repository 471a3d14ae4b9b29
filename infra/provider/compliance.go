// Package provider holds infrastructure adapters for the external
// collaborator interfaces in pkg/provider.
package provider

import (
	"context"

	"github.com/finwire/backoffice/pkg/provider"
	"github.com/google/uuid"
)

// StaticCompliance is a fixed-level compliance adapter used until the real
// compliance system is reachable. Every profile shares one level and a hard
// per-operation ceiling.
type StaticCompliance struct {
	Level        int
	MaxAmountEUR int64
}

// NewStaticCompliance builds the adapter. A zero ceiling disables the gate.
func NewStaticCompliance(level int, maxAmountEUR int64) *StaticCompliance {
	return &StaticCompliance{Level: level, MaxAmountEUR: maxAmountEUR}
}

func (c *StaticCompliance) IsWithinLimits(
	ctx context.Context,
	profileID uuid.UUID,
	amountEUR int64,
) (bool, error) {
	if c.MaxAmountEUR > 0 && amountEUR > c.MaxAmountEUR {
		return false, nil
	}
	return true, nil
}

func (c *StaticCompliance) ComplianceLevel(ctx context.Context, profileID uuid.UUID) (int, error) {
	return c.Level, nil
}

var _ provider.Compliance = (*StaticCompliance)(nil)

package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PolicyBasis selects how a policy derives its stop price.
type PolicyBasis string

const (
	// BasisRelative places the stop a fraction below the average entry price:
	// stop = avg_entry * (1 - StopLossPct).
	BasisRelative PolicyBasis = "relative"
	// BasisAbsolute places the stop at a fixed literal price.
	BasisAbsolute PolicyBasis = "absolute"
)

// TrailRule activates a trailing stop once the position's unrealized P/L
// fraction reaches TriggerPLPC.
type TrailRule struct {
	TriggerPLPC  decimal.Decimal // e.g. 0.05 = +5%
	TrailPercent decimal.Decimal // trail distance in percent, e.g. 8.0
}

// ProtectionPolicy is the per-symbol protection configuration, static for a
// run. Exactly one policy resolves per symbol; unknown symbols receive the
// resolver's default.
type ProtectionPolicy struct {
	Basis       PolicyBasis
	StopLossPct decimal.Decimal // BasisRelative only
	StopPrice   decimal.Decimal // BasisAbsolute only
	Trail       *TrailRule      // nil = never swap to trailing
}

// Validate checks the policy parameters for internal consistency.
func (p ProtectionPolicy) Validate() error {
	switch p.Basis {
	case BasisRelative:
		if p.StopLossPct.LessThanOrEqual(decimal.Zero) || p.StopLossPct.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return fmt.Errorf("relative policy stop_loss_pct must be in (0, 1), got %s", p.StopLossPct)
		}
	case BasisAbsolute:
		if p.StopPrice.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("absolute policy stop_price must be positive, got %s", p.StopPrice)
		}
	default:
		return fmt.Errorf("unknown policy basis %q", p.Basis)
	}
	if p.Trail != nil {
		if p.Trail.TriggerPLPC.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("trail rule trigger_plpc must be positive, got %s", p.Trail.TriggerPLPC)
		}
		if p.Trail.TrailPercent.LessThanOrEqual(decimal.Zero) || p.Trail.TrailPercent.GreaterThanOrEqual(decimal.NewFromInt(100)) {
			return fmt.Errorf("trail rule trail_percent must be in (0, 100), got %s", p.Trail.TrailPercent)
		}
	}
	return nil
}

// StopTarget computes the fixed stop price the policy implies for a position
// entered at avgEntry. The relative basis result is currency-rounded by the
// caller.
func (p ProtectionPolicy) StopTarget(avgEntry decimal.Decimal) decimal.Decimal {
	if p.Basis == BasisAbsolute {
		return p.StopPrice
	}
	return avgEntry.Mul(decimal.NewFromInt(1).Sub(p.StopLossPct))
}

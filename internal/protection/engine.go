// Package protection implements the protective-order state machine: given a
// position, its policy and the currently open protective orders, it decides
// which order operations bring the symbol to its target protection state.
package protection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"stopkeeper/internal/domain"
	"stopkeeper/internal/ports"
)

// defaultSettleDelay is the grace interval after cancelling a fixed stop
// before submitting the trailing replacement. The broker frees the quantity
// reserved by a cancelled order eventually, not atomically with the cancel
// acknowledgement.
const defaultSettleDelay = 2 * time.Second

// Engine computes and executes the per-symbol protection transition.
// Stateless across runs: the broker's order book is the only state.
type Engine struct {
	exec        Executor
	logger      ports.Logger
	settleDelay time.Duration
	sleep       func(time.Duration)
}

// Config holds the engine's dependencies.
type Config struct {
	Executor Executor
	Logger   ports.Logger
	// SettleDelay overrides the post-cancel grace interval; zero or negative
	// selects the default.
	SettleDelay time.Duration
}

// NewEngine creates a transition engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Executor == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("missing required dependencies for protection engine")
	}
	delay := cfg.SettleDelay
	if delay <= 0 {
		delay = defaultSettleDelay
	}
	return &Engine{
		exec:        cfg.Executor,
		logger:      cfg.Logger,
		settleDelay: delay,
		sleep:       time.Sleep,
	}, nil
}

// Result reports the outcome of one symbol's evaluation.
type Result struct {
	Symbol        string
	OrdersCreated int                  // successful submissions, rollbacks included
	Decisions     []string             // human-readable trace, one line per decision
	Events        []*domain.OrderEvent // order operations attempted, for the journal
}

func (r *Result) trace(format string, args ...interface{}) {
	r.Decisions = append(r.Decisions, fmt.Sprintf(format, args...))
}

// Protect evaluates one long position against its policy and current
// protection state, executing the minimal set of submit/cancel operations.
// The decision procedure, in fixed order:
//
//  1. compute the fixed stop target from the policy
//  2. cancel redundant orders (fixed stop lingering next to a trailing stop,
//     duplicate orders of either kind)
//  3. a trailing stop already open is terminal for this run
//  4. if the trail rule triggers, swap: cancel the fixed stop, wait out the
//     broker's cancel settlement, submit the trailing order; roll back to a
//     fixed stop if the trailing submission fails
//  5. ensure a fixed stop exists if the symbol ended up with no protection
//
// Every submit/cancel result is authoritative over the prior read: another
// process or the broker itself may have mutated the book in between.
func (e *Engine) Protect(ctx context.Context, pos *domain.Position, pol domain.ProtectionPolicy, state ProtectionState) (*Result, error) {
	res := &Result{Symbol: pos.Symbol}

	// 1. Stop target.
	stopTarget := RoundCurrency(pol.StopTarget(pos.AvgEntryPrice))

	// 2. Redundancy cleanup. A fixed stop lingering next to a trailing stop
	// is the leftover of a completed swap, not an error.
	if state.Trailing != nil && state.Fixed != nil {
		if err := e.cancelOrder(ctx, res, state.Fixed, "redundant fixed stop next to trailing"); err == nil {
			state.Fixed = nil
		}
	}
	for _, extra := range state.Extras {
		// Best effort: a failed duplicate cancel is retried naturally on the
		// next run.
		_ = e.cancelOrder(ctx, res, extra, "duplicate protective order")
	}

	// 3. Already trailing: terminal protection mode.
	if state.Trailing != nil {
		res.trace("%s: trailing stop already in place (id=%s)", pos.Symbol, state.Trailing.ID)
		e.logger.Debug(ctx, "Trailing stop already in place", map[string]interface{}{"symbol": pos.Symbol, "orderID": state.Trailing.ID})
		return res, nil
	}

	// 4. Swap eligibility.
	if pol.Trail != nil {
		if pos.UnrealizedPLPC == nil {
			res.trace("%s: no P/L%% available, trailing not eligible this run", pos.Symbol)
			e.logger.Warn(ctx, "No unrealized P/L percentage on position, skipping trailing check", map[string]interface{}{"symbol": pos.Symbol})
		} else if pos.UnrealizedPLPC.GreaterThanOrEqual(pol.Trail.TriggerPLPC) {
			if err := e.swapToTrailing(ctx, res, pos, pol, stopTarget, &state); err != nil {
				return res, err
			}
			if state.Trailing != nil {
				return res, nil
			}
		} else {
			res.trace("%s: P/L%%=%s below trigger %s, no trailing", pos.Symbol, pos.UnrealizedPLPC, pol.Trail.TriggerPLPC)
		}
	}

	// 5. Baseline protection. An already-open fixed stop is left untouched
	// even if the target has since drifted; the engine only swaps category,
	// it never refreshes an order of the correct category.
	if state.Fixed == nil && state.Trailing == nil {
		order, err := e.submitStop(ctx, res, pos.Symbol, pos.Qty, stopTarget)
		if err != nil {
			return res, fmt.Errorf("baseline stop for %s: %w", pos.Symbol, err)
		}
		state.Fixed = order
	} else if state.Fixed != nil {
		res.trace("%s: fixed stop already in place (id=%s)", pos.Symbol, state.Fixed.ID)
		e.logger.Debug(ctx, "Fixed stop already in place", map[string]interface{}{"symbol": pos.Symbol, "orderID": state.Fixed.ID})
	}

	return res, nil
}

// swapToTrailing replaces the fixed stop with a trailing stop. On any failure
// the symbol must still end the run protected: a failed cancel aborts the
// swap with the fixed stop intact, a failed trailing submission rolls back to
// a fresh fixed stop, and only a failed rollback surfaces ErrUnprotected.
func (e *Engine) swapToTrailing(ctx context.Context, res *Result, pos *domain.Position, pol domain.ProtectionPolicy, stopTarget decimal.Decimal, state *ProtectionState) error {
	// Trailing orders cannot carry fractional quantity. Checked before the
	// cancel: a rejected quantity keeps the existing fixed stop untouched
	// instead of cancelling and resubmitting it every run.
	qty, ok := NormalizeTrailingQty(pos.Qty)
	if !ok {
		res.trace("%s: position too small for trailing after flooring, keeping fixed stop", pos.Symbol)
		e.logger.Info(ctx, "Quantity too small for trailing stop, skipping swap", map[string]interface{}{"symbol": pos.Symbol, "qty": pos.Qty.String()})
		return nil
	}

	// Free the quantity held by the fixed stop before submitting the
	// trailing order, then wait out the broker's settlement window.
	if state.Fixed != nil {
		if err := e.cancelOrder(ctx, res, state.Fixed, "fixed stop before trailing swap"); err != nil {
			res.trace("%s: could not cancel fixed stop, swap aborted this run", pos.Symbol)
			return nil // fixed stop remains, baseline is satisfied
		}
		state.Fixed = nil
		e.sleep(e.settleDelay)
	}

	// Submit the trailing order.
	trailPct := pol.Trail.TrailPercent
	order, err := e.exec.SubmitTrailing(ctx, pos.Symbol, qty, trailPct)
	event := &domain.OrderEvent{
		Timestamp:    time.Now().UTC(),
		Symbol:       pos.Symbol,
		Action:       domain.ActionSubmitTrailing,
		Kind:         domain.TrailingStop,
		Qty:          qty,
		TrailPercent: &trailPct,
	}
	if err == nil {
		event.OK = true
		event.OrderID = order.ID
		res.Events = append(res.Events, event)
		res.OrdersCreated++
		state.Trailing = order
		res.trace("%s: trailing stop submitted qty=%s trail%%=%s (id=%s)", pos.Symbol, qty, trailPct, order.ID)
		e.logger.Info(ctx, "Trailing stop submitted", map[string]interface{}{
			"symbol":       pos.Symbol,
			"qty":          qty.String(),
			"trailPercent": trailPct.String(),
			"orderID":      order.ID,
		})
		return nil
	}
	event.Error = err.Error()
	res.Events = append(res.Events, event)
	res.trace("%s: trailing submission failed: %v", pos.Symbol, err)
	e.logger.Error(ctx, err, "Trailing stop submission failed, rolling back to fixed stop", map[string]interface{}{"symbol": pos.Symbol})

	// Roll back: the position must not be left unprotected. Full original
	// quantity, not the floored trailing quantity.
	rollback, rbErr := e.submitStop(ctx, res, pos.Symbol, pos.Qty, stopTarget)
	if rbErr != nil {
		res.trace("%s: ROLLBACK FAILED, position unprotected", pos.Symbol)
		e.logger.Error(ctx, rbErr, "ROLLBACK FAILED: position left without protective order", map[string]interface{}{"symbol": pos.Symbol})
		return fmt.Errorf("%w: %s: trailing failed (%v), rollback failed (%v)", ports.ErrUnprotected, pos.Symbol, err, rbErr)
	}
	state.Fixed = rollback
	res.trace("%s: rolled back to fixed stop at %s (id=%s)", pos.Symbol, stopTarget, rollback.ID)
	return nil
}

// submitStop places a fixed stop for the full quantity at stopPrice, with the
// time-in-force the quantity mandates, and records the attempt.
func (e *Engine) submitStop(ctx context.Context, res *Result, symbol string, qty, stopPrice decimal.Decimal) (*domain.ProtectionOrder, error) {
	tif := TimeInForceFor(qty)
	order, err := e.exec.SubmitStop(ctx, symbol, qty, stopPrice, tif)
	event := &domain.OrderEvent{
		Timestamp: time.Now().UTC(),
		Symbol:    symbol,
		Action:    domain.ActionSubmitStop,
		Kind:      domain.FixedStop,
		Qty:       qty,
		StopPrice: &stopPrice,
	}
	if err != nil {
		event.Error = err.Error()
		res.Events = append(res.Events, event)
		res.trace("%s: fixed stop submission failed: %v", symbol, err)
		e.logger.Error(ctx, err, "Fixed stop submission failed", map[string]interface{}{"symbol": symbol, "stopPrice": stopPrice.String()})
		return nil, err
	}
	event.OK = true
	event.OrderID = order.ID
	res.Events = append(res.Events, event)
	res.OrdersCreated++
	res.trace("%s: fixed stop submitted qty=%s stop=%s tif=%s (id=%s)", symbol, qty, stopPrice, tif, order.ID)
	e.logger.Info(ctx, "Fixed stop submitted", map[string]interface{}{
		"symbol":      symbol,
		"qty":         qty.String(),
		"stopPrice":   stopPrice.String(),
		"timeInForce": string(tif),
		"orderID":     order.ID,
	})
	return order, nil
}

// errorsIsOrderGone reports whether a cancel failure means the order already
// left the book (filled or cancelled elsewhere), which is success here.
func errorsIsOrderGone(err error) bool {
	return errors.Is(err, ports.ErrOrderNotFound)
}

// cancelOrder cancels one order and records the attempt. An order already
// gone from the book counts as cancelled.
func (e *Engine) cancelOrder(ctx context.Context, res *Result, order *domain.ProtectionOrder, reason string) error {
	err := e.exec.Cancel(ctx, order.ID)
	event := &domain.OrderEvent{
		Timestamp: time.Now().UTC(),
		Symbol:    order.Symbol,
		Action:    domain.ActionCancel,
		Kind:      order.Kind,
		Qty:       order.Qty,
		OrderID:   order.ID,
	}
	if err != nil && errorsIsOrderGone(err) {
		err = nil
	}
	if err != nil {
		event.Error = err.Error()
		res.Events = append(res.Events, event)
		res.trace("%s: cancel failed for %s (%s): %v", order.Symbol, order.ID, reason, err)
		e.logger.Error(ctx, err, "Order cancellation failed", map[string]interface{}{"symbol": order.Symbol, "orderID": order.ID, "reason": reason})
		return err
	}
	event.OK = true
	res.Events = append(res.Events, event)
	res.trace("%s: cancelled %s (%s)", order.Symbol, order.ID, reason)
	e.logger.Info(ctx, "Order cancelled", map[string]interface{}{"symbol": order.Symbol, "orderID": order.ID, "reason": reason})
	return nil
}

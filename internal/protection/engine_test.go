package protection

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stopkeeper/internal/domain"
	"stopkeeper/internal/ports"
)

// Mock implementations

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type stopCall struct {
	symbol    string
	qty       decimal.Decimal
	stopPrice decimal.Decimal
	tif       domain.TimeInForce
}

type trailingCall struct {
	symbol       string
	qty          decimal.Decimal
	trailPercent decimal.Decimal
}

type mockExecutor struct {
	stopErr     error
	trailingErr error
	cancelErrs  map[string]error

	stopCalls     []stopCall
	trailingCalls []trailingCall
	cancelled     []string
	nextID        int
}

func (m *mockExecutor) newID() string {
	m.nextID++
	return fmt.Sprintf("order-%d", m.nextID)
}

func (m *mockExecutor) SubmitStop(ctx context.Context, symbol string, qty, stopPrice decimal.Decimal, tif domain.TimeInForce) (*domain.ProtectionOrder, error) {
	m.stopCalls = append(m.stopCalls, stopCall{symbol: symbol, qty: qty, stopPrice: stopPrice, tif: tif})
	if m.stopErr != nil {
		return nil, m.stopErr
	}
	price := stopPrice
	return &domain.ProtectionOrder{
		ID:        m.newID(),
		Symbol:    symbol,
		Side:      domain.Sell,
		Kind:      domain.FixedStop,
		Qty:       qty,
		Status:    domain.StatusNew,
		StopPrice: &price,
	}, nil
}

func (m *mockExecutor) SubmitTrailing(ctx context.Context, symbol string, qty, trailPercent decimal.Decimal) (*domain.ProtectionOrder, error) {
	m.trailingCalls = append(m.trailingCalls, trailingCall{symbol: symbol, qty: qty, trailPercent: trailPercent})
	if m.trailingErr != nil {
		return nil, m.trailingErr
	}
	pct := trailPercent
	return &domain.ProtectionOrder{
		ID:           m.newID(),
		Symbol:       symbol,
		Side:         domain.Sell,
		Kind:         domain.TrailingStop,
		Qty:          qty,
		Status:       domain.StatusNew,
		TrailPercent: &pct,
	}, nil
}

func (m *mockExecutor) Cancel(ctx context.Context, orderID string) error {
	m.cancelled = append(m.cancelled, orderID)
	if err, ok := m.cancelErrs[orderID]; ok {
		return err
	}
	return nil
}

func newTestEngine(t *testing.T, exec Executor) *Engine {
	t.Helper()
	engine, err := NewEngine(Config{
		Executor:    exec,
		Logger:      &mockLogger{},
		SettleDelay: time.Millisecond,
	})
	require.NoError(t, err)
	engine.sleep = func(time.Duration) {} // no real waiting in tests
	return engine
}

func longPosition(symbol, qty, avgEntry string, plpc *string) *domain.Position {
	p := &domain.Position{
		Symbol:        symbol,
		Qty:           dec(qty),
		AvgEntryPrice: dec(avgEntry),
		CurrentPrice:  dec(avgEntry),
	}
	if plpc != nil {
		v := dec(*plpc)
		p.UnrealizedPLPC = &v
	}
	return p
}

func strPtr(s string) *string { return &s }

func relativePolicy(pct string, trail *domain.TrailRule) domain.ProtectionPolicy {
	return domain.ProtectionPolicy{Basis: domain.BasisRelative, StopLossPct: dec(pct), Trail: trail}
}

func TestEngine_BaselineFixedStop(t *testing.T) {
	// Integer position with no protection gets one fixed stop at the
	// relative target, GTC.
	exec := &mockExecutor{}
	engine := newTestEngine(t, exec)

	pos := longPosition("XYZ", "10", "100", nil)
	res, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", nil), ProtectionState{})
	require.NoError(t, err)

	require.Len(t, exec.stopCalls, 1)
	call := exec.stopCalls[0]
	assert.Equal(t, "XYZ", call.symbol)
	assert.True(t, call.qty.Equal(dec("10")))
	assert.True(t, call.stopPrice.Equal(dec("90")), "stop price = %s, want 90.00", call.stopPrice)
	assert.Equal(t, domain.GTC, call.tif)
	assert.Empty(t, exec.trailingCalls)
	assert.Empty(t, exec.cancelled)
	assert.Equal(t, 1, res.OrdersCreated)
}

func TestEngine_FractionalBaselineUsesDay(t *testing.T) {
	// Absolute policy, fractional quantity: stop at the literal price, DAY.
	exec := &mockExecutor{}
	engine := newTestEngine(t, exec)

	pos := longPosition("DEF", "3.5", "52.10", nil)
	pol := domain.ProtectionPolicy{Basis: domain.BasisAbsolute, StopPrice: dec("48.0")}
	res, err := engine.Protect(context.Background(), pos, pol, ProtectionState{})
	require.NoError(t, err)

	require.Len(t, exec.stopCalls, 1)
	call := exec.stopCalls[0]
	assert.True(t, call.qty.Equal(dec("3.5")))
	assert.True(t, call.stopPrice.Equal(dec("48")))
	assert.Equal(t, domain.Day, call.tif)
	assert.Equal(t, 1, res.OrdersCreated)
}

func TestEngine_ExistingFixedStopLeftUntouched(t *testing.T) {
	// Idempotence: a correct-category order is never refreshed, even if the
	// target has drifted since it was placed.
	exec := &mockExecutor{}
	engine := newTestEngine(t, exec)

	state := ProtectionState{Fixed: stopOrder("f1", domain.FixedStop)}
	pos := longPosition("XYZ", "10", "100", nil)
	res, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", nil), state)
	require.NoError(t, err)

	assert.Empty(t, exec.stopCalls)
	assert.Empty(t, exec.trailingCalls)
	assert.Empty(t, exec.cancelled)
	assert.Equal(t, 0, res.OrdersCreated)
}

func TestEngine_SwapToTrailing(t *testing.T) {
	// P/L above the trigger: cancel the fixed stop, wait, submit trailing.
	exec := &mockExecutor{}
	engine := newTestEngine(t, exec)
	var slept []time.Duration
	engine.sleep = func(d time.Duration) { slept = append(slept, d) }

	trail := &domain.TrailRule{TriggerPLPC: dec("0.05"), TrailPercent: dec("8.0")}
	state := ProtectionState{Fixed: stopOrder("f1", domain.FixedStop)}
	pos := longPosition("ABC", "10", "50", strPtr("0.06"))
	res, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", trail), state)
	require.NoError(t, err)

	assert.Equal(t, []string{"f1"}, exec.cancelled)
	require.Len(t, slept, 1, "must wait out the cancel settlement window")
	require.Len(t, exec.trailingCalls, 1)
	call := exec.trailingCalls[0]
	assert.Equal(t, "ABC", call.symbol)
	assert.True(t, call.qty.Equal(dec("10")))
	assert.True(t, call.trailPercent.Equal(dec("8.0")))
	assert.Empty(t, exec.stopCalls, "no fixed stop must be submitted after a successful swap")
	assert.Equal(t, 1, res.OrdersCreated)
}

func TestEngine_SwapWithoutExistingFixed(t *testing.T) {
	// Trigger met and nothing open: the trailing order goes straight in,
	// no baseline fixed stop afterwards.
	exec := &mockExecutor{}
	engine := newTestEngine(t, exec)

	trail := &domain.TrailRule{TriggerPLPC: dec("0.05"), TrailPercent: dec("8.0")}
	pos := longPosition("ABC", "10", "50", strPtr("0.09"))
	res, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", trail), ProtectionState{})
	require.NoError(t, err)

	assert.Empty(t, exec.cancelled)
	require.Len(t, exec.trailingCalls, 1)
	assert.Empty(t, exec.stopCalls)
	assert.Equal(t, 1, res.OrdersCreated)
}

func TestEngine_TrailingFloorsFractionalQty(t *testing.T) {
	exec := &mockExecutor{}
	engine := newTestEngine(t, exec)

	trail := &domain.TrailRule{TriggerPLPC: dec("0.05"), TrailPercent: dec("8.0")}
	pos := longPosition("ABC", "2.7", "50", strPtr("0.06"))
	res, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", trail), ProtectionState{})
	require.NoError(t, err)

	require.Len(t, exec.trailingCalls, 1)
	assert.True(t, exec.trailingCalls[0].qty.Equal(dec("2")), "trailing qty = %s, want floored 2", exec.trailingCalls[0].qty)
	assert.Equal(t, 1, res.OrdersCreated)
}

func TestEngine_QtyTooSmallForTrailingKeepsFixed(t *testing.T) {
	// 0.4 shares floor to zero: the swap is skipped silently and the
	// existing fixed stop is not even cancelled.
	exec := &mockExecutor{}
	engine := newTestEngine(t, exec)

	trail := &domain.TrailRule{TriggerPLPC: dec("0.05"), TrailPercent: dec("8.0")}
	state := ProtectionState{Fixed: stopOrder("f1", domain.FixedStop)}
	pos := longPosition("ABC", "0.4", "50", strPtr("0.10"))
	res, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", trail), state)
	require.NoError(t, err)

	assert.Empty(t, exec.cancelled)
	assert.Empty(t, exec.trailingCalls)
	assert.Empty(t, exec.stopCalls)
	assert.Equal(t, 0, res.OrdersCreated)
}

func TestEngine_QtyTooSmallWithoutFixedStillGetsBaseline(t *testing.T) {
	exec := &mockExecutor{}
	engine := newTestEngine(t, exec)

	trail := &domain.TrailRule{TriggerPLPC: dec("0.05"), TrailPercent: dec("8.0")}
	pos := longPosition("ABC", "0.4", "50", strPtr("0.10"))
	res, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", trail), ProtectionState{})
	require.NoError(t, err)

	assert.Empty(t, exec.trailingCalls)
	require.Len(t, exec.stopCalls, 1)
	assert.True(t, exec.stopCalls[0].qty.Equal(dec("0.4")))
	assert.Equal(t, domain.Day, exec.stopCalls[0].tif)
	assert.Equal(t, 1, res.OrdersCreated)
}

func TestEngine_CancelFailureAbortsSwap(t *testing.T) {
	// If the fixed stop cannot be cancelled its quantity may still be
	// reserved, so no trailing submission is attempted and the fixed stop
	// keeps protecting the position.
	exec := &mockExecutor{cancelErrs: map[string]error{"f1": ports.ErrOrderCancelFailed}}
	engine := newTestEngine(t, exec)

	trail := &domain.TrailRule{TriggerPLPC: dec("0.05"), TrailPercent: dec("8.0")}
	state := ProtectionState{Fixed: stopOrder("f1", domain.FixedStop)}
	pos := longPosition("ABC", "10", "50", strPtr("0.06"))
	res, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", trail), state)
	require.NoError(t, err)

	assert.Equal(t, []string{"f1"}, exec.cancelled)
	assert.Empty(t, exec.trailingCalls)
	assert.Empty(t, exec.stopCalls)
	assert.Equal(t, 0, res.OrdersCreated)
}

func TestEngine_CancelOrderAlreadyGoneCountsAsCancelled(t *testing.T) {
	// An order missing from the book was filled or cancelled elsewhere;
	// the swap proceeds.
	exec := &mockExecutor{cancelErrs: map[string]error{"f1": fmt.Errorf("cancel: %w", ports.ErrOrderNotFound)}}
	engine := newTestEngine(t, exec)

	trail := &domain.TrailRule{TriggerPLPC: dec("0.05"), TrailPercent: dec("8.0")}
	state := ProtectionState{Fixed: stopOrder("f1", domain.FixedStop)}
	pos := longPosition("ABC", "10", "50", strPtr("0.06"))
	res, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", trail), state)
	require.NoError(t, err)

	require.Len(t, exec.trailingCalls, 1)
	assert.Equal(t, 1, res.OrdersCreated)
}

func TestEngine_RollbackOnTrailingFailure(t *testing.T) {
	// The ABC scenario: trailing submission fails after the fixed stop was
	// cancelled; the engine resubmits a fixed stop at the target so the
	// position is never left unprotected.
	exec := &mockExecutor{trailingErr: ports.ErrOrderPlacementFailed}
	engine := newTestEngine(t, exec)

	trail := &domain.TrailRule{TriggerPLPC: dec("0.05"), TrailPercent: dec("8.0")}
	state := ProtectionState{Fixed: stopOrder("f1", domain.FixedStop)}
	pos := longPosition("ABC", "10", "50", strPtr("0.06"))
	res, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", trail), state)
	require.NoError(t, err)

	assert.Equal(t, []string{"f1"}, exec.cancelled)
	require.Len(t, exec.trailingCalls, 1)
	require.Len(t, exec.stopCalls, 1)
	rollback := exec.stopCalls[0]
	assert.True(t, rollback.qty.Equal(dec("10")), "rollback must cover the full original quantity")
	assert.True(t, rollback.stopPrice.Equal(dec("45")), "rollback stop = %s, want 45.00", rollback.stopPrice)
	// The rollback counts as a submission even though the net order count
	// for the symbol is unchanged.
	assert.Equal(t, 1, res.OrdersCreated)
}

func TestEngine_RollbackFailureSurfacesUnprotected(t *testing.T) {
	exec := &mockExecutor{
		trailingErr: ports.ErrOrderPlacementFailed,
		stopErr:     ports.ErrOrderPlacementFailed,
	}
	engine := newTestEngine(t, exec)

	trail := &domain.TrailRule{TriggerPLPC: dec("0.05"), TrailPercent: dec("8.0")}
	state := ProtectionState{Fixed: stopOrder("f1", domain.FixedStop)}
	pos := longPosition("ABC", "10", "50", strPtr("0.06"))
	res, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", trail), state)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrUnprotected))
	assert.Equal(t, 0, res.OrdersCreated)
}

func TestEngine_AlreadyTrailingIsTerminal(t *testing.T) {
	exec := &mockExecutor{}
	engine := newTestEngine(t, exec)

	trail := &domain.TrailRule{TriggerPLPC: dec("0.05"), TrailPercent: dec("8.0")}
	state := ProtectionState{Trailing: stopOrder("t1", domain.TrailingStop)}
	pos := longPosition("ABC", "10", "50", strPtr("0.20"))
	res, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", trail), state)
	require.NoError(t, err)

	assert.Empty(t, exec.cancelled)
	assert.Empty(t, exec.trailingCalls)
	assert.Empty(t, exec.stopCalls)
	assert.Equal(t, 0, res.OrdersCreated)
}

func TestEngine_RedundantFixedNextToTrailingIsCancelled(t *testing.T) {
	// Both kinds open at once: the trailing stop is the terminal protection
	// mode, the lingering fixed stop goes away and nothing new is created.
	exec := &mockExecutor{}
	engine := newTestEngine(t, exec)

	state := ProtectionState{
		Fixed:    stopOrder("f1", domain.FixedStop),
		Trailing: stopOrder("t1", domain.TrailingStop),
	}
	pos := longPosition("ABC", "10", "50", strPtr("0.06"))
	trail := &domain.TrailRule{TriggerPLPC: dec("0.05"), TrailPercent: dec("8.0")}
	res, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", trail), state)
	require.NoError(t, err)

	assert.Equal(t, []string{"f1"}, exec.cancelled)
	assert.Empty(t, exec.trailingCalls)
	assert.Empty(t, exec.stopCalls)
	assert.Equal(t, 0, res.OrdersCreated)
}

func TestEngine_DuplicateOrdersAreCancelled(t *testing.T) {
	exec := &mockExecutor{}
	engine := newTestEngine(t, exec)

	state := ProtectionState{
		Fixed:  stopOrder("f1", domain.FixedStop),
		Extras: []*domain.ProtectionOrder{stopOrder("f2", domain.FixedStop)},
	}
	pos := longPosition("XYZ", "10", "100", nil)
	res, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", nil), state)
	require.NoError(t, err)

	assert.Equal(t, []string{"f2"}, exec.cancelled)
	assert.Empty(t, exec.stopCalls, "authoritative fixed stop must survive")
	assert.Equal(t, 0, res.OrdersCreated)
}

func TestEngine_MissingPLPCSkipsTrailingKeepsBaseline(t *testing.T) {
	// PolicyGap: no P/L percentage means trailing is not eligible this run,
	// but baseline protection still proceeds.
	exec := &mockExecutor{}
	engine := newTestEngine(t, exec)

	trail := &domain.TrailRule{TriggerPLPC: dec("0.05"), TrailPercent: dec("8.0")}
	pos := longPosition("ABC", "10", "50", nil)
	res, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", trail), ProtectionState{})
	require.NoError(t, err)

	assert.Empty(t, exec.trailingCalls)
	require.Len(t, exec.stopCalls, 1)
	assert.True(t, exec.stopCalls[0].stopPrice.Equal(dec("45")))
	assert.Equal(t, 1, res.OrdersCreated)
}

func TestEngine_BaselineSubmissionFailureReturnsError(t *testing.T) {
	exec := &mockExecutor{stopErr: ports.ErrOrderPlacementFailed}
	engine := newTestEngine(t, exec)

	pos := longPosition("XYZ", "10", "100", nil)
	_, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", nil), ProtectionState{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ports.ErrOrderPlacementFailed))
	assert.False(t, errors.Is(err, ports.ErrUnprotected), "a failed baseline is not a failed rollback")
}

func TestEngine_EventsRecordEveryOperation(t *testing.T) {
	exec := &mockExecutor{trailingErr: ports.ErrOrderPlacementFailed}
	engine := newTestEngine(t, exec)

	trail := &domain.TrailRule{TriggerPLPC: dec("0.05"), TrailPercent: dec("8.0")}
	state := ProtectionState{Fixed: stopOrder("f1", domain.FixedStop)}
	pos := longPosition("ABC", "10", "50", strPtr("0.06"))
	res, err := engine.Protect(context.Background(), pos, relativePolicy("0.10", trail), state)
	require.NoError(t, err)

	// cancel, failed trailing submit, rollback submit
	require.Len(t, res.Events, 3)
	assert.Equal(t, domain.ActionCancel, res.Events[0].Action)
	assert.True(t, res.Events[0].OK)
	assert.Equal(t, domain.ActionSubmitTrailing, res.Events[1].Action)
	assert.False(t, res.Events[1].OK)
	assert.NotEmpty(t, res.Events[1].Error)
	assert.Equal(t, domain.ActionSubmitStop, res.Events[2].Action)
	assert.True(t, res.Events[2].OK)
	assert.NotEmpty(t, res.Decisions)
}

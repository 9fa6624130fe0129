package ports

import (
	"context"

	"stopkeeper/internal/domain"
)

// RunJournal persists the audit trail of protection runs and the order
// operations they attempted. Write-mostly; reads exist for the CSV export.
type RunJournal interface {
	// CreateRun opens a new run record and returns its assigned ID.
	CreateRun(ctx context.Context, run *domain.RunRecord) (int64, error)
	// FinishRun fills in the run's final counters and finish time.
	FinishRun(ctx context.Context, run *domain.RunRecord) error
	// RecordEvent appends one order operation to the run's trail.
	RecordEvent(ctx context.Context, event *domain.OrderEvent) error
	// FindEvents retrieves the most recent order events, newest first, up to a limit.
	FindEvents(ctx context.Context, limit int) ([]*domain.OrderEvent, error)
	// FindRuns retrieves the most recent run records, newest first, up to a limit.
	FindRuns(ctx context.Context, limit int) ([]*domain.RunRecord, error)
}

// SnapshotStore is the append-only time series of account equity and
// per-symbol metrics the dashboard renders from.
type SnapshotStore interface {
	// AppendEquity appends one equity row unless a row with the same
	// timestamp is already the latest entry.
	AppendEquity(ctx context.Context, snap *domain.EquitySnapshot) error
	// AppendPositions appends one row per position.
	AppendPositions(ctx context.Context, snaps []*domain.PositionSnapshot) error
	// EquityHistory reads back the full equity series in append order.
	EquityHistory(ctx context.Context) ([]*domain.EquitySnapshot, error)
	// PositionHistory reads back the full per-symbol series in append order.
	PositionHistory(ctx context.Context) ([]*domain.PositionSnapshot, error)
}

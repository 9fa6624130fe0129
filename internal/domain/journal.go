package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventAction names an order operation attempted against the broker.
type EventAction string

const (
	ActionSubmitStop     EventAction = "submit_stop"
	ActionSubmitTrailing EventAction = "submit_trailing"
	ActionCancel         EventAction = "cancel"
)

// RunRecord summarizes one protection pass for the audit journal.
type RunRecord struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    time.Time
	PositionsSeen int
	OrdersCreated int
}

// OrderEvent is one order operation attempted during a run. Audit-only:
// the decision path never reads events back.
type OrderEvent struct {
	ID           int64
	RunID        int64
	Timestamp    time.Time
	Symbol       string
	Action       EventAction
	Kind         OrderKind
	Qty          decimal.Decimal
	StopPrice    *decimal.Decimal // submit_stop only
	TrailPercent *decimal.Decimal // submit_trailing only
	OrderID      string           // broker order ID: submitted or cancelled
	OK           bool
	Error        string // empty on success
}

package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EquitySnapshot is one append-only row of account-level history.
type EquitySnapshot struct {
	Timestamp      time.Time
	PortfolioValue decimal.Decimal
	LastEquity     decimal.Decimal
	Cash           decimal.Decimal
	BuyingPower    decimal.Decimal
}

// PositionSnapshot is one append-only row of per-symbol history.
type PositionSnapshot struct {
	Timestamp      time.Time
	Symbol         string
	Qty            decimal.Decimal
	AvgEntry       decimal.Decimal
	Current        decimal.Decimal
	MarketValue    decimal.Decimal
	UnrealizedPL   decimal.Decimal
	UnrealizedPLPC decimal.Decimal // zero when the broker reports none
}

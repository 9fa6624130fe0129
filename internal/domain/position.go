package domain

import "github.com/shopspring/decimal"

// Position represents an open position held at the broker, read-only per run.
type Position struct {
	Symbol         string          // Trading symbol (e.g., "AAPL"), unique key per account
	Qty            decimal.Decimal // Signed quantity; positive = long
	AvgEntryPrice  decimal.Decimal // Average entry price in account currency
	CurrentPrice   decimal.Decimal // Latest price known to the broker
	MarketValue    decimal.Decimal // Qty * CurrentPrice as reported by the broker
	UnrealizedPL   decimal.Decimal // Unrealized profit/loss in account currency
	UnrealizedPLPC *decimal.Decimal // Unrealized P/L as a fraction of cost basis (0.05 = +5%); may be absent
}

// IsLong reports whether the position quantity is positive.
func (p *Position) IsLong() bool {
	return p.Qty.IsPositive()
}

// Account holds the account-level figures the snapshot and dashboard layers consume.
type Account struct {
	PortfolioValue decimal.Decimal
	LastEquity     decimal.Decimal // Previous close equity; zero if the broker omits it
	Cash           decimal.Decimal
	BuyingPower    decimal.Decimal
}

package alpaca

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"stopkeeper/internal/domain"
)

// Wire representations of the Alpaca Trading API v2 entities this adapter
// consumes. All numeric fields arrive as strings.

type apiAccount struct {
	PortfolioValue string `json:"portfolio_value"`
	LastEquity     string `json:"last_equity"`
	Cash           string `json:"cash"`
	BuyingPower    string `json:"buying_power"`
}

type apiPosition struct {
	Symbol         string `json:"symbol"`
	Qty            string `json:"qty"`
	AvgEntryPrice  string `json:"avg_entry_price"`
	CurrentPrice   string `json:"current_price"`
	MarketValue    string `json:"market_value"`
	UnrealizedPL   string `json:"unrealized_pl"`
	UnrealizedPLPC string `json:"unrealized_plpc"`
}

type apiOrder struct {
	ID            string  `json:"id"`
	ClientOrderID string  `json:"client_order_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Type          string  `json:"type"`
	Qty           string  `json:"qty"`
	Status        string  `json:"status"`
	TimeInForce   string  `json:"time_in_force"`
	StopPrice     *string `json:"stop_price"`
	TrailPercent  *string `json:"trail_percent"`
	HWM           *string `json:"hwm"` // broker-computed high-water mark; absent on paper
	SubmittedAt   string  `json:"submitted_at"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type createOrderRequest struct {
	Symbol        string `json:"symbol"`
	Qty           string `json:"qty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"time_in_force"`
	StopPrice     string `json:"stop_price,omitempty"`
	TrailPercent  string `json:"trail_percent,omitempty"`
	ClientOrderID string `json:"client_order_id,omitempty"`
}

func parseDecimal(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("could not parse %s %q: %w", field, s, err)
	}
	return d, nil
}

func parseOptionalDecimal(s *string) *decimal.Decimal {
	if s == nil || *s == "" {
		return nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil
	}
	return &d
}

func (a apiAccount) toDomain() (*domain.Account, error) {
	portfolio, err := parseDecimal("portfolio_value", a.PortfolioValue)
	if err != nil {
		return nil, err
	}
	cash, err := parseDecimal("cash", a.Cash)
	if err != nil {
		return nil, err
	}
	buyingPower, err := parseDecimal("buying_power", a.BuyingPower)
	if err != nil {
		return nil, err
	}
	acct := &domain.Account{
		PortfolioValue: portfolio,
		Cash:           cash,
		BuyingPower:    buyingPower,
	}
	// last_equity is occasionally empty on fresh accounts.
	if a.LastEquity != "" {
		if last, err := parseDecimal("last_equity", a.LastEquity); err == nil {
			acct.LastEquity = last
		}
	}
	return acct, nil
}

func (p apiPosition) toDomain() (*domain.Position, error) {
	qty, err := parseDecimal("qty", p.Qty)
	if err != nil {
		return nil, err
	}
	avgEntry, err := parseDecimal("avg_entry_price", p.AvgEntryPrice)
	if err != nil {
		return nil, err
	}
	pos := &domain.Position{
		Symbol:        p.Symbol,
		Qty:           qty,
		AvgEntryPrice: avgEntry,
	}
	if current, err := parseDecimal("current_price", p.CurrentPrice); err == nil {
		pos.CurrentPrice = current
	}
	if mv, err := parseDecimal("market_value", p.MarketValue); err == nil {
		pos.MarketValue = mv
	}
	if pl, err := parseDecimal("unrealized_pl", p.UnrealizedPL); err == nil {
		pos.UnrealizedPL = pl
	}
	// Absent or unparseable P/L% stays nil: the engine treats that as
	// "trailing not eligible this run", never as zero.
	if p.UnrealizedPLPC != "" {
		if plpc, err := decimal.NewFromString(p.UnrealizedPLPC); err == nil {
			pos.UnrealizedPLPC = &plpc
		}
	}
	return pos, nil
}

func (o apiOrder) toDomain() (*domain.ProtectionOrder, error) {
	qty, err := parseDecimal("qty", o.Qty)
	if err != nil {
		return nil, err
	}
	order := &domain.ProtectionOrder{
		ID:            o.ID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          domain.OrderSide(o.Side),
		Kind:          domain.OrderKind(o.Type),
		Qty:           qty,
		Status:        domain.OrderStatus(o.Status),
		TimeInForce:   domain.TimeInForce(o.TimeInForce),
		StopPrice:     parseOptionalDecimal(o.StopPrice),
		TrailPercent:  parseOptionalDecimal(o.TrailPercent),
		TrailPrice:    parseOptionalDecimal(o.HWM),
	}
	if o.SubmittedAt != "" {
		if ts, err := time.Parse(time.RFC3339, o.SubmittedAt); err == nil {
			order.SubmittedAt = ts
		}
	}
	return order, nil
}

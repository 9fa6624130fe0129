package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"stopkeeper/internal/domain"
	"stopkeeper/internal/ports"
)

// maxPointsPerSymbol caps each per-symbol chart series so the static page
// stays small as history grows. Oldest points drop first.
const maxPointsPerSymbol = 500

const timestampLayout = "2006-01-02T15:04:05Z"

// Generator captures account snapshots and renders them, together with the
// accumulated history, into a static HTML dashboard.
type Generator struct {
	broker ports.BrokerClient
	store  ports.SnapshotStore
	logger ports.Logger
	now    func() time.Time
}

// Config holds the dependencies for the dashboard generator.
type Config struct {
	Broker ports.BrokerClient
	Store  ports.SnapshotStore
	Logger ports.Logger
}

// New creates a dashboard generator. All dependencies are required.
func New(cfg Config) (*Generator, error) {
	if cfg.Broker == nil || cfg.Store == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("broker, store and logger are required for dashboard generator")
	}
	return &Generator{broker: cfg.Broker, store: cfg.Store, logger: cfg.Logger, now: time.Now}, nil
}

// Capture fetches the current account and positions and appends them to the
// snapshot history. All rows of one capture share a single timestamp.
func (g *Generator) Capture(ctx context.Context) error {
	account, err := g.broker.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}
	positions, err := g.broker.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	ts := g.now().UTC().Truncate(time.Second)

	if err := g.store.AppendEquity(ctx, &domain.EquitySnapshot{
		Timestamp:      ts,
		PortfolioValue: account.PortfolioValue,
		LastEquity:     account.LastEquity,
		Cash:           account.Cash,
		BuyingPower:    account.BuyingPower,
	}); err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	snaps := make([]*domain.PositionSnapshot, 0, len(positions))
	for _, p := range positions {
		snap := &domain.PositionSnapshot{
			Timestamp:    ts,
			Symbol:       p.Symbol,
			Qty:          p.Qty,
			AvgEntry:     p.AvgEntryPrice,
			Current:      p.CurrentPrice,
			MarketValue:  p.MarketValue,
			UnrealizedPL: p.UnrealizedPL,
		}
		if p.UnrealizedPLPC != nil {
			snap.UnrealizedPLPC = *p.UnrealizedPLPC
		}
		snaps = append(snaps, snap)
	}
	if err := g.store.AppendPositions(ctx, snaps); err != nil {
		return fmt.Errorf("capture failed: %w", err)
	}

	g.logger.Info(ctx, "Snapshot captured", map[string]interface{}{
		"timestamp": ts.Format(timestampLayout),
		"positions": len(snaps),
	})
	return nil
}

// Render fetches live account state, loads the snapshot history and writes
// the dashboard page to outPath.
func (g *Generator) Render(ctx context.Context, outPath string) error {
	account, err := g.broker.GetAccount(ctx)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	positions, err := g.broker.GetPositions(ctx)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	orders, err := g.broker.GetAllOpenOrders(ctx)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	equityHistory, err := g.store.EquityHistory(ctx)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	positionHistory, err := g.store.PositionHistory(ctx)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	data, err := g.buildPage(account, positions, orders, equityHistory, positionHistory)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("render failed: could not create output directory: %w", err)
	}
	file, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("render failed: could not create '%s': %w", outPath, err)
	}
	defer file.Close()

	if err := pageTemplate.Execute(file, data); err != nil {
		return fmt.Errorf("render failed: template execution: %w", err)
	}
	g.logger.Info(ctx, "Dashboard written", map[string]interface{}{
		"path":      outPath,
		"positions": len(positions),
		"orders":    len(orders),
	})
	return nil
}

type positionRow struct {
	Symbol      string
	Qty         string
	AvgEntry    string
	Current     string
	MarketValue string
	UnrealPL    string
	UnrealPLPC  string
	PLClass     string
}

type orderRow struct {
	ID          string
	Symbol      string
	Side        string
	Type        string
	Qty         string
	Status      string
	SubmittedAt string
}

type pageData struct {
	Timestamp      string
	PortfolioValue string
	LastEquity     string
	Cash           string
	BuyingPower    string
	Positions      []positionRow
	Orders         []orderRow

	EquityLabelsIntraday template.JS
	EquityValuesIntraday template.JS
	EquityLabelsDaily    template.JS
	EquityValuesDaily    template.JS
	SymbolHistory        template.JS
}

type symbolSeries struct {
	T     []string  `json:"t"`
	Price []float64 `json:"price"`
	Plpc  []float64 `json:"plpc"`
}

func (g *Generator) buildPage(account *domain.Account, positions []*domain.Position, orders []*domain.ProtectionOrder,
	equityHistory []*domain.EquitySnapshot, positionHistory []*domain.PositionSnapshot) (*pageData, error) {

	data := &pageData{
		Timestamp:      g.now().UTC().Truncate(time.Second).Format(timestampLayout),
		PortfolioValue: money(account.PortfolioValue),
		LastEquity:     money(account.LastEquity),
		Cash:           money(account.Cash),
		BuyingPower:    money(account.BuyingPower),
	}

	for _, p := range positions {
		row := positionRow{
			Symbol:      p.Symbol,
			Qty:         p.Qty.String(),
			AvgEntry:    money(p.AvgEntryPrice),
			Current:     money(p.CurrentPrice),
			MarketValue: money(p.MarketValue),
			UnrealPL:    money(p.UnrealizedPL),
			PLClass:     "pos",
		}
		if p.UnrealizedPL.IsNegative() {
			row.PLClass = "neg"
		}
		if p.UnrealizedPLPC != nil {
			row.UnrealPLPC = p.UnrealizedPLPC.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
		}
		data.Positions = append(data.Positions, row)
	}

	for _, o := range orders {
		row := orderRow{
			ID:     o.ID,
			Symbol: o.Symbol,
			Side:   string(o.Side),
			Type:   string(o.Kind),
			Qty:    o.Qty.String(),
			Status: string(o.Status),
		}
		if !o.SubmittedAt.IsZero() {
			row.SubmittedAt = o.SubmittedAt.UTC().Format(timestampLayout)
		}
		data.Orders = append(data.Orders, row)
	}

	// Intraday series: every equity row, in append order.
	intradayLabels := make([]string, 0, len(equityHistory))
	intradayValues := make([]float64, 0, len(equityHistory))
	dailyLast := make(map[string]float64)
	for _, snap := range equityHistory {
		label := snap.Timestamp.UTC().Format(timestampLayout)
		value := snap.PortfolioValue.InexactFloat64()
		intradayLabels = append(intradayLabels, label)
		intradayValues = append(intradayValues, value)
		dailyLast[snap.Timestamp.UTC().Format("2006-01-02")] = value
	}

	// Daily series: the last capture of each UTC calendar day.
	dailyLabels := make([]string, 0, len(dailyLast))
	for date := range dailyLast {
		dailyLabels = append(dailyLabels, date)
	}
	sort.Strings(dailyLabels)
	dailyValues := make([]float64, 0, len(dailyLabels))
	for _, date := range dailyLabels {
		dailyValues = append(dailyValues, dailyLast[date])
	}

	history := make(map[string]*symbolSeries)
	for _, snap := range positionHistory {
		ser, ok := history[snap.Symbol]
		if !ok {
			ser = &symbolSeries{}
			history[snap.Symbol] = ser
		}
		ser.T = append(ser.T, snap.Timestamp.UTC().Format(timestampLayout))
		ser.Price = append(ser.Price, snap.Current.InexactFloat64())
		ser.Plpc = append(ser.Plpc, snap.UnrealizedPLPC.Mul(decimal.NewFromInt(100)).InexactFloat64())
	}
	for _, ser := range history {
		if n := len(ser.T); n > maxPointsPerSymbol {
			ser.T = ser.T[n-maxPointsPerSymbol:]
			ser.Price = ser.Price[n-maxPointsPerSymbol:]
			ser.Plpc = ser.Plpc[n-maxPointsPerSymbol:]
		}
	}

	var err error
	if data.EquityLabelsIntraday, err = jsJSON(intradayLabels); err != nil {
		return nil, err
	}
	if data.EquityValuesIntraday, err = jsJSON(intradayValues); err != nil {
		return nil, err
	}
	if data.EquityLabelsDaily, err = jsJSON(dailyLabels); err != nil {
		return nil, err
	}
	if data.EquityValuesDaily, err = jsJSON(dailyValues); err != nil {
		return nil, err
	}
	if data.SymbolHistory, err = jsJSON(history); err != nil {
		return nil, err
	}
	return data, nil
}

func jsJSON(v interface{}) (template.JS, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("could not marshal chart data: %w", err)
	}
	return template.JS(b), nil
}

// money renders a decimal as "$1,234.56" with thousands separators.
func money(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	dot := strings.Index(s, ".")
	intPart, fracPart := s[:dot], s[dot:]

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := "$" + b.String() + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

package csvstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"stopkeeper/internal/domain"
	"stopkeeper/internal/ports"
)

const (
	equityFile    = "equity_history.csv"
	positionsFile = "pos_history.csv"

	// Rows share a single capture timestamp so the dashboard can line
	// up equity and position series.
	timestampLayout = "2006-01-02T15:04:05Z"
)

var equityHeader = []string{"timestamp", "portfolio_value", "last_equity", "cash", "buying_power"}
var positionsHeader = []string{"timestamp", "symbol", "qty", "avg_entry", "current", "market_value", "unreal_pl", "unreal_plpc"}

// Store implements the ports.SnapshotStore interface over two append-only
// CSV files in a data directory.
type Store struct {
	dataDir string
	logger  ports.Logger
}

// Config holds configuration for the CSV snapshot store.
type Config struct {
	DataDir string
	Logger  ports.Logger
}

// New creates a CSV snapshot store rooted at the configured data directory.
func New(cfg Config) (*Store, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for CSV snapshot store")
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "./data"
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory '%s': %w", dataDir, err)
	}
	return &Store{dataDir: dataDir, logger: cfg.Logger}, nil
}

// AppendEquity appends one equity row unless a row with the same timestamp
// is already the latest entry. The dedupe keeps back-to-back captures (run
// then dashboard) from doubling points on the equity chart.
func (s *Store) AppendEquity(ctx context.Context, snap *domain.EquitySnapshot) error {
	path := filepath.Join(s.dataDir, equityFile)
	ts := snap.Timestamp.UTC().Format(timestampLayout)

	last, err := lastTimestamp(path)
	if err != nil {
		return fmt.Errorf("failed to read last equity timestamp: %w", err)
	}
	if last == ts {
		s.logger.Debug(ctx, "Equity row with same timestamp already present, skipping", map[string]interface{}{"timestamp": ts})
		return nil
	}

	row := []string{
		ts,
		snap.PortfolioValue.StringFixed(2),
		snap.LastEquity.StringFixed(2),
		snap.Cash.StringFixed(2),
		snap.BuyingPower.StringFixed(2),
	}
	return appendRows(path, equityHeader, [][]string{row})
}

// AppendPositions appends one row per position, all under the snapshot
// timestamp of the first row.
func (s *Store) AppendPositions(ctx context.Context, snaps []*domain.PositionSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	path := filepath.Join(s.dataDir, positionsFile)

	rows := make([][]string, 0, len(snaps))
	for _, snap := range snaps {
		rows = append(rows, []string{
			snap.Timestamp.UTC().Format(timestampLayout),
			snap.Symbol,
			snap.Qty.StringFixed(8),
			snap.AvgEntry.StringFixed(2),
			snap.Current.StringFixed(2),
			snap.MarketValue.StringFixed(2),
			snap.UnrealizedPL.StringFixed(2),
			snap.UnrealizedPLPC.StringFixed(6),
		})
	}
	if err := appendRows(path, positionsHeader, rows); err != nil {
		return fmt.Errorf("failed to append position rows: %w", err)
	}
	s.logger.Debug(ctx, "Position snapshot rows appended", map[string]interface{}{"count": len(rows)})
	return nil
}

// EquityHistory reads back the full equity series in append order.
func (s *Store) EquityHistory(ctx context.Context) ([]*domain.EquitySnapshot, error) {
	records, err := readAll(filepath.Join(s.dataDir, equityFile), len(equityHeader))
	if err != nil {
		return nil, err
	}

	snaps := make([]*domain.EquitySnapshot, 0, len(records))
	for _, rec := range records {
		ts, err := time.Parse(timestampLayout, rec[0])
		if err != nil {
			s.logger.Warn(ctx, "Skipping equity row with bad timestamp", map[string]interface{}{"value": rec[0]})
			continue
		}
		snap := &domain.EquitySnapshot{Timestamp: ts}
		fields := []struct {
			name string
			dst  *decimal.Decimal
			raw  string
		}{
			{"portfolio_value", &snap.PortfolioValue, rec[1]},
			{"last_equity", &snap.LastEquity, rec[2]},
			{"cash", &snap.Cash, rec[3]},
			{"buying_power", &snap.BuyingPower, rec[4]},
		}
		if err := parseFields(fields); err != nil {
			s.logger.Warn(ctx, "Skipping unparseable equity row", map[string]interface{}{"timestamp": rec[0], "error": err.Error()})
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// PositionHistory reads back the full per-symbol series in append order.
func (s *Store) PositionHistory(ctx context.Context) ([]*domain.PositionSnapshot, error) {
	records, err := readAll(filepath.Join(s.dataDir, positionsFile), len(positionsHeader))
	if err != nil {
		return nil, err
	}

	snaps := make([]*domain.PositionSnapshot, 0, len(records))
	for _, rec := range records {
		ts, err := time.Parse(timestampLayout, rec[0])
		if err != nil {
			s.logger.Warn(ctx, "Skipping position row with bad timestamp", map[string]interface{}{"value": rec[0]})
			continue
		}
		snap := &domain.PositionSnapshot{Timestamp: ts, Symbol: rec[1]}
		fields := []struct {
			name string
			dst  *decimal.Decimal
			raw  string
		}{
			{"qty", &snap.Qty, rec[2]},
			{"avg_entry", &snap.AvgEntry, rec[3]},
			{"current", &snap.Current, rec[4]},
			{"market_value", &snap.MarketValue, rec[5]},
			{"unreal_pl", &snap.UnrealizedPL, rec[6]},
			{"unreal_plpc", &snap.UnrealizedPLPC, rec[7]},
		}
		if err := parseFields(fields); err != nil {
			s.logger.Warn(ctx, "Skipping unparseable position row", map[string]interface{}{"symbol": rec[1], "error": err.Error()})
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

func parseFields(fields []struct {
	name string
	dst  *decimal.Decimal
	raw  string
}) error {
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return fmt.Errorf("could not parse %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}
	return nil
}

// appendRows opens (or creates) the file, writes the header on first use,
// and appends the given rows.
func appendRows(path string, header []string, rows [][]string) error {
	writeHeader := false
	if info, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		writeHeader = true
	} else if err != nil {
		return fmt.Errorf("failed to stat '%s': %w", path, err)
	} else if info.Size() == 0 {
		writeHeader = true
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open '%s' for append: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if writeHeader {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("failed to write header to '%s': %w", path, err)
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write row to '%s': %w", path, err)
		}
	}
	w.Flush()
	return w.Error()
}

// readAll returns the data records of a CSV file, skipping the header and
// any rows with the wrong column count. A missing file is an empty series.
func readAll(path string, want int) ([][]string, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open '%s': %w", path, err)
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	var records [][]string
	first := true
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read '%s': %w", path, err)
		}
		if first {
			first = false
			continue
		}
		if len(rec) != want {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// lastTimestamp returns the timestamp of the final data row, or "" when
// the file is missing or empty.
func lastTimestamp(path string) (string, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	var last []string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		last = rec
	}
	if last == nil || last[0] == "timestamp" {
		return "", nil
	}
	return last[0], nil
}

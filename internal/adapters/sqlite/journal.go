package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"stopkeeper/internal/domain"
	"stopkeeper/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Journal implements the ports.RunJournal interface using SQLite.
type Journal struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite journal.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewJournal creates a new SQLite journal instance.
func NewJournal(cfg Config) (*Journal, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite journal")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/stopkeeper.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	// Set connection pool settings (important for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	j := &Journal{db: db, logger: cfg.Logger}

	if err := j.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite journal initialization failed")
		return nil, err
	}

	return j, nil
}

// initializeSchema creates tables if they don't exist.
func (j *Journal) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP DEFAULT NULL,
		positions_seen INTEGER NOT NULL DEFAULT 0,
		orders_created INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS order_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		symbol TEXT NOT NULL,
		action TEXT NOT NULL,
		kind TEXT NOT NULL,
		qty TEXT NOT NULL,
		stop_price TEXT DEFAULT NULL,
		trail_percent TEXT DEFAULT NULL,
		order_id TEXT NOT NULL DEFAULT '',
		ok INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_order_events_run_id ON order_events (run_id);
	CREATE INDEX IF NOT EXISTS idx_order_events_symbol_timestamp ON order_events (symbol, timestamp);
	`
	_, err := j.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		j.logger.Info(context.Background(), "Closing SQLite database connection")
		return j.db.Close()
	}
	return nil
}

// CreateRun saves a new run record and returns its assigned ID.
func (j *Journal) CreateRun(ctx context.Context, run *domain.RunRecord) (int64, error) {
	const query = `
	INSERT INTO runs (started_at, positions_seen, orders_created)
	VALUES (?, ?, ?)`

	result, err := j.db.ExecContext(ctx, query, run.StartedAt, run.PositionsSeen, run.OrdersCreated)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w: %w", ports.ErrInsertFailed, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for run: %w", err)
	}
	run.ID = id
	j.logger.Debug(ctx, "Run created", map[string]interface{}{"runID": id})
	return id, nil
}

// FinishRun fills in the run's final counters and finish time.
func (j *Journal) FinishRun(ctx context.Context, run *domain.RunRecord) error {
	const query = `
	UPDATE runs
	SET finished_at = ?, positions_seen = ?, orders_created = ?
	WHERE id = ?`

	result, err := j.db.ExecContext(ctx, query, run.FinishedAt, run.PositionsSeen, run.OrdersCreated, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run ID %d: %w", run.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for run ID %d: %w", run.ID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("run ID %d not found for update: %w", run.ID, ports.ErrNotFound)
	}
	return nil
}

// RecordEvent appends one order operation to the run's trail.
func (j *Journal) RecordEvent(ctx context.Context, event *domain.OrderEvent) error {
	const query = `
	INSERT INTO order_events (run_id, timestamp, symbol, action, kind, qty, stop_price, trail_percent, order_id, ok, error)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := j.db.ExecContext(ctx, query,
		event.RunID, event.Timestamp, event.Symbol, string(event.Action), string(event.Kind),
		event.Qty.String(), decimalText(event.StopPrice), decimalText(event.TrailPercent),
		event.OrderID, event.OK, event.Error)
	if err != nil {
		return fmt.Errorf("failed to insert order event for symbol %s: %w: %w", event.Symbol, ports.ErrInsertFailed, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID for order event %s: %w", event.Symbol, err)
	}
	event.ID = id
	j.logger.Debug(ctx, "Order event recorded", map[string]interface{}{"eventID": id, "symbol": event.Symbol, "action": event.Action})
	return nil
}

// FindEvents retrieves the most recent order events, newest first, up to a limit.
func (j *Journal) FindEvents(ctx context.Context, limit int) ([]*domain.OrderEvent, error) {
	const query = `
	SELECT id, run_id, timestamp, symbol, action, kind, qty, stop_price, trail_percent, order_id, ok, error
	FROM order_events
	ORDER BY id DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query order events: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	events := make([]*domain.OrderEvent, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order event: %w", err)
		}
		events = append(events, ev)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order event rows: %w", err)
	}
	return events, nil
}

// FindRuns retrieves the most recent run records, newest first, up to a limit.
func (j *Journal) FindRuns(ctx context.Context, limit int) ([]*domain.RunRecord, error) {
	const query = `
	SELECT id, started_at, finished_at, positions_seen, orders_created
	FROM runs
	ORDER BY id DESC LIMIT ?`

	rows, err := j.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w: %w", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	runs := make([]*domain.RunRecord, 0)
	for rows.Next() {
		run := &domain.RunRecord{}
		var finishedAt sql.NullTime
		if err := rows.Scan(&run.ID, &run.StartedAt, &finishedAt, &run.PositionsSeen, &run.OrdersCreated); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if finishedAt.Valid {
			run.FinishedAt = finishedAt.Time
		}
		runs = append(runs, run)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// decimalText converts an optional decimal into a nullable TEXT column value.
func decimalText(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

// scanEvent scans a row into a domain.OrderEvent struct.
func scanEvent(rows *sql.Rows) (*domain.OrderEvent, error) {
	ev := &domain.OrderEvent{}
	var action, kind, qty string
	var stopPrice, trailPercent sql.NullString
	err := rows.Scan(
		&ev.ID, &ev.RunID, &ev.Timestamp, &ev.Symbol, &action, &kind, &qty,
		&stopPrice, &trailPercent, &ev.OrderID, &ev.OK, &ev.Error)
	if err != nil {
		return nil, err
	}
	ev.Action = domain.EventAction(action)
	ev.Kind = domain.OrderKind(kind)
	ev.Qty, err = decimal.NewFromString(qty)
	if err != nil {
		return nil, fmt.Errorf("could not parse stored qty %q: %w", qty, err)
	}
	if stopPrice.Valid {
		d, err := decimal.NewFromString(stopPrice.String)
		if err != nil {
			return nil, fmt.Errorf("could not parse stored stop price %q: %w", stopPrice.String, err)
		}
		ev.StopPrice = &d
	}
	if trailPercent.Valid {
		d, err := decimal.NewFromString(trailPercent.String)
		if err != nil {
			return nil, fmt.Errorf("could not parse stored trail percent %q: %w", trailPercent.String, err)
		}
		ev.TrailPercent = &d
	}
	return ev, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"quantbot/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ TradeStore = (*SQLiteStore)(nil)
var _ SignalStore = (*SQLiteStore)(nil)
var _ OrderStore = (*SQLiteStore)(nil)
var _ ResultStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id           TEXT NOT NULL,
	order_id     TEXT NOT NULL,
	symbol       TEXT NOT NULL,
	side         TEXT NOT NULL,
	quantity     REAL NOT NULL,
	price        REAL NOT NULL,
	timestamp    INTEGER NOT NULL,
	commission   REAL NOT NULL,
	realized_pnl REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol, timestamp);

CREATE TABLE IF NOT EXISTS signals (
	symbol     TEXT NOT NULL,
	side       TEXT NOT NULL,
	kind       TEXT NOT NULL,
	confidence REAL NOT NULL,
	price      REAL NOT NULL,
	timestamp  INTEGER NOT NULL,
	strategy   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_signals_strategy ON signals(strategy, timestamp);

CREATE TABLE IF NOT EXISTS orders (
	id         TEXT PRIMARY KEY,
	symbol     TEXT NOT NULL,
	side       TEXT NOT NULL,
	type       TEXT NOT NULL,
	quantity   REAL NOT NULL,
	price      REAL NOT NULL,
	status     TEXT NOT NULL,
	strategy   TEXT NOT NULL,
	created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS backtest_results (
	strategy        TEXT NOT NULL,
	symbol          TEXT NOT NULL,
	initial_capital REAL NOT NULL,
	final_capital   REAL NOT NULL,
	total_return    REAL NOT NULL,
	total_trades    INTEGER NOT NULL,
	win_rate        REAL NOT NULL,
	max_drawdown    REAL NOT NULL,
	sharpe_ratio    REAL NOT NULL,
	start_date      INTEGER NOT NULL,
	end_date        INTEGER NOT NULL,
	detail          TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_results_strategy ON backtest_results(strategy, created_at);
`

// SQLiteStore implements TradeStore, SignalStore, OrderStore, and ResultStore
// backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// TradeStore implementation
// ---------------------------------------------------------------------------

// SaveTrades inserts a batch of trade records in one transaction.
func (s *SQLiteStore) SaveTrades(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trades (id, order_id, symbol, side, quantity, price, timestamp, commission, realized_pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx,
			t.ID, t.OrderID, t.Symbol, string(t.Side), t.Quantity, t.Price,
			t.Timestamp.UnixMilli(), t.Commission, t.RealizedPnL); err != nil {
			return fmt.Errorf("inserting trade %s: %w", t.ID, err)
		}
	}
	return tx.Commit()
}

// ListTrades returns the most recent trades for a symbol, newest first.
func (s *SQLiteStore) ListTrades(ctx context.Context, symbol string, limit int) ([]domain.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, symbol, side, quantity, price, timestamp, commission, realized_pnl
		FROM trades
		WHERE (? = '' OR symbol = ?)
		ORDER BY timestamp DESC LIMIT ?`, symbol, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var side string
		var ts int64
		if err := rows.Scan(&t.ID, &t.OrderID, &t.Symbol, &side, &t.Quantity, &t.Price,
			&ts, &t.Commission, &t.RealizedPnL); err != nil {
			return nil, err
		}
		t.Side = domain.Side(side)
		t.Timestamp = time.UnixMilli(ts).UTC()
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ---------------------------------------------------------------------------
// SignalStore implementation
// ---------------------------------------------------------------------------

// SaveSignal inserts a new signal record.
func (s *SQLiteStore) SaveSignal(ctx context.Context, sig *domain.Signal) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (symbol, side, kind, confidence, price, timestamp, strategy)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sig.Symbol, string(sig.Side), string(sig.Kind), sig.Confidence,
		sig.Price, sig.Timestamp.UnixMilli(), sig.Strategy)
	return err
}

// ListSignals returns the most recent signals for a strategy, newest first.
func (s *SQLiteStore) ListSignals(ctx context.Context, strategy string, limit int) ([]domain.Signal, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, side, kind, confidence, price, timestamp, strategy
		FROM signals
		WHERE (? = '' OR strategy = ?)
		ORDER BY timestamp DESC LIMIT ?`, strategy, strategy, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []domain.Signal
	for rows.Next() {
		var sig domain.Signal
		var side, kind string
		var ts int64
		if err := rows.Scan(&sig.Symbol, &side, &kind, &sig.Confidence,
			&sig.Price, &ts, &sig.Strategy); err != nil {
			return nil, err
		}
		sig.Side = domain.Side(side)
		sig.Kind = domain.SignalKind(kind)
		sig.Timestamp = time.UnixMilli(ts).UTC()
		signals = append(signals, sig)
	}
	return signals, rows.Err()
}

// ---------------------------------------------------------------------------
// OrderStore implementation
// ---------------------------------------------------------------------------

// SaveOrder inserts a new order record.
func (s *SQLiteStore) SaveOrder(ctx context.Context, order *domain.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (id, symbol, side, type, quantity, price, status, strategy, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID, order.Symbol, string(order.Side), string(order.Type),
		order.Quantity, order.Price, string(order.Status), order.Strategy,
		order.CreatedAt.UnixMilli())
	return err
}

// ListOrders returns the most recent orders with the given status, newest
// first.
func (s *SQLiteStore) ListOrders(ctx context.Context, status domain.OrderStatus, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, type, quantity, price, status, strategy, created_at
		FROM orders
		WHERE (? = '' OR status = ?)
		ORDER BY created_at DESC LIMIT ?`, string(status), string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		var side, typ, st string
		var ts int64
		if err := rows.Scan(&o.ID, &o.Symbol, &side, &typ, &o.Quantity, &o.Price,
			&st, &o.Strategy, &ts); err != nil {
			return nil, err
		}
		o.Side = domain.Side(side)
		o.Type = domain.OrderType(typ)
		o.Status = domain.OrderStatus(st)
		o.CreatedAt = time.UnixMilli(ts).UTC()
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// ---------------------------------------------------------------------------
// ResultStore implementation
// ---------------------------------------------------------------------------

// SaveResult inserts a finished backtest report. Headline figures land in
// queryable columns; the full report (trades and curves included) is kept as
// a JSON blob in the detail column.
func (s *SQLiteStore) SaveResult(ctx context.Context, result *domain.BacktestResult) error {
	detail, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO backtest_results
			(strategy, symbol, initial_capital, final_capital, total_return,
			 total_trades, win_rate, max_drawdown, sharpe_ratio,
			 start_date, end_date, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.Strategy, result.Symbol, result.InitialCapital, result.FinalCapital,
		result.TotalReturn, result.TotalTrades, result.WinRate, result.MaxDrawdown,
		result.SharpeRatio, result.StartDate.UnixMilli(), result.EndDate.UnixMilli(),
		string(detail), time.Now().UnixMilli())
	return err
}

// ListResults returns the most recent reports for a strategy, newest first.
func (s *SQLiteStore) ListResults(ctx context.Context, strategy string, limit int) ([]domain.BacktestResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT detail
		FROM backtest_results
		WHERE (? = '' OR strategy = ?)
		ORDER BY created_at DESC LIMIT ?`, strategy, strategy, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []domain.BacktestResult
	for rows.Next() {
		var detail string
		if err := rows.Scan(&detail); err != nil {
			return nil, err
		}
		var r domain.BacktestResult
		if err := json.Unmarshal([]byte(detail), &r); err != nil {
			return nil, fmt.Errorf("decoding stored result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

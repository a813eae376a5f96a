package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// TradeRecord is a single order lifecycle event persisted to the
// trade log for post-hoc auditing and PnL reconstruction.
type TradeRecord struct {
	Seq           uint64    `json:"seq"`
	Symbol        string    `json:"symbol"`
	Side          string    `json:"side"`
	Event         string    `json:"event"` // the engine writes "PLACED" or "CANCELED"
	OrderID       string    `json:"order_id"`
	ClientOrderID string    `json:"client_order_id"`
	Price         string    `json:"price"`
	Qty           string    `json:"qty"`
	ReduceOnly    bool      `json:"reduce_only"`
	Ts            time.Time `json:"ts"`
}

// TradeLogStore persists trade-lifecycle events to SQLite in WAL mode,
// giving the engine a durable, queryable audit trail independent of
// its in-memory bounded ring buffer.
type TradeLogStore struct {
	db *sql.DB
}

// NewTradeLogStore opens (creating if necessary) a SQLite-backed trade
// log at dbPath with WAL journaling enabled.
func NewTradeLogStore(dbPath string) (*TradeLogStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA cache_size=-2000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("set pragma %q: %w", p, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("create metadata table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seq INTEGER NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			event TEXT NOT NULL,
			order_id TEXT NOT NULL,
			client_order_id TEXT NOT NULL,
			price TEXT NOT NULL,
			qty TEXT NOT NULL,
			reduce_only INTEGER NOT NULL,
			ts_unix_nano INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("create trades table: %w", err)
	}

	return &TradeLogStore{db: db}, nil
}

// RecordTrade appends a lifecycle event to the trade log.
func (s *TradeLogStore) RecordTrade(ctx context.Context, rec TradeRecord) error {
	reduceOnly := 0
	if rec.ReduceOnly {
		reduceOnly = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trades (seq, symbol, side, event, order_id, client_order_id, price, qty, reduce_only, ts_unix_nano)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Seq, rec.Symbol, rec.Side, rec.Event, rec.OrderID, rec.ClientOrderID, rec.Price, rec.Qty, reduceOnly, rec.Ts.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// RecentTrades returns up to limit most recent trade records for a
// symbol, newest first.
func (s *TradeLogStore) RecentTrades(ctx context.Context, symbol string, limit int) ([]TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, symbol, side, event, order_id, client_order_id, price, qty, reduce_only, ts_unix_nano
		 FROM trades WHERE symbol = ? ORDER BY id DESC LIMIT ?`,
		symbol, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		var reduceOnly int
		var tsNano int64
		if err := rows.Scan(&rec.Seq, &rec.Symbol, &rec.Side, &rec.Event, &rec.OrderID,
			&rec.ClientOrderID, &rec.Price, &rec.Qty, &reduceOnly, &tsNano); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		rec.ReduceOnly = reduceOnly != 0
		rec.Ts = time.Unix(0, tsNano)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpsertMetadata saves a key-value pair to the metadata table.
func (s *TradeLogStore) UpsertMetadata(ctx context.Context, key, value string, ts int64) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?) ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at",
		key, value, ts,
	)
	return err
}

// GetMetadata retrieves a value from the metadata table, "" if absent.
func (s *TradeLogStore) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// UpsertMetadataJSON marshals v and stores it under key.
func (s *TradeLogStore) UpsertMetadataJSON(ctx context.Context, key string, v any, ts int64) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal metadata %s: %w", key, err)
	}
	return s.UpsertMetadata(ctx, key, string(data), ts)
}

// Close closes the underlying database connection.
func (s *TradeLogStore) Close() error {
	return s.db.Close()
}

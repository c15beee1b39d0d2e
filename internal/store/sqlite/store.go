// Package sqlite persists candle history for backtesting. One table keyed by
// (exchange, symbol, period, ts); writes are batched in transactions, reads
// always return ascending series.
package sqlite

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/mattn/go-sqlite3"

	"tradecore/internal/model"
)

// Store is a SQLite-backed candle history store.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open opens (and initializes) the candle database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			exchange TEXT    NOT NULL,
			symbol   TEXT    NOT NULL,
			period   TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			volume   REAL,
			PRIMARY KEY (exchange, symbol, period, ts)
		);
	`); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", path)
	return &Store{db: db}, nil
}

// WriteCandles upserts a batch in one transaction.
func (s *Store) WriteCandles(candles model.Series) error {
	if len(candles) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}
	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO candles (exchange, symbol, period, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.Exec(c.Exchange, c.Symbol, c.Period, c.TS, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("sqlite insert candle ts=%d: %w", c.TS, err)
		}
	}
	return tx.Commit()
}

// ReadRange reads candles with fromTS <= ts <= toTS, ascending.
func (s *Store) ReadRange(exchange, symbol, period string, fromTS, toTS int64) (model.Series, error) {
	rows, err := s.db.Query(`
		SELECT exchange, symbol, period, ts, open, high, low, close, volume
		FROM candles
		WHERE exchange = ? AND symbol = ? AND period = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`, exchange, symbol, period, fromTS, toTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query range: %w", err)
	}
	defer rows.Close()
	return scanCandles(rows)
}

// ReadLast reads the newest n candles, returned ascending.
func (s *Store) ReadLast(exchange, symbol, period string, n int) (model.Series, error) {
	rows, err := s.db.Query(`
		SELECT exchange, symbol, period, ts, open, high, low, close, volume
		FROM candles
		WHERE exchange = ? AND symbol = ? AND period = ?
		ORDER BY ts DESC
		LIMIT ?
	`, exchange, symbol, period, n)
	if err != nil {
		return nil, fmt.Errorf("sqlite query last: %w", err)
	}
	defer rows.Close()

	desc, err := scanCandles(rows)
	if err != nil {
		return nil, err
	}
	return desc.Reversed(), nil
}

func scanCandles(rows *sql.Rows) (model.Series, error) {
	var out model.Series
	for rows.Next() {
		var c model.Candle
		var volume sql.NullFloat64
		if err := rows.Scan(&c.Exchange, &c.Symbol, &c.Period, &c.TS, &c.Open, &c.High, &c.Low, &c.Close, &volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candle: %w", err)
		}
		c.Volume = volume.Float64
		out = append(out, c)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

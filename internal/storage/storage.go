package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

// SQLite handles all database operations against a local sqlite file
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens the database at dbPath and creates the faucet tables
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	s := &SQLite{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) init() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS limit_by_ip (
			ip TEXT PRIMARY KEY,
			expires INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS limit_by_address (
			address TEXT PRIMARY KEY,
			expires INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS payment_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			time INTEGER NOT NULL,
			address TEXT NOT NULL,
			amount TEXT NOT NULL,
			txid TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_log_txid ON payment_log(txid)`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

// --- Claim limits ---

// GetIPLimit returns the limit recorded for an IP hash, expired or not
func (s *SQLite) GetIPLimit(ctx context.Context, ipHash string) (*ClaimLimit, error) {
	return s.getLimit(ctx, "SELECT ip, expires FROM limit_by_ip WHERE ip = ?", ipHash)
}

// GetAddressLimit returns the limit recorded for an address, expired or not
func (s *SQLite) GetAddressLimit(ctx context.Context, address string) (*ClaimLimit, error) {
	return s.getLimit(ctx, "SELECT address, expires FROM limit_by_address WHERE address = ?", address)
}

func (s *SQLite) getLimit(ctx context.Context, query, key string) (*ClaimLimit, error) {
	var l ClaimLimit
	var expires int64

	err := s.db.QueryRowContext(ctx, query, key).Scan(&l.Key, &expires)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	l.ExpiresAt = time.UnixMilli(expires)
	return &l, nil
}

// DeleteIPLimit removes the limit for an IP hash
func (s *SQLite) DeleteIPLimit(ctx context.Context, ipHash string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM limit_by_ip WHERE ip = ?", ipHash)
	return err
}

// DeleteAddressLimit removes the limit for an address
func (s *SQLite) DeleteAddressLimit(ctx context.Context, address string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM limit_by_address WHERE address = ?", address)
	return err
}

// PutLimits replaces both limit rows in one transaction
func (s *SQLite) PutLimits(ctx context.Context, ipHash, address string, expiresAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	expires := expiresAt.UnixMilli()
	stmts := []struct {
		query string
		args  []any
	}{
		{"DELETE FROM limit_by_ip WHERE ip = ?", []any{ipHash}},
		{"DELETE FROM limit_by_address WHERE address = ?", []any{address}},
		{"INSERT INTO limit_by_ip (ip, expires) VALUES (?, ?)", []any{ipHash, expires}},
		{"INSERT INTO limit_by_address (address, expires) VALUES (?, ?)", []any{address, expires}},
	}
	for _, st := range stmts {
		if _, err := tx.ExecContext(ctx, st.query, st.args...); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// --- Payment log ---

// LogPayment appends a payment to the log
func (s *SQLite) LogPayment(ctx context.Context, p Payment) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO payment_log (time, address, amount, txid)
		 VALUES (?, ?, ?, ?)`,
		p.Time.Unix(), p.Address, p.Amount.String(), p.TxID,
	)
	return err
}

// LatestPayment returns the most recent log entry with the given txid
func (s *SQLite) LatestPayment(ctx context.Context, txid string) (*Payment, error) {
	var p Payment
	var ts int64
	var amount string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, time, address, amount, txid
		 FROM payment_log WHERE txid = ? ORDER BY id DESC LIMIT 1`,
		txid,
	).Scan(&p.ID, &ts, &p.Address, &amount, &p.TxID)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	p.Time = time.Unix(ts, 0)
	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}

	return &p, nil
}

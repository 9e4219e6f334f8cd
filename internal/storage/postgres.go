package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Postgres is the Store backend for deployments with a shared database server.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects a pool to connStr and creates the faucet tables
func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS limit_by_ip (
			ip TEXT PRIMARY KEY,
			expires BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS limit_by_address (
			address TEXT PRIMARY KEY,
			expires BIGINT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS payment_log (
			id BIGSERIAL PRIMARY KEY,
			time TIMESTAMPTZ NOT NULL,
			address TEXT NOT NULL,
			amount TEXT NOT NULL,
			txid TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_payment_log_txid ON payment_log(txid);
	`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

// Close releases the pool
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// GetIPLimit returns the limit for an IP hash or ErrNotFound
func (p *Postgres) GetIPLimit(ctx context.Context, ipHash string) (*ClaimLimit, error) {
	return p.getLimit(ctx, "SELECT ip, expires FROM limit_by_ip WHERE ip = $1", ipHash)
}

// GetAddressLimit returns the limit for an address or ErrNotFound
func (p *Postgres) GetAddressLimit(ctx context.Context, address string) (*ClaimLimit, error) {
	return p.getLimit(ctx, "SELECT address, expires FROM limit_by_address WHERE address = $1", address)
}

func (p *Postgres) getLimit(ctx context.Context, query, key string) (*ClaimLimit, error) {
	var l ClaimLimit
	var expires int64

	err := p.pool.QueryRow(ctx, query, key).Scan(&l.Key, &expires)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	l.ExpiresAt = time.UnixMilli(expires)
	return &l, nil
}

// DeleteIPLimit removes the limit for an IP hash
func (p *Postgres) DeleteIPLimit(ctx context.Context, ipHash string) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM limit_by_ip WHERE ip = $1", ipHash)
	return err
}

// DeleteAddressLimit removes the limit for an address
func (p *Postgres) DeleteAddressLimit(ctx context.Context, address string) error {
	_, err := p.pool.Exec(ctx, "DELETE FROM limit_by_address WHERE address = $1", address)
	return err
}

// PutLimits replaces both limits in one transaction
func (p *Postgres) PutLimits(ctx context.Context, ipHash, address string, expiresAt time.Time) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	expires := expiresAt.UnixMilli()
	if _, err := tx.Exec(ctx,
		`INSERT INTO limit_by_ip (ip, expires) VALUES ($1, $2)
		 ON CONFLICT (ip) DO UPDATE SET expires = excluded.expires`,
		ipHash, expires,
	); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO limit_by_address (address, expires) VALUES ($1, $2)
		 ON CONFLICT (address) DO UPDATE SET expires = excluded.expires`,
		address, expires,
	); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// LogPayment appends a payment to the log
func (p *Postgres) LogPayment(ctx context.Context, pay Payment) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO payment_log (time, address, amount, txid) VALUES ($1, $2, $3, $4)`,
		pay.Time.UTC(), pay.Address, pay.Amount.String(), pay.TxID,
	)
	return err
}

// LatestPayment returns the newest log entry with txid or ErrNotFound
func (p *Postgres) LatestPayment(ctx context.Context, txid string) (*Payment, error) {
	var pay Payment
	var amount string

	err := p.pool.QueryRow(ctx,
		`SELECT id, time, address, amount, txid
		 FROM payment_log WHERE txid = $1 ORDER BY id DESC LIMIT 1`,
		txid,
	).Scan(&pay.ID, &pay.Time, &pay.Address, &amount, &pay.TxID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	pay.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return &pay, nil
}

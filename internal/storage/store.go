package storage

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("not found")

// Store is the persisted faucet state: both limiter tables and the payment log.
type Store interface {
	GetIPLimit(ctx context.Context, ipHash string) (*ClaimLimit, error)
	GetAddressLimit(ctx context.Context, address string) (*ClaimLimit, error)
	DeleteIPLimit(ctx context.Context, ipHash string) error
	DeleteAddressLimit(ctx context.Context, address string) error
	PutLimits(ctx context.Context, ipHash, address string, expiresAt time.Time) error

	LogPayment(ctx context.Context, p Payment) error
	LatestPayment(ctx context.Context, txid string) (*Payment, error)

	Close() error
}

// Open picks the backend: PostgreSQL when databaseURL is set, SQLite at dbPath otherwise.
func Open(ctx context.Context, dbPath, databaseURL string) (Store, error) {
	if strings.HasPrefix(databaseURL, "postgres://") || strings.HasPrefix(databaseURL, "postgresql://") {
		return NewPostgres(ctx, databaseURL)
	}
	if databaseURL != "" {
		return nil, errors.New("DATABASE_URL must be a postgres:// url")
	}
	return NewSQLite(dbPath)
}

package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// ClaimLimit blocks a key (IP hash or address) from claiming until ExpiresAt
type ClaimLimit struct {
	Key       string
	ExpiresAt time.Time
}

// Active reports whether the limit still applies at now
func (l ClaimLimit) Active(now time.Time) bool {
	return l.ExpiresAt.After(now)
}

// Payment is one row of the append-only payment log
type Payment struct {
	ID      int64
	Time    time.Time
	Address string
	Amount  decimal.Decimal
	TxID    string
}

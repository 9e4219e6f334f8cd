// Package limiter decides whether an (IP hash, address) pair may claim now.
//
// Each axis keeps at most one record holding the instant a new claim becomes
// allowed again. Expired records are removed lazily when their key is next
// checked, so a stale row can linger harmlessly until then.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/suspectuso/bkc-faucet/internal/storage"
)

// Cooldown is how long a successful claim blocks both its IP hash and its address
const Cooldown = 24 * time.Hour

// Store is the part of the persisted state the limiter needs
type Store interface {
	GetIPLimit(ctx context.Context, ipHash string) (*storage.ClaimLimit, error)
	GetAddressLimit(ctx context.Context, address string) (*storage.ClaimLimit, error)
	DeleteIPLimit(ctx context.Context, ipHash string) error
	DeleteAddressLimit(ctx context.Context, address string) error
	PutLimits(ctx context.Context, ipHash, address string, expiresAt time.Time) error
}

// Axis names the key that caused a denial
type Axis string

const (
	AxisIP      Axis = "ip"
	AxisAddress Axis = "address"
	AxisBoth    Axis = "both"
)

// Decision is the outcome of a limit check
type Decision struct {
	Allowed bool
	// Until is the "come back at" instant; zero when allowed.
	Until time.Time
	Axis  Axis
}

// Limiter tracks per-IP-hash and per-address claim limits
type Limiter struct {
	store Store
	now   func() time.Time
	locks *keyLocks
	log   *slog.Logger
}

type Option func(*Limiter)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter over store
func New(store Store, log *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{
		store: store,
		now:   time.Now,
		locks: newKeyLocks(),
		log:   log,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Lock serializes claims touching the same IP hash or address. The returned
// func releases it and must be called once the claim is committed or abandoned.
func (l *Limiter) Lock(ipHash, address string) (unlock func()) {
	return l.locks.lock("ip:"+ipHash, "address:"+address)
}

// Check looks up both axes, deletes records that have expired and reports
// whether a claim is allowed now.
func (l *Limiter) Check(ctx context.Context, ipHash, address string) (Decision, error) {
	now := l.now()

	ip, err := l.lookup(ctx, now, AxisIP, ipHash)
	if err != nil {
		return Decision{}, err
	}
	addr, err := l.lookup(ctx, now, AxisAddress, address)
	if err != nil {
		return Decision{}, err
	}

	return decide(ip, addr), nil
}

// Peek is Check without lazy deletion
func (l *Limiter) Peek(ctx context.Context, ipHash, address string) (Decision, error) {
	now := l.now()

	ip, err := active(l.store.GetIPLimit(ctx, ipHash))
	if err != nil {
		return Decision{}, fmt.Errorf("get ip limit: %w", err)
	}
	addr, err := active(l.store.GetAddressLimit(ctx, address))
	if err != nil {
		return Decision{}, fmt.Errorf("get address limit: %w", err)
	}
	if ip != nil && !ip.Active(now) {
		ip = nil
	}
	if addr != nil && !addr.Active(now) {
		addr = nil
	}

	return decide(ip, addr), nil
}

// CheckIP is the read-only landing-page check on the IP axis alone
func (l *Limiter) CheckIP(ctx context.Context, ipHash string) (Decision, error) {
	ip, err := active(l.store.GetIPLimit(ctx, ipHash))
	if err != nil {
		return Decision{}, fmt.Errorf("get ip limit: %w", err)
	}
	if ip == nil || !ip.Active(l.now()) {
		return Decision{Allowed: true}, nil
	}
	return Decision{Until: ip.ExpiresAt, Axis: AxisIP}, nil
}

// Commit records a successful claim on both axes and returns the new expiry.
// Call it only after the payment went out.
func (l *Limiter) Commit(ctx context.Context, ipHash, address string) (time.Time, error) {
	expires := l.now().Add(Cooldown)
	if err := l.store.PutLimits(ctx, ipHash, address, expires); err != nil {
		return time.Time{}, fmt.Errorf("put limits: %w", err)
	}
	return expires, nil
}

func (l *Limiter) lookup(ctx context.Context, now time.Time, axis Axis, key string) (*storage.ClaimLimit, error) {
	get, del := l.store.GetIPLimit, l.store.DeleteIPLimit
	if axis == AxisAddress {
		get, del = l.store.GetAddressLimit, l.store.DeleteAddressLimit
	}

	rec, err := active(get(ctx, key))
	if err != nil {
		return nil, fmt.Errorf("get %s limit: %w", axis, err)
	}
	if rec == nil {
		return nil, nil
	}
	if rec.Active(now) {
		return rec, nil
	}

	if err := del(ctx, key); err != nil {
		return nil, fmt.Errorf("delete expired %s limit: %w", axis, err)
	}
	l.log.Debug("expired limit removed", "axis", axis, "expired_at", rec.ExpiresAt)

	return nil, nil
}

// active turns ErrNotFound into a nil record
func active(rec *storage.ClaimLimit, err error) (*storage.ClaimLimit, error) {
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	return rec, err
}

func decide(ip, addr *storage.ClaimLimit) Decision {
	switch {
	case ip != nil && addr != nil:
		switch {
		case ip.ExpiresAt.After(addr.ExpiresAt):
			return Decision{Until: ip.ExpiresAt, Axis: AxisIP}
		case addr.ExpiresAt.After(ip.ExpiresAt):
			return Decision{Until: addr.ExpiresAt, Axis: AxisAddress}
		default:
			return Decision{Until: ip.ExpiresAt, Axis: AxisBoth}
		}
	case ip != nil:
		return Decision{Until: ip.ExpiresAt, Axis: AxisIP}
	case addr != nil:
		return Decision{Until: addr.ExpiresAt, Axis: AxisAddress}
	default:
		return Decision{Allowed: true}
	}
}

package stats

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis writes outcome counters to a hash plus one hash per UTC day.
//
//	<prefix>:total          outcome -> count
//	<prefix>:day:20240301   outcome -> count, expires after ttl
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisOption func(*Redis)

func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = strings.Trim(prefix, ":") }
}

func WithTTL(d time.Duration) RedisOption {
	return func(r *Redis) { r.ttl = d }
}

func NewRedis(rdb *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		rdb:    rdb,
		prefix: "faucet:stats",
		ttl:    30 * 24 * time.Hour,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Record(ctx context.Context, ev Event) error {
	if r == nil || r.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}

	dayKey := r.prefix + ":day:" + at.UTC().Format("20060102")

	pipe := r.rdb.Pipeline()
	pipe.HIncrBy(ctx, r.prefix+":total", ev.Outcome, 1)
	pipe.HIncrBy(ctx, dayKey, ev.Outcome, 1)
	if r.ttl > 0 {
		pipe.Expire(ctx, dayKey, r.ttl)
	}

	_, err := pipe.Exec(ctx)
	return err
}

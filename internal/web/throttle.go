package web

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// throttle is a token bucket per client key in front of POST /receive, so
// floods are turned away before the captcha provider is contacted.
type throttle struct {
	mu      sync.Mutex
	entries map[string]*throttleEntry
	rps     rate.Limit
	burst   int
	idleTTL time.Duration
}

type throttleEntry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func newThrottle(rps float64, burst int) *throttle {
	return &throttle{
		entries: make(map[string]*throttleEntry),
		rps:     rate.Limit(rps),
		burst:   burst,
		idleTTL: 15 * time.Minute,
	}
}

func (t *throttle) allow(key string) bool {
	now := time.Now()

	t.mu.Lock()
	ent, ok := t.entries[key]
	if !ok {
		ent = &throttleEntry{lim: rate.NewLimiter(t.rps, t.burst)}
		t.entries[key] = ent
	}
	ent.lastSeen = now
	t.mu.Unlock()

	return ent.lim.AllowN(now, 1)
}

func (t *throttle) cleanup() {
	cutoff := time.Now().Add(-t.idleTTL)

	t.mu.Lock()
	defer t.mu.Unlock()

	for k, ent := range t.entries {
		if ent.lastSeen.Before(cutoff) {
			delete(t.entries, k)
		}
	}
}

// startJanitor drops idle keys every interval until ctx is done
func (t *throttle) startJanitor(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.cleanup()
			}
		}
	}()
}

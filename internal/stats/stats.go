// Package stats counts terminal claim outcomes.
//
// Recording is best-effort: callers log errors and never fail a request on them.
package stats

import (
	"context"
	"time"
)

// Event is one finished claim request
type Event struct {
	Outcome string
	At      time.Time
}

// Recorder persists outcome events
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

type tee []Recorder

// Tee records every event to each recorder in order and returns the first error
func Tee(recs ...Recorder) Recorder {
	return tee(recs)
}

func (t tee) Record(ctx context.Context, ev Event) error {
	var first error
	for _, r := range t {
		if err := r.Record(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

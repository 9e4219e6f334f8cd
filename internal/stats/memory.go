package stats

import (
	"context"
	"sync"
)

// Memory keeps counters in process. Counters reset on restart.
type Memory struct {
	mu     sync.Mutex
	total  int64
	counts map[string]int64
}

func NewMemory() *Memory {
	return &Memory{counts: make(map[string]int64)}
}

func (m *Memory) Record(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total++
	m.counts[ev.Outcome]++
	return nil
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Total    int64            `json:"total"`
	Outcomes map[string]int64 `json:"outcomes"`
}

func (m *Memory) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int64, len(m.counts))
	for k, v := range m.counts {
		out[k] = v
	}
	return Snapshot{Total: m.total, Outcomes: out}
}

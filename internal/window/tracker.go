// Package window keeps a time-bounded history of response statuses and
// reports the share of server errors within it.
package window

import (
	"sync"
	"time"

	"github.com/hamed0406/alertwatcher/internal/domain"
)

const DefaultSize = 60 * time.Second

// Snapshot is a consistent view of the window after eviction.
type Snapshot struct {
	Total  int
	Errors int
}

// Ratio returns Errors/Total, or 0 for an empty window.
func (s Snapshot) Ratio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Total)
}

// Tracker is safe for concurrent use. Observations are kept in insertion
// order, which is also time order because ingestion is sequential.
type Tracker struct {
	size time.Duration

	mu     sync.Mutex
	obs    []domain.Observation
	head   int // index of the oldest live observation
	errors int // 5xx count among obs[head:]
}

func NewTracker(size time.Duration) *Tracker {
	if size <= 0 {
		size = DefaultSize
	}
	return &Tracker{size: size, obs: make([]domain.Observation, 0, 256)}
}

func (t *Tracker) Size() time.Duration { return t.size }

// Ingest records status at now and evicts everything older than now-size.
func (t *Tracker) Ingest(status int, now time.Time) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.obs = append(t.obs, domain.Observation{At: now, Status: status})
	if domain.IsServerError(status) {
		t.errors++
	}
	t.evictLocked(now)
	return t.snapshotLocked()
}

// Snapshot evicts stale entries and returns the current counts.
func (t *Tracker) Snapshot(now time.Time) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.evictLocked(now)
	return t.snapshotLocked()
}

// Evict drops stale entries and returns how many were removed.
func (t *Tracker) Evict(now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.evictLocked(now)
}

// Observations returns a copy of the live window, oldest first.
func (t *Tracker) Observations() []domain.Observation {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Observation, len(t.obs)-t.head)
	copy(out, t.obs[t.head:])
	return out
}

func (t *Tracker) evictLocked(now time.Time) int {
	cutoff := now.Add(-t.size)
	n := 0
	for t.head < len(t.obs) && t.obs[t.head].At.Before(cutoff) {
		if domain.IsServerError(t.obs[t.head].Status) {
			t.errors--
		}
		t.head++
		n++
	}
	t.compactLocked()
	return n
}

// compactLocked reclaims the evicted prefix once it dominates the slice.
func (t *Tracker) compactLocked() {
	if t.head == 0 {
		return
	}
	if t.head == len(t.obs) {
		t.obs = t.obs[:0]
		t.head = 0
		return
	}
	if t.head < 1024 || t.head < len(t.obs)/2 {
		return
	}
	live := copy(t.obs, t.obs[t.head:])
	t.obs = t.obs[:live]
	t.head = 0
}

func (t *Tracker) snapshotLocked() Snapshot {
	return Snapshot{Total: len(t.obs) - t.head, Errors: t.errors}
}

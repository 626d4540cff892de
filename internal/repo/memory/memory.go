package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/alertwatcher/internal/domain"
	"github.com/hamed0406/alertwatcher/internal/repo"
)

const DefaultCapacity = 500

var _ repo.AlertJournal = (*Journal)(nil)

// Journal keeps the most recent alert events in a fixed-size ring.
type Journal struct {
	mu     sync.RWMutex
	events []domain.AlertEvent
	next   int
	full   bool
}

func NewJournal(capacity int) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Journal{events: make([]domain.AlertEvent, capacity)}
}

func (j *Journal) Append(ctx context.Context, ev *domain.AlertEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events[j.next] = *ev
	j.next = (j.next + 1) % len(j.events)
	if j.next == 0 {
		j.full = true
	}
	return nil
}

func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.AlertEvent, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	n := j.next
	if j.full {
		n = len(j.events)
	}
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.AlertEvent, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (j.next - i + len(j.events)) % len(j.events)
		out = append(out, j.events[idx])
	}
	return out, nil
}

package repo

import (
	"context"

	"github.com/hamed0406/alertwatcher/internal/domain"
)

// AlertJournal is an append-only log of alert decisions. It is an audit
// trail only: alert state is never rebuilt from it.
type AlertJournal interface {
	Append(ctx context.Context, ev *domain.AlertEvent) error
	// Recent returns up to limit events, newest first.
	Recent(ctx context.Context, limit int) ([]domain.AlertEvent, error)
}

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/alertwatcher/internal/domain"
	"github.com/hamed0406/alertwatcher/internal/repo"
)

var _ repo.AlertJournal = (*Journal)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS alert_events (
  id        TEXT PRIMARY KEY,
  kind      TEXT NOT NULL,
  title     TEXT NOT NULL,
  severity  TEXT NOT NULL,
  outcome   TEXT NOT NULL,
  reason    TEXT NOT NULL DEFAULT '',
  at        TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_alert_events_at ON alert_events (at DESC);
`

type Journal struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New connects, pings and applies the schema.
func New(ctx context.Context, dsn string, log *zap.Logger) (*Journal, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("alert_journal_ready", zap.String("backend", "postgres"))
	return &Journal{pool: pool, log: log}, nil
}

func (j *Journal) Close() {
	if j.pool != nil {
		j.pool.Close()
	}
}

func (j *Journal) Append(ctx context.Context, ev *domain.AlertEvent) error {
	_, err := j.pool.Exec(ctx,
		`INSERT INTO alert_events (id, kind, title, severity, outcome, reason, at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, string(ev.Kind), ev.Title, string(ev.Severity), string(ev.Outcome), ev.Reason, ev.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert alert event: %w", err)
	}
	return nil
}

func (j *Journal) Recent(ctx context.Context, limit int) ([]domain.AlertEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := j.pool.Query(ctx,
		`SELECT id, kind, title, severity, outcome, reason, at
		   FROM alert_events
		  ORDER BY at DESC, id DESC
		  LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent alert events: %w", err)
	}
	defer rows.Close()

	var out []domain.AlertEvent
	for rows.Next() {
		var ev domain.AlertEvent
		var kind, severity, outcome string
		if err := rows.Scan(&ev.ID, &kind, &ev.Title, &severity, &outcome, &ev.Reason, &ev.At); err != nil {
			return nil, fmt.Errorf("scan alert event: %w", err)
		}
		ev.Kind = domain.AlertKind(kind)
		ev.Severity = domain.Severity(severity)
		ev.Outcome = domain.Outcome(outcome)
		out = append(out, ev)
	}
	return out, rows.Err()
}

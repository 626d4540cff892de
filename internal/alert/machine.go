package alert

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/alertwatcher/internal/domain"
	"github.com/hamed0406/alertwatcher/internal/notify"
	"github.com/hamed0406/alertwatcher/internal/repo"
)

const (
	DefaultCooldown        = 60 * time.Second
	DefaultDispatchTimeout = 10 * time.Second
)

// Recorder receives alert outcomes, e.g. for metrics.
type Recorder interface {
	AlertHandled(kind domain.AlertKind, outcome domain.Outcome)
	SetErrorAlertActive(active bool)
}

type MachineConfig struct {
	Cooldown        time.Duration
	DispatchTimeout time.Duration
	JournalTimeout  time.Duration // defaults to DispatchTimeout
	Maintenance     bool
	Now             func() time.Time
	Journal         repo.AlertJournal // optional
	Recorder        Recorder          // optional
}

// Result reports what Handle did with a candidate.
type Result struct {
	Verdict Verdict
	Sent    bool
	Err     error
}

// Machine owns the alert state. Handle runs the gate, the dispatch and the
// state update as one critical section, so two candidates can never both
// pass the cooldown check.
type Machine struct {
	notifier notify.Notifier
	cfg      MachineConfig
	log      *zap.Logger

	maintenance atomic.Bool

	mu    sync.Mutex
	state State

	// last suppression written to the journal; repeats are only counted
	lastSuppressed suppression
}

type suppression struct {
	kind    domain.AlertKind
	verdict Verdict
}

func NewMachine(n notify.Notifier, cfg MachineConfig, log *zap.Logger) *Machine {
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	if cfg.DispatchTimeout <= 0 {
		cfg.DispatchTimeout = DefaultDispatchTimeout
	}
	if cfg.JournalTimeout <= 0 {
		cfg.JournalTimeout = cfg.DispatchTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	m := &Machine{notifier: n, cfg: cfg, log: log}
	m.maintenance.Store(cfg.Maintenance)
	return m
}

// Handle gates c and, if allowed, dispatches it. Only an accepted dispatch
// changes the state; a failed one leaves it exactly as it was. Every
// dispatch attempt is journaled; a run of identical suppressions is
// journaled once.
func (m *Machine) Handle(ctx context.Context, c domain.Candidate) Result {
	res, ev, record := m.handleLocked(ctx, c)

	if m.cfg.Recorder != nil {
		m.cfg.Recorder.AlertHandled(c.Kind, ev.Outcome)
	}
	if record && m.cfg.Journal != nil {
		jctx, cancel := context.WithTimeout(ctx, m.cfg.JournalTimeout)
		defer cancel()
		if err := m.cfg.Journal.Append(jctx, ev); err != nil {
			m.log.Warn("alert_journal_error", zap.String("kind", string(c.Kind)), zap.Error(err))
		}
	}
	return res
}

func (m *Machine) handleLocked(ctx context.Context, c domain.Candidate) (Result, *domain.AlertEvent, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.cfg.Now()
	ev := &domain.AlertEvent{
		ID:       uuid.NewString(),
		Kind:     c.Kind,
		Title:    c.Title,
		Severity: c.Severity,
		At:       now,
	}

	v := Gate(m.state, c, m.maintenance.Load(), m.cfg.Cooldown, now)
	if v != Allow {
		ev.Outcome = domain.OutcomeSuppressed
		ev.Reason = v.String()
		s := suppression{kind: c.Kind, verdict: v}
		if s == m.lastSuppressed {
			m.log.Debug("alert_suppressed", zap.String("kind", string(c.Kind)), zap.String("reason", v.String()))
			return Result{Verdict: v}, ev, false
		}
		m.lastSuppressed = s
		m.log.Info("alert_suppressed",
			zap.String("kind", string(c.Kind)),
			zap.String("reason", v.String()),
		)
		return Result{Verdict: v}, ev, true
	}
	m.lastSuppressed = suppression{}

	m.log.Info("alert_dispatch", zap.String("kind", string(c.Kind)), zap.String("title", c.Title))
	dctx, cancel := context.WithTimeout(ctx, m.cfg.DispatchTimeout)
	defer cancel()
	err := m.notifier.Send(dctx, c, now)
	if err != nil {
		m.log.Warn("alert_dispatch_failed", zap.String("kind", string(c.Kind)), zap.Error(err))
		ev.Outcome = domain.OutcomeFailed
		ev.Reason = err.Error()
		return Result{Verdict: Allow, Err: err}, ev, true
	}

	m.state = m.state.Apply(c.Kind, now)
	if m.cfg.Recorder != nil {
		m.cfg.Recorder.SetErrorAlertActive(m.state.ErrorActive)
	}
	m.log.Info("alert_sent",
		zap.String("kind", string(c.Kind)),
		zap.Bool("error_alert_active", m.state.ErrorActive),
	)
	ev.Outcome = domain.OutcomeSent
	return Result{Verdict: Allow, Sent: true}, ev, true
}

// State returns a copy of the current alert state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Machine) ErrorActive() bool { return m.State().ErrorActive }

func (m *Machine) SetMaintenance(on bool) {
	if m.maintenance.Swap(on) != on {
		m.log.Info("maintenance_mode", zap.Bool("enabled", on))
	}
}

func (m *Machine) Maintenance() bool { return m.maintenance.Load() }

// Package watcher turns access-log lines into alert decisions.
package watcher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/alertwatcher/internal/alert"
	"github.com/hamed0406/alertwatcher/internal/domain"
	"github.com/hamed0406/alertwatcher/internal/failover"
	"github.com/hamed0406/alertwatcher/internal/record"
	"github.com/hamed0406/alertwatcher/internal/window"
)

// Observer is told about every line and window change, e.g. for metrics.
type Observer interface {
	LineDecoded()
	LineDropped()
	ObserveWindow(s window.Snapshot)
}

type Options struct {
	Policy   alert.Policy
	Now      func() time.Time
	Observer Observer // optional
}

// Engine owns the window and feeds the alert machine. It holds no locks of
// its own; the tracker and the machine guard their own state.
type Engine struct {
	tracker  *window.Tracker
	detector *failover.Detector
	machine  *alert.Machine
	opts     Options
	log      *zap.Logger
}

func NewEngine(t *window.Tracker, d *failover.Detector, m *alert.Machine, opts Options, log *zap.Logger) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Policy.Threshold <= 0 || opts.Policy.Threshold >= 1 {
		opts.Policy.Threshold = alert.DefaultThreshold
	}
	if opts.Policy.MinSamples < 0 {
		opts.Policy.MinSamples = alert.DefaultMinSamples
	}
	if opts.Policy.Window <= 0 {
		opts.Policy.Window = t.Size()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{tracker: t, detector: d, machine: m, opts: opts, log: log}
}

// HandleLine decodes one raw line and evaluates it. Malformed lines are
// dropped and a panic is turned into an error, so the caller's loop never
// stops because of one bad record.
func (e *Engine) HandleLine(ctx context.Context, line []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("record panic: %v", r)
			e.log.Error("record_panic", zap.Any("panic", r))
		}
	}()

	rec, err := record.Decode(line)
	if err != nil {
		if e.opts.Observer != nil {
			e.opts.Observer.LineDropped()
		}
		e.log.Debug("record_dropped", zap.Error(err))
		return nil
	}
	if e.opts.Observer != nil {
		e.opts.Observer.LineDecoded()
	}
	e.Evaluate(ctx, rec)
	return nil
}

// Evaluate ingests rec and hands every resulting candidate to the alert
// machine. A failover candidate is handled before the error-rate one so a
// successful failover alert closes an open error alert first.
func (e *Engine) Evaluate(ctx context.Context, rec domain.Record) []alert.Result {
	now := e.opts.Now()
	snap := e.tracker.Ingest(rec.Status, now)
	if e.opts.Observer != nil {
		e.opts.Observer.ObserveWindow(snap)
	}

	var out []alert.Result
	if rec.UpstreamStatus != "" && e.detector.Detect(rec.UpstreamStatus) {
		e.log.Info("failover_detected", zap.String("upstream_status", rec.UpstreamStatus))
		out = append(out, e.machine.Handle(ctx, alert.FailoverCandidate(rec.UpstreamStatus)))
	}
	if c, ok := alert.EvaluateErrorRate(snap, e.machine.ErrorActive(), e.opts.Policy); ok {
		out = append(out, e.machine.Handle(ctx, c))
	}
	return out
}

// Status is a point-in-time view for the operator surface.
type Status struct {
	WindowSeconds    float64    `json:"window_seconds"`
	Requests         int        `json:"requests"`
	Errors           int        `json:"errors"`
	ErrorRatio       float64    `json:"error_ratio"`
	Threshold        float64    `json:"threshold"`
	ErrorAlertActive bool       `json:"error_alert_active"`
	LastAlertAt      *time.Time `json:"last_alert_at,omitempty"`
	Maintenance      bool       `json:"maintenance"`
}

func (e *Engine) Status() Status {
	snap := e.tracker.Snapshot(e.opts.Now())
	st := e.machine.State()
	out := Status{
		WindowSeconds:    e.tracker.Size().Seconds(),
		Requests:         snap.Total,
		Errors:           snap.Errors,
		ErrorRatio:       snap.Ratio(),
		Threshold:        e.opts.Policy.Threshold,
		ErrorAlertActive: st.ErrorActive,
		Maintenance:      e.machine.Maintenance(),
	}
	if !st.LastAlert.IsZero() {
		t := st.LastAlert.UTC()
		out.LastAlertAt = &t
	}
	return out
}

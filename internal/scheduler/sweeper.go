// Package scheduler runs periodic maintenance of the sliding window.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/hamed0406/alertwatcher/internal/window"
)

const DefaultSchedule = "@every 5s"

// WindowObserver receives the window state after every sweep.
type WindowObserver interface {
	ObserveWindow(s window.Snapshot)
	Evicted(n int)
}

// Sweeper evicts stale observations between log lines, so gauges and the
// status endpoint stay accurate while traffic is idle.
type Sweeper struct {
	Logger   *zap.Logger
	Tracker  *window.Tracker
	Observer WindowObserver
	Schedule string
	Now      func() time.Time
}

func NewSweeper(logger *zap.Logger, t *window.Tracker, obs WindowObserver, schedule string) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		Logger:   logger,
		Tracker:  t,
		Observer: obs,
		Schedule: schedule,
		Now:      time.Now,
	}
}

// SweepOnce evicts everything older than the window and returns the count.
func (s *Sweeper) SweepOnce() int {
	now := s.Now()
	n := s.Tracker.Evict(now)
	snap := s.Tracker.Snapshot(now)
	if s.Observer != nil {
		s.Observer.Evicted(n)
		s.Observer.ObserveWindow(snap)
	}
	if n > 0 {
		s.Logger.Debug("window_swept",
			zap.Int("evicted", n),
			zap.Int("requests", snap.Total),
			zap.Int("errors", snap.Errors),
		)
	}
	return n
}

// Run sweeps on Schedule until ctx is cancelled. An empty schedule disables
// the sweeper; a schedule cron cannot parse is returned as an error.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.Schedule == "" {
		s.Logger.Info("sweeper_disabled")
		return nil
	}
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger{s.Logger.Sugar()}),
		cron.Recover(cronLogger{s.Logger.Sugar()}),
	))
	if _, err := c.AddFunc(s.Schedule, func() { s.SweepOnce() }); err != nil {
		return fmt.Errorf("sweeper schedule %q: %w", s.Schedule, err)
	}

	// immediate pass
	s.SweepOnce()
	c.Start()
	s.Logger.Info("sweeper_started", zap.String("schedule", s.Schedule))

	<-ctx.Done()
	<-c.Stop().Done()
	s.Logger.Info("sweeper_stopped")
	return nil
}

// cronLogger routes cron's own messages into zap.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

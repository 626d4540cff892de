package watcher

import (
	"context"

	"go.uber.org/zap"
)

// LineSource delivers raw lines in order until ctx ends.
type LineSource interface {
	Run(ctx context.Context, handle func(line []byte)) error
}

// Run feeds every line from src into e until ctx is cancelled.
func Run(ctx context.Context, src LineSource, e *Engine) error {
	e.log.Info("watcher_started")
	err := src.Run(ctx, func(line []byte) {
		if err := e.HandleLine(ctx, line); err != nil {
			e.log.Warn("record_error", zap.Error(err))
		}
	})
	e.log.Info("watcher_stopped")
	if ctx.Err() != nil {
		return nil
	}
	return err
}

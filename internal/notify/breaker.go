package notify

import (
	"context"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/hamed0406/alertwatcher/internal/domain"
)

// Breaker stops calling a webhook that keeps failing. While open, Send
// returns gobreaker.ErrOpenState, which the state machine treats like any
// other failed send.
type Breaker struct {
	next Notifier
	cb   *gobreaker.CircuitBreaker
}

func NewBreaker(next Notifier, failures uint32, openFor time.Duration, log *zap.Logger) *Breaker {
	if failures == 0 {
		failures = 5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "webhook",
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("notifier_breaker_state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return &Breaker{next: next, cb: cb}
}

func (b *Breaker) Send(ctx context.Context, c domain.Candidate, at time.Time) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.next.Send(ctx, c, at)
	})
	return err
}

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

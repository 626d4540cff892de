package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/hamed0406/alertwatcher/internal/domain"
)

var ErrDisabled = errors.New("notifier disabled")

// Notifier delivers one alert. A nil error means the channel accepted it;
// anything else is a failed send.
type Notifier interface {
	Send(ctx context.Context, c domain.Candidate, at time.Time) error
}

// RejectedError is returned when the endpoint answered with anything but 200.
type RejectedError struct {
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("webhook rejected alert: HTTP %d", e.StatusCode)
}

// Multi fans an alert out to every notifier. The alert counts as delivered
// only when all of them accepted it.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, c domain.Candidate, at time.Time) error {
	var err error
	sent := 0
	for _, n := range m {
		if n == nil {
			continue
		}
		sent++
		err = multierr.Append(err, n.Send(ctx, c, at))
	}
	if sent == 0 {
		return ErrDisabled
	}
	return err
}

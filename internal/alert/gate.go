package alert

import (
	"time"

	"github.com/hamed0406/alertwatcher/internal/domain"
)

type Verdict int

const (
	Allow Verdict = iota
	SuppressMaintenance
	SuppressCooldown
	SuppressDuplicate
	SuppressNotActive
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case SuppressMaintenance:
		return "maintenance"
	case SuppressCooldown:
		return "cooldown"
	case SuppressDuplicate:
		return "duplicate"
	case SuppressNotActive:
		return "not_active"
	}
	return "unknown"
}

// State is the process-wide alert state. The zero value is the start state.
type State struct {
	LastAlert   time.Time // last accepted dispatch of any kind
	ErrorActive bool      // an error-rate alert is open
}

// Gate decides whether a candidate may be dispatched. Checks run in a fixed
// order: maintenance, the global cooldown, then error-rate dedup. A Resolved
// candidate built from a stale flag is dropped when no error alert is open.
func Gate(st State, c domain.Candidate, maintenance bool, cooldown time.Duration, now time.Time) Verdict {
	if maintenance {
		return SuppressMaintenance
	}
	if !st.LastAlert.IsZero() && now.Sub(st.LastAlert) < cooldown {
		return SuppressCooldown
	}
	if c.Kind == domain.ErrorRateHigh && st.ErrorActive {
		return SuppressDuplicate
	}
	if c.Kind == domain.ErrorRateResolved && !st.ErrorActive {
		return SuppressNotActive
	}
	return Allow
}

// Apply returns the state after kind was accepted by the channel at now.
func (st State) Apply(kind domain.AlertKind, now time.Time) State {
	st.LastAlert = now
	switch kind {
	case domain.ErrorRateHigh:
		st.ErrorActive = true
	case domain.ErrorRateResolved, domain.FailoverDetected:
		st.ErrorActive = false
	}
	return st
}

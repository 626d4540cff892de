package domain

import "time"

// Record is one decoded access-log line.
type Record struct {
	Status         int    `json:"status"`
	UpstreamStatus string `json:"upstream_status"`
}

// Observation is a single (time, status) sample held by the window.
type Observation struct {
	At     time.Time
	Status int
}

// IsServerError reports whether status is in the 5xx class.
func IsServerError(status int) bool {
	return status >= 500 && status <= 599
}

type AlertKind string

const (
	ErrorRateHigh     AlertKind = "error_rate_high"
	ErrorRateResolved AlertKind = "error_rate_resolved"
	FailoverDetected  AlertKind = "failover_detected"
)

// Severity maps directly onto the attachment colour of the webhook payload.
type Severity string

const (
	SeverityDanger  Severity = "danger"
	SeverityWarning Severity = "warning"
	SeverityGood    Severity = "good"
)

// Candidate is a proposed alert. It is handed straight to the state machine
// and never stored.
type Candidate struct {
	Kind     AlertKind
	Title    string
	Details  string
	Severity Severity
}

type Outcome string

const (
	OutcomeSent       Outcome = "sent"
	OutcomeFailed     Outcome = "failed"
	OutcomeSuppressed Outcome = "suppressed"
)

// AlertEvent is the journal entry written for every handled candidate.
type AlertEvent struct {
	ID       string    `json:"id"`
	Kind     AlertKind `json:"kind"`
	Title    string    `json:"title"`
	Severity Severity  `json:"severity"`
	Outcome  Outcome   `json:"outcome"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

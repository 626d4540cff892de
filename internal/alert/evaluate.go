package alert

import (
	"fmt"
	"time"

	"github.com/hamed0406/alertwatcher/internal/domain"
	"github.com/hamed0406/alertwatcher/internal/window"
)

const (
	TitleErrorRateHigh     = "Error Rate High 🚨"
	TitleErrorRateResolved = "Error Rate Resolved ✅"
	TitleFailoverDetected  = "Failover Detected! 🔄"

	DefaultThreshold  = 0.01
	DefaultMinSamples = 5
)

// Policy holds the error-rate trigger settings.
type Policy struct {
	Threshold  float64       // trigger ratio, in (0,1)
	MinSamples int           // the window must hold more than this many requests
	Window     time.Duration // only used in alert text
}

// EvaluateErrorRate turns a window snapshot into at most one candidate.
// Resolution uses half the threshold so the alert does not flap around it.
func EvaluateErrorRate(s window.Snapshot, errorActive bool, p Policy) (domain.Candidate, bool) {
	if s.Total == 0 {
		return domain.Candidate{}, false
	}
	ratio := s.Ratio()
	switch {
	case ratio >= p.Threshold && s.Total > p.MinSamples:
		return domain.Candidate{
			Kind:  domain.ErrorRateHigh,
			Title: TitleErrorRateHigh,
			Details: fmt.Sprintf(
				"Current error rate (%s) exceeds the threshold (%s). 5xx errors detected: %d out of %d requests in the last %.0fs.",
				percent(ratio), percent(p.Threshold), s.Errors, s.Total, p.Window.Seconds(),
			),
			Severity: domain.SeverityDanger,
		}, true
	case errorActive && ratio < p.Threshold/2:
		return domain.Candidate{
			Kind:     domain.ErrorRateResolved,
			Title:    TitleErrorRateResolved,
			Details:  fmt.Sprintf("The error rate has dropped below the recovery threshold (%s). Current rate: %s.", percent(p.Threshold/2), percent(ratio)),
			Severity: domain.SeverityGood,
		}, true
	}
	return domain.Candidate{}, false
}

// FailoverCandidate describes a request that recovered on a secondary upstream.
func FailoverCandidate(upstream string) domain.Candidate {
	return domain.Candidate{
		Kind:     domain.FailoverDetected,
		Title:    TitleFailoverDetected,
		Details:  "A request to the primary pool failed and successfully recovered using the secondary pool. Upstream Statuses: " + upstream,
		Severity: domain.SeverityWarning,
	}
}

func percent(f float64) string {
	return fmt.Sprintf("%.2f%%", f*100)
}

// Package metrics exposes the watcher's counters and gauges to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hamed0406/alertwatcher/internal/domain"
	"github.com/hamed0406/alertwatcher/internal/window"
)

const prefix = "alertwatcher"

type Metrics struct {
	reg *prometheus.Registry

	lines          *prometheus.CounterVec
	windowRequests prometheus.Gauge
	windowErrors   prometheus.Gauge
	errorRatio     prometheus.Gauge
	alerts         *prometheus.CounterVec
	errorActive    prometheus.Gauge
	evicted        prometheus.Counter
}

// New builds the collectors on a private registry so tests can create as
// many instances as they like.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		lines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_lines_total",
			Help: "Access log lines read, by decode result",
		}, []string{"result"}),
		windowRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_window_requests",
			Help: "Requests currently inside the sliding window",
		}),
		windowErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_window_errors",
			Help: "5xx responses currently inside the sliding window",
		}),
		errorRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_error_ratio",
			Help: "Share of 5xx responses inside the sliding window",
		}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: prefix + "_alerts_total",
			Help: "Alert candidates handled, by kind and outcome",
		}, []string{"kind", "outcome"}),
		errorActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: prefix + "_error_alert_active",
			Help: "1 while an error-rate alert is open",
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: prefix + "_window_evicted_total",
			Help: "Observations evicted from the sliding window",
		}),
	}
	reg.MustRegister(
		m.lines, m.windowRequests, m.windowErrors, m.errorRatio,
		m.alerts, m.errorActive, m.evicted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) LineDecoded() {
	m.lines.WithLabelValues("decoded").Inc()
}

func (m *Metrics) LineDropped() {
	m.lines.WithLabelValues("dropped").Inc()
}

func (m *Metrics) ObserveWindow(s window.Snapshot) {
	m.windowRequests.Set(float64(s.Total))
	m.windowErrors.Set(float64(s.Errors))
	m.errorRatio.Set(s.Ratio())
}

func (m *Metrics) Evicted(n int) {
	if n > 0 {
		m.evicted.Add(float64(n))
	}
}

func (m *Metrics) AlertHandled(kind domain.AlertKind, outcome domain.Outcome) {
	m.alerts.WithLabelValues(string(kind), string(outcome)).Inc()
}

func (m *Metrics) SetErrorAlertActive(active bool) {
	if active {
		m.errorActive.Set(1)
		return
	}
	m.errorActive.Set(0)
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

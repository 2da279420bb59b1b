package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for sign-in attempts and script loads.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	AttemptsTotal   *prometheus.CounterVec
	AttemptDuration *prometheus.HistogramVec
	ScriptLoads     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socialsign_attempts_total",
				Help: "Total number of identity token attempts by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		AttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "socialsign_attempt_duration_seconds",
				Help:    "Time from token request to settlement.",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
			[]string{"provider"},
		),
		ScriptLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socialsign_script_loads_total",
				Help: "Provider script loads by script id and result.",
			},
			[]string{"id", "result"},
		),
	}
	reg.MustRegister(m.AttemptsTotal, m.AttemptDuration, m.ScriptLoads)
	return m
}

// ObserveAttempt records one settled attempt.
func (m *Metrics) ObserveAttempt(provider, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(provider, outcome).Inc()
	m.AttemptDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveScriptLoad records the completion of a script fetch.
func (m *Metrics) ObserveScriptLoad(id string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.ScriptLoads.WithLabelValues(id, result).Inc()
}

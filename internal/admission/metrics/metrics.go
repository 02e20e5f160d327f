package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	AdmissionsTotal     *prometheus.CounterVec
	MatcherRuleTimeouts prometheus.Counter
	DebitFailures       prometheus.Counter
	AdmissionDuration   prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		AdmissionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cmdgate_admissions_total",
			Help: "Total admission decisions by outcome and reason",
		}, []string{"outcome", "reason"}),
		MatcherRuleTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cmdgate_matcher_rule_timeouts_total",
			Help: "Total rules skipped because evaluation exceeded the time budget",
		}),
		DebitFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cmdgate_debit_failures_total",
			Help: "Total debits refused for insufficient credits",
		}),
		AdmissionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cmdgate_admission_duration_seconds",
			Help:    "Wall-clock duration of admission decisions",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveDecision(outcome, reason string, seconds float64) {
	m.AdmissionsTotal.WithLabelValues(outcome, reason).Inc()
	m.AdmissionDuration.Observe(seconds)
}

package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for triage outcomes.
type Metrics struct {
	AssessmentsTotal *prometheus.CounterVec
	BlockedIssues    prometheus.Gauge
	SuggestedVendors prometheus.Histogram
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AssessmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proco_triage_assessments_total",
			Help: "Total issue assessments by effective status and urgency.",
		}, []string{"status", "urgency"}),
		BlockedIssues: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "proco_triage_budget_blocked_issues",
			Help: "Issues blocked by the budget gate in the most recent assessment.",
		}),
		SuggestedVendors: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "proco_triage_suggested_vendors",
			Help:    "Suggested vendors per assessed issue.",
			Buckets: prometheus.LinearBuckets(0, 1, 11), // 0 .. 10
		}),
	}

	reg.MustRegister(
		m.AssessmentsTotal,
		m.BlockedIssues,
		m.SuggestedVendors,
	)

	return m
}

// Observe records one assessment pass.
func (m *Metrics) Observe(as []Assessment) {
	blocked := 0
	for _, a := range as {
		m.AssessmentsTotal.WithLabelValues(string(a.Status), string(a.Urgency)).Inc()
		m.SuggestedVendors.Observe(float64(len(a.Suggested)))
		if a.Blocked() {
			blocked++
		}
	}
	m.BlockedIssues.Set(float64(blocked))
}

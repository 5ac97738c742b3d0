package dashboard

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/proco/internal/triage"
)

// Metrics holds Prometheus metrics for dashboard pages.
type Metrics struct {
	LoadsTotal           *prometheus.CounterVec
	LoadDuration         prometheus.Histogram
	StatusChangesTotal   *prometheus.CounterVec
	WalletMutationsTotal *prometheus.CounterVec
}

// NewMetrics registers and returns dashboard metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proco_dashboard_loads_total",
			Help: "Total dashboard loads by result.",
		}, []string{"result"}),
		LoadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "proco_dashboard_load_duration_seconds",
			Help:    "Duration of dashboard loads including tenant lookups.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms .. ~20s
		}),
		StatusChangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proco_dashboard_status_changes_total",
			Help: "Total issue status change requests by target status and result.",
		}, []string{"target", "result"}),
		WalletMutationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "proco_dashboard_wallet_mutations_total",
			Help: "Total wallet edits by operation and result.",
		}, []string{"op", "result"}),
	}

	reg.MustRegister(
		m.LoadsTotal,
		m.LoadDuration,
		m.StatusChangesTotal,
		m.WalletMutationsTotal,
	)

	return m
}

// Hooks returns Hooks that increment the corresponding metrics. OnAssess is left nil.
func (m *Metrics) Hooks() Hooks {
	return Hooks{
		OnLoad: func(result string, duration float64) {
			m.LoadsTotal.WithLabelValues(result).Inc()
			m.LoadDuration.Observe(duration)
		},
		OnStatusChange: func(target triage.EffectiveStatus, result string) {
			m.StatusChangesTotal.WithLabelValues(string(target), result).Inc()
		},
		OnWalletMutation: func(op, result string) {
			m.WalletMutationsTotal.WithLabelValues(op, result).Inc()
		},
	}
}

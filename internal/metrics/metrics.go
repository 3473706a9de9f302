// Package metrics contains the prometheus collectors of the filtering engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "contentfilter"

// Rebuild statuses.
const (
	StatusSuccess    = "success"
	StatusError      = "error"
	StatusSuperseded = "superseded"
)

// Metrics are the collectors of the engine.  Create them with [New] and
// expose them with [Metrics.Register].
type Metrics struct {
	RebuildsTotal          *prometheus.CounterVec
	RebuildDurationSeconds prometheus.Gauge
	Filters                *prometheus.GaugeVec
	ListsCompiledTotal     *prometheus.CounterVec
	RuleErrorsTotal        prometheus.Counter
	UnsupportedRulesTotal  prometheus.Counter
	RequestsTotal          *prometheus.CounterVec
	UserRules              prometheus.Gauge
}

// New returns new unregistered collectors.
func New() (m *Metrics) {
	return &Metrics{
		RebuildsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "rebuilds_total",
				Help:      "Total number of engine rebuilds by status",
			},
			[]string{"status"},
		),
		RebuildDurationSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "rebuild_duration_seconds",
				Help:      "Duration of the last successful engine rebuild",
			},
		),
		Filters: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "filters",
				Help:      "Number of loaded filters by class",
			},
			[]string{"class"},
		),
		ListsCompiledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lists",
				Name:      "compiled_total",
				Help:      "Total number of compiled filter lists by status",
			},
			[]string{"status"},
		),
		RuleErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lists",
				Name:      "rule_errors_total",
				Help:      "Total number of rules that could not be parsed",
			},
		),
		UnsupportedRulesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "lists",
				Name:      "unsupported_rules_total",
				Help:      "Total number of skipped unsupported rules",
			},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "proxy",
				Name:      "requests_total",
				Help:      "Total number of filtered requests by verdict",
			},
			[]string{"verdict"},
		),
		UserRules: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "user_rules",
				Help:      "Number of user rules",
			},
		),
	}
}

// Register registers every collector of m in reg.
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(m.RebuildsTotal)
	reg.MustRegister(m.RebuildDurationSeconds)
	reg.MustRegister(m.Filters)
	reg.MustRegister(m.ListsCompiledTotal)
	reg.MustRegister(m.RuleErrorsTotal)
	reg.MustRegister(m.UnsupportedRulesTotal)
	reg.MustRegister(m.RequestsTotal)
	reg.MustRegister(m.UserRules)
}

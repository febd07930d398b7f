package sql

import (
	"context"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/syssam/silo/dialect"
)

// Metrics holds the Prometheus collectors of a MetricsDriver.
type Metrics struct {
	// StatementsTotal counts statements by dialect, statement kind and status.
	StatementsTotal *prometheus.CounterVec
	// StatementDuration observes statement latency by dialect and statement kind.
	StatementDuration *prometheus.HistogramVec
	// ConstraintViolations counts statements rejected by a database constraint.
	ConstraintViolations *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		StatementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "silo_sql_statements_total",
				Help: "Total number of SQL statements executed",
			},
			[]string{"dialect", "statement", "status"},
		),
		StatementDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "silo_sql_statement_duration_seconds",
				Help:    "SQL statement latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"dialect", "statement"},
		),
		ConstraintViolations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "silo_sql_constraint_violations_total",
				Help: "Total number of statements rejected by a database constraint",
			},
			[]string{"dialect"},
		),
	}
}

// Observer returns an observer recording statements of the given dialect.
func (m *Metrics) Observer(name string) Observer {
	return func(_ context.Context, ev QueryEvent) {
		kind := StatementKind(ev.Query)
		status := "ok"
		if ev.Err != nil {
			status = "error"
			if IsConstraintError(ev.Err) {
				m.ConstraintViolations.WithLabelValues(name).Inc()
			}
		}
		m.StatementsTotal.WithLabelValues(name, kind, status).Inc()
		m.StatementDuration.WithLabelValues(name, kind).Observe(ev.Duration.Seconds())
	}
}

// NewMetricsDriver wraps a driver with Prometheus metrics.
func NewMetricsDriver(drv dialect.Driver, m *Metrics) *ObservedDriver {
	return Observe(drv, m.Observer(drv.Dialect()))
}

// StatementKind returns the lower-cased leading keyword of a statement,
// e.g. "select" or "alter". It keeps metric label cardinality bounded.
func StatementKind(query string) string {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return "unknown"
	}
	switch kw := strings.ToLower(fields[0]); kw {
	case "select", "insert", "update", "delete", "create", "alter", "drop", "pragma", "with":
		return kw
	default:
		return "other"
	}
}

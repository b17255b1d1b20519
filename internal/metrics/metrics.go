package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ndewijer/investment-ledger/internal/apperrors"
)

// Registry holds all Prometheus metrics of the ledger engine and the portfolio refresh.
// Methods are safe to call on a nil *Registry, which records nothing.
type Registry struct {
	registry *prometheus.Registry

	// Solver metrics
	SolverIterations prometheus.Histogram
	SolverFailures   prometheus.Counter

	// Validation metrics
	ValidationFailures *prometheus.CounterVec

	// Portfolio refresh metrics
	RefreshDuration   prometheus.Histogram
	ClassesRecomputed *prometheus.CounterVec
	RecomputedDates   prometheus.Counter
}

// New creates a registry with every metric registered, plus the Go runtime and process
// collectors.
func New() *Registry {
	m := &Registry{
		registry: prometheus.NewRegistry(),

		SolverIterations: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ledger_solver_iterations",
				Help:    "Residual evaluations per converged rate solve",
				Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024, 4096},
			},
		),

		SolverFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_solver_failures_total",
				Help: "Total number of rate solves that exhausted the iteration budget",
			},
		),

		ValidationFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_validation_failures_total",
				Help: "Total number of rejected ledgers by error kind",
			},
			[]string{"kind"},
		),

		RefreshDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "portfolio_refresh_duration_seconds",
				Help:    "Duration of a portfolio refresh across all classes",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		ClassesRecomputed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "portfolio_classes_recomputed_total",
				Help: "Total number of class aggregations by outcome (skipped, recomputed, failed)",
			},
			[]string{"result"},
		),

		RecomputedDates: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "portfolio_recomputed_dates_total",
				Help: "Total number of snapshot dates whose rate was solved again",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.SolverIterations,
		m.SolverFailures,
		m.ValidationFailures,
		m.RefreshDuration,
		m.ClassesRecomputed,
		m.RecomputedDates,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSolve records the outcome of one rate solve.
func (m *Registry) ObserveSolve(iterations int, err error) {
	if m == nil {
		return
	}
	if errors.Is(err, apperrors.ErrConvergence) {
		m.SolverFailures.Inc()
		return
	}
	if err == nil && iterations > 0 {
		m.SolverIterations.Observe(float64(iterations))
	}
}

// RecordValidationFailure counts a rejected ledger under its error kind.
func (m *Registry) RecordValidationFailure(err error) {
	if m == nil {
		return
	}
	kind := "unknown"
	if le, ok := apperrors.AsLedgerError(err); ok {
		kind = apperrors.KindName(le.Kind)
	}
	m.ValidationFailures.WithLabelValues(kind).Inc()
}

// ObserveRefresh records the duration of a refresh that started at start.
func (m *Registry) ObserveRefresh(start time.Time) {
	if m == nil {
		return
	}
	m.RefreshDuration.Observe(time.Since(start).Seconds())
}

// RecordClass counts one class aggregation; result is skipped, recomputed or failed.
func (m *Registry) RecordClass(result string, recomputedDates int) {
	if m == nil {
		return
	}
	m.ClassesRecomputed.WithLabelValues(result).Inc()
	m.RecomputedDates.Add(float64(recomputedDates))
}

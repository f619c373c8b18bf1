// Package metrics records per-operation Prometheus metrics for the ranking services.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OperationMetrics is the contract every application service records against.
type OperationMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)
}

// DomainMetrics carries the business gauges and counters that do not fit the operation shape.
type DomainMetrics interface {
	OperationMetrics
	RecordPointsAwarded(ctx context.Context, source string, points int)
	RecordBulkRows(ctx context.Context, outcome string, n int)
	SetLedgerDrift(ctx context.Context, players int)
}

// Prometheus implements DomainMetrics on a prometheus.Registerer.
type Prometheus struct {
	attempts  *prometheus.CounterVec
	successes *prometheus.CounterVec
	failures  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	awarded   *prometheus.CounterVec
	bulkRows  *prometheus.CounterVec
	drift     prometheus.Gauge
}

// NewPrometheus registers the ranking metrics on reg. It panics if registration fails, like
// prometheus.MustRegister.
func NewPrometheus(reg prometheus.Registerer, namespace string) *Prometheus {
	p := &Prometheus{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_attempts_total",
			Help:      "Service operations started.",
		}, []string{"service", "operation"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_success_total",
			Help:      "Service operations that completed without an infrastructure error.",
		}, []string{"service", "operation"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Service operations that returned an infrastructure error or panicked.",
		}, []string{"service", "operation"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "operation"}),
		awarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Points written to the ledger, by entry source.",
		}, []string{"source"}),
		bulkRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_rows_total",
			Help:      "Bulk import rows by outcome.",
		}, []string{"outcome"}),
		drift: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ledger_drift_players",
			Help:      "Players whose lifetime total differs from the live sum of their ledger entries.",
		}),
	}
	reg.MustRegister(p.attempts, p.successes, p.failures, p.duration, p.awarded, p.bulkRows, p.drift)
	return p
}

func (p *Prometheus) RecordOperationAttempt(_ context.Context, operation, service string) {
	p.attempts.WithLabelValues(service, operation).Inc()
}

func (p *Prometheus) RecordOperationSuccess(_ context.Context, operation, service string) {
	p.successes.WithLabelValues(service, operation).Inc()
}

func (p *Prometheus) RecordOperationFailure(_ context.Context, operation, service string) {
	p.failures.WithLabelValues(service, operation).Inc()
}

func (p *Prometheus) RecordOperationDuration(_ context.Context, operation, service string, d time.Duration) {
	p.duration.WithLabelValues(service, operation).Observe(d.Seconds())
}

func (p *Prometheus) RecordPointsAwarded(_ context.Context, source string, points int) {
	if points <= 0 {
		return
	}
	p.awarded.WithLabelValues(source).Add(float64(points))
}

func (p *Prometheus) RecordBulkRows(_ context.Context, outcome string, n int) {
	if n <= 0 {
		return
	}
	p.bulkRows.WithLabelValues(outcome).Add(float64(n))
}

func (p *Prometheus) SetLedgerDrift(_ context.Context, players int) {
	p.drift.Set(float64(players))
}

// Noop discards everything.
type Noop struct{}

// NewNoop returns a DomainMetrics that records nothing.
func NewNoop() DomainMetrics { return Noop{} }

func (Noop) RecordOperationAttempt(context.Context, string, string)                 {}
func (Noop) RecordOperationSuccess(context.Context, string, string)                 {}
func (Noop) RecordOperationFailure(context.Context, string, string)                 {}
func (Noop) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (Noop) RecordPointsAwarded(context.Context, string, int)                       {}
func (Noop) RecordBulkRows(context.Context, string, int)                            {}
func (Noop) SetLedgerDrift(context.Context, int)                                    {}

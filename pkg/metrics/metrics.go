/**
 * @description
 * Prometheus collectors for the ledger service. Every account operation is
 * counted by name and outcome, and its wall-clock duration is observed in a
 * shared histogram. The Collector is nil-safe so callers do not have to
 * guard every observation when metrics are disabled.
 *
 * @dependencies
 * - github.com/prometheus/client_golang/prometheus: Core metric types.
 * - github.com/prometheus/client_golang/prometheus/promhttp: HTTP exposition.
 */
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	reconciled prometheus.Counter
}

// NewCollector registers the ledger metric set on a private registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "operations_total",
			Help:      "Account operations processed, by operation and outcome.",
		}, []string{"operation", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Wall-clock duration of account operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "reconciled_legs_total",
			Help:      "Transfer leg pairs repaired by the reconciliation sweep.",
		}),
	}
	c.registry.MustRegister(c.operations, c.durations, c.reconciled)
	return c
}

// ObserveOperation records one completed operation. A nil Collector is a
// no-op so the service can run with metrics disabled.
func (c *Collector) ObserveOperation(operation string, start time.Time, err error) {
	if c == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.operations.WithLabelValues(operation, outcome).Inc()
	c.durations.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// AddReconciled counts leg pairs repaired by a reconciliation run.
func (c *Collector) AddReconciled(pairs int) {
	if c == nil || pairs <= 0 {
		return
	}
	c.reconciled.Add(float64(pairs))
}

// Handler returns the exposition endpoint for this collector's registry.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// internal/metrics/metrics.go
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"lotto-ledger/internal/util"
)

// Metrics holds the ledger collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	txRetriesTotal    *prometheus.CounterVec
	limitCacheTotal   *prometheus.CounterVec
}

// NewMetrics registers the ledger collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lotto_ledger",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Ledger operations partitioned by operation, actor kind and outcome.",
			},
			[]string{"operation", "kind", "outcome"},
		),
		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "lotto_ledger",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Wall time of ledger operations including retries.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		txRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lotto_ledger",
				Subsystem: "store",
				Name:      "transaction_retries_total",
				Help:      "Transactions retried after a contention abort.",
			},
			[]string{"operation"},
		),
		limitCacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lotto_ledger",
				Subsystem: "payment_limit",
				Name:      "cache_lookups_total",
				Help:      "Payment limit cache lookups by result.",
			},
			[]string{"result"},
		),
	}
}

// ObserveOperation records the outcome of one ledger operation.
func (m *Metrics) ObserveOperation(operation, kind string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, kind, Outcome(err)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ObserveRetry counts one retried transaction attempt.
func (m *Metrics) ObserveRetry(operation string) {
	if m == nil {
		return
	}
	m.txRetriesTotal.WithLabelValues(operation).Inc()
}

// ObserveLimitCache counts a cache lookup: "hit", "miss" or "error".
func (m *Metrics) ObserveLimitCache(result string) {
	if m == nil {
		return
	}
	m.limitCacheTotal.WithLabelValues(result).Inc()
}

// Outcome maps an operation error to a low-cardinality label.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := util.KindOf(err); kind != "" {
		return strings.ToLower(string(kind))
	}
	return "error"
}

// Package metrics exposes Prometheus counters for chaincode transactions.
// Metrics are process-local observations and never feed back into ledger writes.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"pharmaledger/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels besides the lower-cased error kinds.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error" // Ledger or identity failure that carries no custody kind
)

var (
	// transactionsTotal counts transactions by name and outcome.
	transactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pharmaledger_transactions_total",
			Help: "Chaincode transactions executed, by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// transactionDuration measures chaincode execution time, not commit latency.
	transactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pharmaledger_transaction_duration_seconds",
			Help:    "Chaincode transaction execution time in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// Outcome maps a transaction error to its metric label.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if kind := model.KindOf(err); kind != "" {
		return strings.ToLower(string(kind))
	}
	return OutcomeError
}

// Observe records one finished transaction. Callers defer it with the named error result:
//
//	defer func() { metrics.Observe("Transfer", start, err) }()
func Observe(operation string, start time.Time, err error) {
	transactionsTotal.WithLabelValues(operation, Outcome(err)).Inc()
	transactionDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

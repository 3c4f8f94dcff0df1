// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mmynk/splitledger/internal/models"
)

const namespace = "splitledger"

var (
	// RPCRequests counts finished RPCs by procedure and Connect code.
	RPCRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_requests_total",
		Help:      "Finished RPCs by procedure and result code.",
	}, []string{"procedure", "code"})

	// RPCDuration observes RPC latency by procedure.
	RPCDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rpc_duration_seconds",
		Help:      "RPC latency by procedure.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"procedure"})

	transactionsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_recorded_total",
		Help:      "Transactions created or replaced, by category.",
	}, []string{"category"})

	suggestionsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlement_suggestions_total",
		Help:      "Settlement suggestions produced by balance requests.",
	})

	balanceDrift = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "balance_drift_units",
		Help:      "Absolute sum of member balances per balance computation.",
		Buckets:   []float64{0, 1, 2, 5, 10, 50},
	})
)

// TransactionRecorded counts one created or replaced transaction.
func TransactionRecorded(category models.Category) {
	transactionsRecorded.WithLabelValues(category.String()).Inc()
}

// SuggestionsEmitted adds n settlement suggestions.
func SuggestionsEmitted(n int) {
	suggestionsEmitted.Add(float64(n))
}

// ObserveDrift records the rounding residue left in a group's balances.
func ObserveDrift(sum int64) {
	if sum < 0 {
		sum = -sum
	}
	balanceDrift.Observe(float64(sum))
}

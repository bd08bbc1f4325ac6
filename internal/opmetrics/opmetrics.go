// Package opmetrics exposes Prometheus instrumentation for round
// generation and chain reads, following the promauto counter/histogram
// idiom the rest of the corpus uses for its match-engine metrics.
package opmetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	roundsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "distrib_rounds_total",
		Help: "Total number of rounds generated",
	})
	roundFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "distrib_round_failures_total",
		Help: "Total number of round generation attempts that returned an error",
	})
	roundDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "distrib_round_duration_seconds",
		Help:    "Wall-clock duration of a full round generation",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})
	allocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "distrib_allocations_total",
		Help: "Total number of per-recipient allocations produced across all rounds",
	})
	rpcErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "distrib_rpc_errors_total",
		Help: "Total number of chain RPC calls that returned an error, by method",
	}, []string{"method"})
	cumulativeDistributed = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "distrib_cumulative_distributed",
		Help: "Cumulative distributed amount by token, as a float64 approximation of the on-chain integer total",
	}, []string{"token"})
)

// RecordRound records one round generation attempt.
func RecordRound(duration time.Duration, allocations int, err error) {
	roundsTotal.Inc()
	roundDurationSeconds.Observe(duration.Seconds())
	allocationsTotal.Add(float64(allocations))
	if err != nil {
		roundFailuresTotal.Inc()
	}
}

// RecordRPCError tags an RPC failure by the chain method that produced it.
func RecordRPCError(method string) {
	rpcErrorsTotal.WithLabelValues(method).Inc()
}

// SetCumulativeDistributed reports the running total for a token. approx
// loses precision beyond 2^53 wei but is fine for dashboard display; the
// authoritative figure is always the blob's TotalDistributed field.
func SetCumulativeDistributed(token string, approx float64) {
	cumulativeDistributed.WithLabelValues(token).Set(approx)
}

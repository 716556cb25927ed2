package cluster

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// StreetsClustered counts street sections that received a synthetic consumer
	StreetsClustered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thermonet_cluster_streets_total",
			Help: "Total number of street sections clustered into a synthetic consumer",
		},
	)

	// ConsumersAggregated counts raw consumers folded into synthetic ones
	ConsumersAggregated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thermonet_cluster_consumers_aggregated_total",
			Help: "Total number of raw consumers folded into synthetic consumers",
		},
	)

	// PipesRemoved counts pipes dropped during grouping and clearing
	PipesRemoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thermonet_cluster_pipes_removed_total",
			Help: "Total number of pipes removed while clustering",
		},
		[]string{"phase"},
	)

	// RunDuration tracks the wall time of complete clustering runs
	RunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "thermonet_cluster_run_seconds",
			Help:    "Duration of complete clustering runs",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(StreetsClustered)
	prometheus.MustRegister(ConsumersAggregated)
	prometheus.MustRegister(PipesRemoved)
	prometheus.MustRegister(RunDuration)
}

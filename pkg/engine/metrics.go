package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ThermonetRunsTotal counts pipeline runs by kind and outcome
	ThermonetRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thermonet_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"kind", "status"},
	)

	// ThermonetCacheLookups tracks topology cache lookups
	ThermonetCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thermonet_cache_lookups_total",
			Help: "Topology lookups by input hash",
		},
		[]string{"source"},
	)

	// ThermonetRunsPruned counts runs removed by the retention worker
	ThermonetRunsPruned = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thermonet_runs_pruned_total",
			Help: "Total number of runs deleted by retention",
		},
	)
)

func init() {
	prometheus.MustRegister(ThermonetRunsTotal)
	prometheus.MustRegister(ThermonetCacheLookups)
	prometheus.MustRegister(ThermonetRunsPruned)
}

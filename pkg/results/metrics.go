package results

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ComponentsProcessed counts components folded into summary tables
	ComponentsProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "thermonet_results_components_total",
			Help: "Total number of components folded into result tables",
		},
	)

	// ComponentsDropped counts components removed before aggregation
	ComponentsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "thermonet_results_components_dropped_total",
			Help: "Total number of components dropped or merged before aggregation",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(ComponentsProcessed)
	prometheus.MustRegister(ComponentsDropped)
}

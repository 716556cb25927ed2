package results

import (
	"fmt"
	"log/slog"
	"strings"
)

// label markers
const (
	markerInsulation = "insulation"
	markerHighTemp   = "high_temp"
	markerLowTemp    = "low_temp"
	markerCollector  = "_collector"
)

// TypeInsulation is the type tag given to insulation measures.
const TypeInsulation = "insulation"

// collectorStem returns the source label a collector belongs to.
func collectorStem(label string) (string, bool) {
	i := strings.LastIndex(label, markerCollector)
	if i <= 0 {
		return "", false
	}
	return label[:i], true
}

// PrepareData rewrites the special components and folds the rest into a
// Result, in input order.
//
// Insulation measures reduce the demand by their output and are retagged.
// Ambient heat pump sources are dropped. A collector whose stem names a
// source in rc is merged into that source: its first three flows replace
// the source's, its variable and constraint costs are added.
func PrepareData(components []Component, totalDemand float64, rc Context) (*Result, error) {
	logger := rc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sources := make(map[string]struct{}, len(rc.SourceLabels))
	for _, l := range rc.SourceLabels {
		sources[l] = struct{}{}
	}

	records := make([]Component, len(components))
	index := make(map[string]int, len(components))
	for i, c := range components {
		records[i] = c
		index[c.Label] = i
	}

	dropped := make(map[int]struct{})
	for i := range records {
		label := records[i].Label
		rec := &records[i].Record
		switch {
		case strings.Contains(label, markerInsulation):
			totalDemand -= sum(rec.Output1)
			rec.Type = TypeInsulation
		case strings.Contains(label, markerHighTemp) || strings.Contains(label, markerLowTemp):
			dropped[i] = struct{}{}
			ComponentsDropped.WithLabelValues("ambient").Inc()
		default:
			stem, ok := collectorStem(label)
			if !ok {
				continue
			}
			if _, known := sources[stem]; !known {
				continue
			}
			j, present := index[stem]
			if !present {
				logger.Warn("collector source has no result record", "collector", label, "source", stem)
				continue
			}
			src := &records[j].Record
			src.Input1 = rec.Input1
			src.Input2 = rec.Input2
			src.Output1 = rec.Output1
			src.VariableCost += rec.VariableCost
			src.ConstraintCost += rec.ConstraintCost
			dropped[i] = struct{}{}
			ComponentsDropped.WithLabelValues("collector").Inc()
		}
	}

	acc := NewAccumulator()
	for i, c := range records {
		if _, skip := dropped[i]; skip {
			continue
		}
		if rc.Horizon > 0 {
			if err := checkHorizon(c.Label, c.Record, rc.Horizon); err != nil {
				return nil, err
			}
		}
		if err := checkFinite(c.Label, c.Record); err != nil {
			return nil, err
		}
		acc.Accumulate(c.Label, c.Record)
		ComponentsProcessed.Inc()
	}

	totals := acc.Totals()
	for name, v := range map[string]float64{
		"demand":           totalDemand,
		"periodical costs": totals.PeriodicalCost,
		"variable costs":   totals.VariableCost,
		"constraint costs": totals.ConstraintCost,
	} {
		if !finite(v) {
			return nil, fmt.Errorf("total %s is %v: %w", name, v, ErrNonFinite)
		}
	}

	return &Result{
		Summary: acc.Summary(),
		Totals:  totals,
		Report:  acc.Report(),
		Demand:  totalDemand,
	}, nil
}

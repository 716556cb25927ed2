package results

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
)

// slot suffixes of the flow report columns
const (
	suffixInput1   = "_input1"
	suffixInput2   = "_input2"
	suffixOutput1  = "_output1"
	suffixOutput2  = "_output2"
	suffixCapacity = "_capacity"
)

// Round rounds half away from zero to two decimals. Infinities and NaN
// are returned unchanged.
func Round(v float64) float64 {
	if !finite(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func finite(v float64) bool {
	return !math.IsInf(v, 0) && !math.IsNaN(v)
}

func sum(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return floats.Sum(series)
}

func peak(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	return floats.Max(series)
}

// Accumulator folds component records into the summary table, the flow
// report and the running cost totals.
type Accumulator struct {
	summary []SummaryRow
	report  FlowReport
	totals  Totals
}

// NewAccumulator returns an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Accumulate appends the record's non-zero series to the flow report and
// one row to the summary table, and adds its costs to the totals.
func (a *Accumulator) Accumulate(label string, r Record) {
	slots := []struct {
		suffix string
		series []float64
	}{
		{suffixInput1, r.Input1},
		{suffixInput2, r.Input2},
		{suffixOutput1, r.Output1},
		{suffixOutput2, r.Output2},
		{suffixCapacity, r.Capacity.Series},
	}
	for _, s := range slots {
		if s.series == nil || sum(s.series) == 0 {
			continue
		}
		a.report.Columns = append(a.report.Columns, Column{
			Name:   label + s.suffix,
			Values: append([]float64(nil), s.series...),
		})
	}

	capacity := r.Capacity.Scalar
	if r.Capacity.IsSeries() {
		capacity = peak(r.Capacity.Series)
	}
	maxInvest := NoMaxInvestment
	if r.MaxInvestment != nil && finite(*r.MaxInvestment) {
		maxInvest = decimal.NewFromFloat(*r.MaxInvestment).Round(2).String()
	}
	a.summary = append(a.summary, SummaryRow{
		ID:             label,
		Type:           r.Type,
		Input1:         Round(sum(r.Input1)),
		Input2:         Round(sum(r.Input2)),
		Output1:        Round(sum(r.Output1)),
		Output2:        Round(sum(r.Output2)),
		Capacity:       Round(capacity),
		VariableCost:   Round(r.VariableCost),
		PeriodicalCost: Round(r.PeriodicalCost),
		Investment:     Round(r.Investment),
		MaxInvestment:  maxInvest,
		ConstraintCost: Round(r.ConstraintCost),
	})

	a.totals.PeriodicalCost += r.PeriodicalCost
	a.totals.VariableCost += r.VariableCost
	a.totals.ConstraintCost += r.ConstraintCost
}

// Summary returns the summary rows in accumulation order.
func (a *Accumulator) Summary() []SummaryRow { return a.summary }

// Report returns the flow report.
func (a *Accumulator) Report() FlowReport { return a.report }

// Totals returns the running cost totals.
func (a *Accumulator) Totals() Totals { return a.totals }

// checkHorizon verifies that every series of r has the given length.
func checkHorizon(label string, r Record, horizon int) error {
	slots := []struct {
		name   string
		series []float64
	}{
		{"input 1", r.Input1},
		{"input 2", r.Input2},
		{"output 1", r.Output1},
		{"output 2", r.Output2},
		{"capacity", r.Capacity.Series},
	}
	for _, s := range slots {
		if s.series == nil || len(s.series) == horizon {
			continue
		}
		return fmt.Errorf("%s %s has %d values, want %d: %w", label, s.name, len(s.series), horizon, ErrHorizonMismatch)
	}
	return nil
}

// checkFinite verifies that every value the summary row is built from is
// finite.
func checkFinite(label string, r Record) error {
	values := []struct {
		name  string
		value float64
	}{
		{"input 1", sum(r.Input1)},
		{"input 2", sum(r.Input2)},
		{"output 1", sum(r.Output1)},
		{"output 2", sum(r.Output2)},
		{"capacity", r.Capacity.Scalar},
		{"variable costs", r.VariableCost},
		{"periodical costs", r.PeriodicalCost},
		{"investment", r.Investment},
		{"constraint costs", r.ConstraintCost},
	}
	if r.MaxInvestment != nil {
		values = append(values, struct {
			name  string
			value float64
		}{"max investment", *r.MaxInvestment})
	}
	for _, v := range values {
		if !finite(v.value) {
			return fmt.Errorf("%s %s is %v: %w", label, v.name, v.value, ErrNonFinite)
		}
	}
	return nil
}

package results

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
)

// ErrHorizonMismatch is returned when a series does not cover the
// optimisation horizon.
var ErrHorizonMismatch = errors.New("series length does not match horizon")

// ErrNonFinite is returned when a sum or cost overflows to an infinity.
var ErrNonFinite = errors.New("value is not finite")

// SummaryColumns is the fixed header of the summary table.
var SummaryColumns = []string{
	"ID",
	"type",
	"input 1/kWh",
	"input 2/kWh",
	"output 1/kWh",
	"output 2/kWh",
	"capacity/kW",
	"variable costs/CU",
	"periodical costs/CU",
	"investment/kW",
	"max. invest./kW",
	"constraints/CU",
}

// NoMaxInvestment is reported when a component has no investment bound.
const NoMaxInvestment = "---"

// Capacity holds either a scalar or a series. Null and non-numeric values
// decode to a zero scalar.
type Capacity struct {
	Scalar float64
	Series []float64
}

// IsSeries reports whether the capacity is a time series.
func (c Capacity) IsSeries() bool { return c.Series != nil }

// ScalarCapacity builds a fixed capacity.
func ScalarCapacity(v float64) Capacity { return Capacity{Scalar: v} }

// SeriesCapacity builds a capacity series.
func SeriesCapacity(values ...float64) Capacity {
	if values == nil {
		values = []float64{}
	}
	return Capacity{Series: values}
}

func (c *Capacity) UnmarshalJSON(data []byte) error {
	*c = Capacity{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '[' {
		var series []float64
		if err := json.Unmarshal(data, &series); err == nil {
			c.Series = series
			if c.Series == nil {
				c.Series = []float64{}
			}
		}
		return nil
	}
	var scalar float64
	if err := json.Unmarshal(data, &scalar); err == nil {
		c.Scalar = scalar
	}
	return nil
}

func (c Capacity) MarshalJSON() ([]byte, error) {
	if c.IsSeries() {
		return json.Marshal(c.Series)
	}
	return json.Marshal(c.Scalar)
}

// Record is the flow and cost result of one energy system component.
type Record struct {
	Input1         []float64 `json:"input_1"`
	Input2         []float64 `json:"input_2"`
	Output1        []float64 `json:"output_1"`
	Output2        []float64 `json:"output_2"`
	Capacity       Capacity  `json:"capacity"`
	PeriodicalCost float64   `json:"periodical_costs"`
	Investment     float64   `json:"investment"`
	MaxInvestment  *float64  `json:"max_investment,omitempty"`
	ConstraintCost float64   `json:"constraint_costs"`
	VariableCost   float64   `json:"variable_costs"`
	Type           string    `json:"type"`
}

// Component pairs a label with its record.
type Component struct {
	Label  string `json:"label"`
	Record Record `json:"record"`
}

// Context carries the model information result preparation depends on.
type Context struct {
	// SourceLabels are the labels of the active sources.
	SourceLabels []string `json:"source_labels"`
	// Horizon, when positive, is the required length of every series.
	Horizon int `json:"horizon,omitempty"`
	// Logger receives warnings about unmatched collectors. Nil uses
	// slog.Default.
	Logger *slog.Logger `json:"-"`
}

// SummaryRow is one line of the summary table.
type SummaryRow struct {
	ID             string  `json:"id"`
	Type           string  `json:"type"`
	Input1         float64 `json:"input_1"`
	Input2         float64 `json:"input_2"`
	Output1        float64 `json:"output_1"`
	Output2        float64 `json:"output_2"`
	Capacity       float64 `json:"capacity"`
	VariableCost   float64 `json:"variable_costs"`
	PeriodicalCost float64 `json:"periodical_costs"`
	Investment     float64 `json:"investment"`
	MaxInvestment  string  `json:"max_investment"`
	ConstraintCost float64 `json:"constraint_costs"`
}

// Column is one retained series of the flow report.
type Column struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

// FlowReport is the wide table of retained series, in insertion order.
type FlowReport struct {
	Columns []Column `json:"columns"`
}

// Column returns the named column.
func (r FlowReport) Column(name string) (Column, bool) {
	for _, c := range r.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Rows returns the length of the longest column.
func (r FlowReport) Rows() int {
	n := 0
	for _, c := range r.Columns {
		if len(c.Values) > n {
			n = len(c.Values)
		}
	}
	return n
}

// Totals are the cost sums across all processed components.
type Totals struct {
	PeriodicalCost float64 `json:"periodical_costs"`
	VariableCost   float64 `json:"variable_costs"`
	ConstraintCost float64 `json:"constraint_costs"`
}

// Result is the output of PrepareData.
type Result struct {
	Summary []SummaryRow `json:"summary"`
	Totals  Totals       `json:"totals"`
	Report  FlowReport   `json:"report"`
	Demand  float64      `json:"demand"`
}

package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/rmax-ai/thermonet/pkg/engine"
	"github.com/rmax-ai/thermonet/pkg/montecarlo"
	"github.com/rmax-ai/thermonet/pkg/results"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	numberStyle = cellStyle.Align(lipgloss.Right)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("63"))
)

// newTable renders the first numericFrom columns left aligned and the rest
// right aligned.
func newTable(numericFrom int, headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col >= numericFrom:
				return numberStyle
			default:
				return cellStyle
			}
		})
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func clusterTable(out *engine.ClusterOutcome) string {
	r := out.Report
	t := newTable(1, "metric", "value")
	t.Row("run", out.Run.RunID)
	t.Row("reused", strconv.FormatBool(out.Cached))
	t.Row("active streets", strconv.Itoa(r.ActiveStreets))
	t.Row("consumers folded", strconv.Itoa(r.ConsumersFolded))
	t.Row("synthetic consumers", strconv.Itoa(len(r.SyntheticConsumers)))
	t.Row("pipes cleared", strconv.Itoa(r.PipesCleared))
	t.Row("forks cleared", strconv.Itoa(r.ForksCleared))
	t.Row("consumers cleared", strconv.Itoa(r.ConsumersCleared))
	t.Row("intersection forks", strconv.Itoa(r.IntersectionForks))
	t.Row("supply pipes", strconv.Itoa(r.SupplyPipes))
	t.Row("forks", strconv.Itoa(len(out.Topology.Forks)))
	t.Row("consumers", strconv.Itoa(len(out.Topology.Consumers)))
	t.Row("pipes", strconv.Itoa(len(out.Topology.Pipes)))
	t.Row("connections", strconv.Itoa(len(out.Connections)))
	return t.String()
}

func summaryTable(res *results.Result) string {
	t := newTable(2, "id", "type", "input 1", "output 1", "capacity", "variable", "periodical", "constraint")
	for _, row := range res.Summary {
		t.Row(row.ID, row.Type, num(row.Input1), num(row.Output1), num(row.Capacity),
			num(row.VariableCost), num(row.PeriodicalCost), num(row.ConstraintCost))
	}
	totals := newTable(1, "total", "value")
	totals.Row("demand", num(res.Demand))
	totals.Row("variable costs", num(res.Totals.VariableCost))
	totals.Row("periodical costs", num(res.Totals.PeriodicalCost))
	totals.Row("constraint costs", num(res.Totals.ConstraintCost))
	return fmt.Sprintf("%s\n%s", t, totals)
}

func variationTable(vs []montecarlo.Variation) string {
	t := newTable(0, "run", "connected buildings", "active streets")
	for _, v := range vs {
		active := 0
		for _, s := range v.Definition.Streets {
			if s.Active {
				active++
			}
		}
		t.Row(strconv.Itoa(v.Run), strconv.Itoa(v.ConnectedBuildings), strconv.Itoa(active))
	}
	return t.String()
}

package results

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// SummaryRecord renders a row in SummaryColumns order.
func (r SummaryRow) SummaryRecord() []string {
	return []string{
		r.ID,
		r.Type,
		formatFloat(r.Input1),
		formatFloat(r.Input2),
		formatFloat(r.Output1),
		formatFloat(r.Output2),
		formatFloat(r.Capacity),
		formatFloat(r.VariableCost),
		formatFloat(r.PeriodicalCost),
		formatFloat(r.Investment),
		r.MaxInvestment,
		formatFloat(r.ConstraintCost),
	}
}

// WriteSummaryCSV writes the summary table with its fixed header.
func WriteSummaryCSV(w io.Writer, rows []SummaryRow) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(SummaryColumns); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for _, r := range rows {
		if err := writer.Write(r.SummaryRecord()); err != nil {
			return fmt.Errorf("failed to write row %s: %w", r.ID, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return nil
}

// WriteReportCSV writes the flow report, one column per series and one
// row per time step. Shorter columns leave trailing cells empty.
func WriteReportCSV(w io.Writer, report FlowReport) error {
	writer := csv.NewWriter(w)
	headers := make([]string, len(report.Columns))
	for i, c := range report.Columns {
		headers[i] = c.Name
	}
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}
	for step := 0; step < report.Rows(); step++ {
		row := make([]string, len(report.Columns))
		for i, c := range report.Columns {
			if step < len(c.Values) {
				row[i] = formatFloat(c.Values[step])
			}
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", step, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return nil
}

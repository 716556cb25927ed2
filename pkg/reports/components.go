package reports

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/rmax-ai/thermonet/pkg/results"
)

// ComponentsReport renders the summary table of a result run.
type ComponentsReport struct {
	store ReportStore
}

// NewComponentsReport creates a new ComponentsReport generator.
func NewComponentsReport(s ReportStore) *ComponentsReport {
	return &ComponentsReport{store: s}
}

// Generate writes the summary rows of params.RunID. The "type" filter
// restricts rows to one component type.
func (r *ComponentsReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	if params.RunID == "" {
		return nil, fmt.Errorf("components report requires a run id")
	}
	rows, err := r.store.GetSummary(ctx, params.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to load summary: %w", err)
	}

	if typ, ok := params.Filters["type"].(string); ok && typ != "" {
		filtered := rows[:0:0]
		for _, row := range rows {
			if row.Type == typ {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	buf := &bytes.Buffer{}
	if err := results.WriteSummaryCSV(buf, rows); err != nil {
		return nil, err
	}
	return buf, nil
}

// FlowsReport renders the flow report of a result run.
type FlowsReport struct {
	store ReportStore
}

// NewFlowsReport creates a new FlowsReport generator.
func NewFlowsReport(s ReportStore) *FlowsReport {
	return &FlowsReport{store: s}
}

// Generate writes the flow columns of params.RunID.
func (r *FlowsReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	if params.RunID == "" {
		return nil, fmt.Errorf("flows report requires a run id")
	}
	report, err := r.store.GetFlowReport(ctx, params.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to load flow report: %w", err)
	}

	buf := &bytes.Buffer{}
	if err := results.WriteReportCSV(buf, report); err != nil {
		return nil, err
	}
	return buf, nil
}

package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/rmax-ai/thermonet/pkg/store"
)

// RunsReport lists the persisted runs within a time window.
type RunsReport struct {
	store ReportStore
}

// NewRunsReport creates a new RunsReport generator.
func NewRunsReport(s ReportStore) *RunsReport {
	return &RunsReport{store: s}
}

// Generate writes one row per run created in [Start, End]. The "kind"
// filter restricts rows to cluster or results runs.
func (r *RunsReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	filter := store.RunFilter{Since: params.Start}
	if kind, ok := params.Filters["kind"].(string); ok {
		filter.Kind = store.RunKind(kind)
	}

	runs, err := r.store.ListRuns(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	headers := []string{"created_at", "run_id", "kind", "name", "input_hash"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	for _, run := range runs {
		if !params.End.IsZero() && run.CreatedAt.After(params.End) {
			continue
		}
		row := []string{
			run.CreatedAt.Format(time.RFC3339),
			run.RunID,
			string(run.Kind),
			run.Name,
			run.InputHash,
		}
		if err := writer.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write row: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush writer: %w", err)
	}

	return buf, nil
}

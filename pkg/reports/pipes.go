package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// PipesReport lists the pipes of a clustered network.
type PipesReport struct {
	store ReportStore
}

// NewPipesReport creates a new PipesReport generator.
func NewPipesReport(s ReportStore) *PipesReport {
	return &PipesReport{store: s}
}

// Generate writes one row per pipe of the cluster run params.RunID. The
// "street" filter restricts rows to one street section.
func (r *PipesReport) Generate(ctx context.Context, params ReportParams) (io.Reader, error) {
	if params.RunID == "" {
		return nil, fmt.Errorf("pipes report requires a run id")
	}
	snap, err := r.store.GetTopology(ctx, params.RunID)
	if err != nil {
		return nil, fmt.Errorf("failed to load topology: %w", err)
	}
	street, _ := params.Filters["street"].(string)

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	headers := []string{"id", "from_node", "to_node", "length", "street"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write headers: %w", err)
	}

	for _, p := range snap.Pipes {
		if street != "" && p.Street != street {
			continue
		}
		row := []string{
			p.Ref(),
			p.From,
			p.To,
			strconv.FormatFloat(p.Length, 'f', 2, 64),
			p.Street,
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

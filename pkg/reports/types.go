package reports

import (
	"context"
	"io"
	"time"

	"github.com/rmax-ai/thermonet/pkg/network"
	"github.com/rmax-ai/thermonet/pkg/results"
	"github.com/rmax-ai/thermonet/pkg/store"
)

type ReportType string

const (
	ReportTypeComponents ReportType = "components"
	ReportTypeFlows      ReportType = "flows"
	ReportTypePipes      ReportType = "pipes"
	ReportTypeRuns       ReportType = "runs"
)

type ReportParams struct {
	RunID   string
	Start   time.Time
	End     time.Time
	Filters map[string]interface{}
}

// ReportStore defines the interface for data access required by reports.
type ReportStore interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]store.Run, error)
	GetTopology(ctx context.Context, runID string) (network.Snapshot, error)
	GetSummary(ctx context.Context, runID string) ([]results.SummaryRow, error)
	GetFlowReport(ctx context.Context, runID string) (results.FlowReport, error)
}

type Generator interface {
	Generate(ctx context.Context, params ReportParams) (io.Reader, error)
}

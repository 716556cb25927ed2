package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rmax-ai/thermonet/pkg/network"
	"github.com/rmax-ai/thermonet/pkg/results"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// RunKind distinguishes what a run produced.
type RunKind string

const (
	RunKindCluster RunKind = "cluster"
	RunKindResults RunKind = "results"
)

// Run is the envelope of one persisted pipeline invocation.
type Run struct {
	RunID     string          `json:"run_id"`
	Kind      RunKind         `json:"kind"`
	Name      string          `json:"name"`
	InputHash string          `json:"input_hash,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Report    json.RawMessage `json:"report,omitempty"`
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	Kind  RunKind
	Since time.Time
	Limit int
}

// ResultTables are the persisted outputs of a result run.
type ResultTables struct {
	Totals results.Totals `json:"totals"`
	Demand float64        `json:"demand"`
}

// RunReader is the read side used by report generators and the API.
type RunReader interface {
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
	GetTopology(ctx context.Context, runID string) (network.Snapshot, error)
	GetSummary(ctx context.Context, runID string) ([]results.SummaryRow, error)
	GetFlowReport(ctx context.Context, runID string) (results.FlowReport, error)
	GetTotals(ctx context.Context, runID string) (ResultTables, error)
}

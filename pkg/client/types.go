package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rmax-ai/thermonet/pkg/cluster"
	"github.com/rmax-ai/thermonet/pkg/linkplan"
	"github.com/rmax-ai/thermonet/pkg/model"
	"github.com/rmax-ai/thermonet/pkg/network"
	"github.com/rmax-ai/thermonet/pkg/results"
)

// ClusterRequest asks the daemon to cluster a network.
type ClusterRequest struct {
	// Name labels the run; defaults to the definition name.
	Name string `json:"name,omitempty"`
	// Definition provides streets, producer buses and pipe types.
	Definition *model.Definition `json:"definition"`
	// Network is the unclustered network.
	Network network.Snapshot `json:"network"`
}

// ClusterResponse is the clustered network and its run.
type ClusterResponse struct {
	Run         Run                   `json:"run"`
	Report      cluster.Report        `json:"report"`
	Topology    network.Snapshot      `json:"topology"`
	Connections []linkplan.Connection `json:"connections,omitempty"`
	// Cached is true when an earlier run of the same input was returned.
	Cached bool `json:"cached"`
}

// ResultsRequest asks the daemon to prepare optimisation results.
type ResultsRequest struct {
	Name        string              `json:"name,omitempty"`
	Components  []results.Component `json:"components"`
	TotalDemand float64             `json:"total_demand"`
	Context     results.Context     `json:"context"`
}

// ResultsResponse is the prepared result tables and their run.
type ResultsResponse struct {
	Run    Run             `json:"run"`
	Result *results.Result `json:"result"`
}

// Run is a persisted pipeline invocation.
type Run struct {
	RunID     string          `json:"run_id"`
	Kind      string          `json:"kind"`
	Name      string          `json:"name"`
	InputHash string          `json:"input_hash,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Report    json.RawMessage `json:"report,omitempty"`
}

// RunsOptions filters ListRuns.
type RunsOptions struct {
	Kind  string
	Since time.Time
	Limit int
}

// ReportOptions selects a CSV report.
type ReportOptions struct {
	Type          string
	RunID         string
	From          time.Time
	To            time.Time
	ComponentType string
	Street        string
	Kind          string
}

// Status represents the health check response.
type Status struct {
	Status string `json:"status"`
}

// APIError is a non-2xx answer of the daemon.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Details    string `json:"details,omitempty"`
	// RetryAfter is the pause the daemon asked for, if any.
	RetryAfter time.Duration `json:"-"`
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("thermonet api: %d %s: %s", e.StatusCode, e.Code, e.Details)
	}
	return fmt.Sprintf("thermonet api: %d %s", e.StatusCode, e.Code)
}

// Temporary reports whether retrying may succeed.
func (e *APIError) Temporary() bool {
	return retryable(e.StatusCode)
}

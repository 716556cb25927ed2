package api

import (
	"github.com/rmax-ai/thermonet/pkg/engine"
	"github.com/rmax-ai/thermonet/pkg/store"
)

// ClusterRequest matches the POST /v1/cluster body schema
type ClusterRequest = engine.ClusterRequest

// ClusterResponse matches the response for POST /v1/cluster
type ClusterResponse = engine.ClusterOutcome

// ResultsRequest matches the POST /v1/results body schema
type ResultsRequest = engine.ResultsRequest

// ResultsResponse matches the response for POST /v1/results
type ResultsResponse = engine.ResultsOutcome

// RunsResponse matches the response for GET /v1/runs
type RunsResponse struct {
	Runs []store.Run `json:"runs"`
}

// PruneRequest matches the POST /v1/admin/prune body schema
type PruneRequest struct {
	Retention string `json:"retention"` // e.g., "720h"
}

// PruneResponse matches the response for POST /v1/admin/prune
type PruneResponse struct {
	Status        string `json:"status"`
	PrunedCount   int64  `json:"pruned_count"`
	RetentionUsed string `json:"retention_used"`
}

// ErrorResponse is the body of every non-2xx JSON response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

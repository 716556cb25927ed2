package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rmax-ai/thermonet/pkg/artifact"
	"github.com/rmax-ai/thermonet/pkg/cluster"
	"github.com/rmax-ai/thermonet/pkg/linkplan"
	"github.com/rmax-ai/thermonet/pkg/model"
	"github.com/rmax-ai/thermonet/pkg/network"
	"github.com/rmax-ai/thermonet/pkg/results"
	"github.com/rmax-ai/thermonet/pkg/store"
	"github.com/rmax-ai/thermonet/pkg/store/redis"
)

// ErrInvalidRequest is returned for requests the pipelines cannot run.
var ErrInvalidRequest = errors.New("invalid request")

// RunStore is the persistence the engine writes runs to.
type RunStore interface {
	SaveClusterRun(ctx context.Context, run store.Run, snap network.Snapshot) error
	SaveResultRun(ctx context.Context, run store.Run, res *results.Result) error
	GetRun(ctx context.Context, runID string) (*store.Run, error)
	FindRunByInput(ctx context.Context, kind store.RunKind, hash string) (*store.Run, error)
	GetTopology(ctx context.Context, runID string) (network.Snapshot, error)
}

// TopologyCache keeps clustered networks by input hash.
type TopologyCache interface {
	Get(ctx context.Context, hash string) (redis.CachedTopology, bool, error)
	Set(ctx context.Context, hash string, t redis.CachedTopology) error
}

// ClusterRequest is one clustering job: a model definition with its street
// table and the unclustered network to fold.
type ClusterRequest struct {
	Name       string            `json:"name"`
	Definition *model.Definition `json:"definition"`
	Network    network.Snapshot  `json:"network"`
}

// ClusterOutcome is the answer to a ClusterRequest.
type ClusterOutcome struct {
	Run         store.Run             `json:"run"`
	Report      cluster.Report        `json:"report"`
	Topology    network.Snapshot      `json:"topology"`
	Connections []linkplan.Connection `json:"connections,omitempty"`
	Cached      bool                  `json:"cached"`
}

// ResultsRequest is one result preparation job.
type ResultsRequest struct {
	Name        string              `json:"name"`
	Components  []results.Component `json:"components"`
	TotalDemand float64             `json:"total_demand"`
	Context     results.Context     `json:"context"`
}

// ResultsOutcome is the answer to a ResultsRequest.
type ResultsOutcome struct {
	Run    store.Run       `json:"run"`
	Result *results.Result `json:"result"`
}

// Options configure an Engine. Cache and Artifacts are optional.
type Options struct {
	Cache     TopologyCache
	Artifacts artifact.Store
	Logger    *slog.Logger
	// NewID generates run ids; defaults to random UUIDs.
	NewID func() string
	// Progress is handed to every Clusterer.
	Progress func(street string)
}

// Engine runs the clustering and result pipelines and persists their
// outputs.
type Engine struct {
	store     RunStore
	cache     TopologyCache
	artifacts artifact.Store
	logger    *slog.Logger
	newID     func() string
	progress  func(string)
}

// New creates an Engine writing to st.
func New(st RunStore, opts Options) *Engine {
	e := &Engine{
		store:     st,
		cache:     opts.Cache,
		artifacts: opts.Artifacts,
		logger:    opts.Logger,
		newID:     opts.NewID,
		progress:  opts.Progress,
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.newID == nil {
		e.newID = func() string { return uuid.New().String() }
	}
	return e
}

// ClusterInputHash identifies a clustering input independently of run
// names.
func ClusterInputHash(def *model.Definition, snap network.Snapshot) (string, error) {
	defJSON, err := json.Marshal(def)
	if err != nil {
		return "", fmt.Errorf("failed to marshal definition: %w", err)
	}
	netJSON, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("failed to marshal network: %w", err)
	}
	return redis.InputHash(defJSON, netJSON), nil
}

// Cluster clusters the request network. A network already clustered from
// the same input is served from the cache or the store instead.
func (e *Engine) Cluster(ctx context.Context, req ClusterRequest) (*ClusterOutcome, error) {
	if req.Definition == nil {
		return nil, fmt.Errorf("%w: missing definition", ErrInvalidRequest)
	}
	hash, err := ClusterInputHash(req.Definition, req.Network)
	if err != nil {
		return nil, err
	}

	if out, ok := e.lookup(ctx, req.Definition, hash); ok {
		ThermonetRunsTotal.WithLabelValues(string(store.RunKindCluster), "cached").Inc()
		return out, nil
	}

	out, err := e.cluster(ctx, req, hash)
	if err != nil {
		ThermonetRunsTotal.WithLabelValues(string(store.RunKindCluster), "failed").Inc()
		return nil, err
	}
	ThermonetRunsTotal.WithLabelValues(string(store.RunKindCluster), "ok").Inc()
	return out, nil
}

func (e *Engine) lookup(ctx context.Context, def *model.Definition, hash string) (*ClusterOutcome, bool) {
	var (
		run  *store.Run
		snap network.Snapshot
		err  error
	)

	if e.cache != nil {
		cached, ok, cerr := e.cache.Get(ctx, hash)
		if cerr != nil {
			e.logger.Warn("topology cache lookup failed", "error", cerr)
		}
		if ok {
			run, err = e.store.GetRun(ctx, cached.RunID)
			if err == nil {
				ThermonetCacheLookups.WithLabelValues("cache").Inc()
				snap = cached.Snapshot
			}
		}
	}

	if run == nil {
		run, err = e.store.FindRunByInput(ctx, store.RunKindCluster, hash)
		if err != nil {
			if !errors.Is(err, store.ErrRunNotFound) {
				e.logger.Warn("run lookup failed", "error", err)
			}
			ThermonetCacheLookups.WithLabelValues("miss").Inc()
			return nil, false
		}
		snap, err = e.store.GetTopology(ctx, run.RunID)
		if err != nil {
			e.logger.Warn("stored topology unreadable", "run_id", run.RunID, "error", err)
			return nil, false
		}
		ThermonetCacheLookups.WithLabelValues("store").Inc()
		e.remember(ctx, hash, run.RunID, snap)
	}

	out := &ClusterOutcome{Run: *run, Topology: snap, Cached: true}
	if len(run.Report) > 0 {
		if err := json.Unmarshal(run.Report, &out.Report); err != nil {
			e.logger.Warn("stored report unreadable", "run_id", run.RunID, "error", err)
		}
	}
	if len(def.PipeTypes) > 0 {
		conns, err := linkplan.Build(network.FromSnapshot(snap), def)
		if err != nil {
			e.logger.Warn("connection plan failed", "run_id", run.RunID, "error", err)
		}
		out.Connections = conns
	}
	e.logger.Debug("clustered network reused", "run_id", run.RunID, "input_hash", hash)
	return out, true
}

func (e *Engine) remember(ctx context.Context, hash, runID string, snap network.Snapshot) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Set(ctx, hash, redis.CachedTopology{RunID: runID, Snapshot: snap}); err != nil {
		e.logger.Warn("topology cache write failed", "run_id", runID, "error", err)
	}
}

func (e *Engine) cluster(ctx context.Context, req ClusterRequest, hash string) (*ClusterOutcome, error) {
	def := req.Definition
	net := network.FromSnapshot(req.Network)
	if err := net.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	c := cluster.New(net, def.Sections(), def.ProducerSites(), cluster.Options{
		Logger:   e.logger,
		Progress: e.progress,
	})
	report, err := c.Run()
	if err != nil {
		return nil, fmt.Errorf("clustering failed: %w", err)
	}

	var conns []linkplan.Connection
	if len(def.PipeTypes) > 0 {
		conns, err = linkplan.Build(net, def)
		if err != nil {
			return nil, fmt.Errorf("connection plan failed: %w", err)
		}
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	name := req.Name
	if name == "" {
		name = def.Name
	}
	run := store.Run{
		RunID:     e.newID(),
		Kind:      store.RunKindCluster,
		Name:      name,
		InputHash: hash,
		CreatedAt: time.Now().UTC(),
		Report:    reportJSON,
	}
	snap := net.Snapshot()
	if err := e.store.SaveClusterRun(ctx, run, snap); err != nil {
		return nil, err
	}
	e.remember(ctx, hash, run.RunID, snap)

	if e.artifacts != nil {
		e.export(ctx, run.RunID, map[string]any{
			"topology.json":    snap,
			"network.geojson":  net.GeoJSON(),
			"connections.json": conns,
		})
	}

	e.logger.Info("cluster run stored", "run_id", run.RunID, "name", name,
		"consumers", len(snap.Consumers), "pipes", len(snap.Pipes))
	return &ClusterOutcome{Run: run, Report: report, Topology: snap, Connections: conns}, nil
}

// Results prepares the result tables of an optimisation and stores them.
func (e *Engine) Results(ctx context.Context, req ResultsRequest) (*ResultsOutcome, error) {
	if len(req.Components) == 0 {
		return nil, fmt.Errorf("%w: no components", ErrInvalidRequest)
	}
	rc := req.Context
	if rc.Logger == nil {
		rc.Logger = e.logger
	}
	res, err := results.PrepareData(req.Components, req.TotalDemand, rc)
	if err != nil {
		ThermonetRunsTotal.WithLabelValues(string(store.RunKindResults), "failed").Inc()
		if errors.Is(err, results.ErrHorizonMismatch) || errors.Is(err, results.ErrNonFinite) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, err
	}

	run := store.Run{
		RunID:     e.newID(),
		Kind:      store.RunKindResults,
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.SaveResultRun(ctx, run, res); err != nil {
		ThermonetRunsTotal.WithLabelValues(string(store.RunKindResults), "failed").Inc()
		return nil, err
	}
	ThermonetRunsTotal.WithLabelValues(string(store.RunKindResults), "ok").Inc()

	if e.artifacts != nil {
		var summary, report bytes.Buffer
		if err := results.WriteSummaryCSV(&summary, res.Summary); err != nil {
			e.logger.Warn("summary export failed", "run_id", run.RunID, "error", err)
		} else if err := e.artifacts.Put(ctx, artifact.RunKey(run.RunID, "summary.csv"), &summary); err != nil {
			e.logger.Warn("summary export failed", "run_id", run.RunID, "error", err)
		}
		if err := results.WriteReportCSV(&report, res.Report); err != nil {
			e.logger.Warn("report export failed", "run_id", run.RunID, "error", err)
		} else if err := e.artifacts.Put(ctx, artifact.RunKey(run.RunID, "report.csv"), &report); err != nil {
			e.logger.Warn("report export failed", "run_id", run.RunID, "error", err)
		}
	}

	e.logger.Info("result run stored", "run_id", run.RunID, "components", len(res.Summary),
		"demand", res.Demand)
	return &ResultsOutcome{Run: run, Result: res}, nil
}

func (e *Engine) export(ctx context.Context, runID string, files map[string]any) {
	for name, v := range files {
		if err := artifact.PutJSON(ctx, e.artifacts, artifact.RunKey(runID, name), v); err != nil {
			e.logger.Warn("artifact export failed", "run_id", runID, "artifact", name, "error", err)
		}
	}
}

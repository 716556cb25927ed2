package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rmax-ai/thermonet/pkg/engine"
	"github.com/rmax-ai/thermonet/pkg/model"
	"github.com/rmax-ai/thermonet/pkg/reports"
	"github.com/rmax-ai/thermonet/pkg/store"
)

// Context keys
type contextKey string

const traceIDKey contextKey = "trace_id"

// maxBodyBytes bounds request bodies; networks of a few thousand houses fit
// comfortably.
const maxBodyBytes = 32 << 20

// Interfaces for dependencies to enable mocking

// StoreInterface is the read side of the run store.
type StoreInterface interface {
	reports.ReportStore
	GetRun(ctx context.Context, runID string) (*store.Run, error)
	PruneRuns(ctx context.Context, cutoff time.Time) (int64, error)
}

// PipelineInterface runs the clustering and result pipelines.
type PipelineInterface interface {
	Cluster(ctx context.Context, req engine.ClusterRequest) (*engine.ClusterOutcome, error)
	Results(ctx context.Context, req engine.ResultsRequest) (*engine.ResultsOutcome, error)
}

// Server encapsulates the HTTP API server
type Server struct {
	store    StoreInterface
	pipeline PipelineInterface
	server   *http.Server
	handler  http.Handler
	now      func() time.Time
}

// NewServer creates a new API server instance
func NewServer(st StoreInterface, pipeline PipelineInterface, addr string) *Server {
	mux := http.NewServeMux()

	// Register routes
	mux.HandleFunc("/v1/health", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s := &Server{
		store:    st,
		pipeline: pipeline,
		now:      time.Now,
	}

	mux.HandleFunc("/v1/cluster", s.handleCluster)
	mux.HandleFunc("/v1/results", s.handleResults)
	mux.HandleFunc("/v1/runs", s.handleRuns)
	mux.HandleFunc("/v1/runs/", s.handleRun)
	mux.HandleFunc("/v1/reports", s.handleReports)
	mux.HandleFunc("/v1/admin/prune", s.handlePrune)

	// Middleware: Logging, Panic Recovery, Security Headers
	s.handler = withLogging(withRecovery(withSecureHeaders(mux)))

	// Use default port if addr is empty
	if addr == "" {
		addr = ":8090"
	}

	// clustering a large network takes longer than a plain read
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  15 * time.Second,
	}

	return s
}

// Handler returns the fully wrapped request handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start runs the HTTP server (blocking)
func (s *Server) Start() error {
	fmt.Printf(`{"level":"info","msg":"server_starting","addr":"%s"}`+"\n", s.server.Addr)
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop(ctx context.Context) error {
	fmt.Println(`{"level":"info","msg":"server_stopping"}`)
	return s.server.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_encode_response","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	resp := ErrorResponse{Error: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, r, status, resp)
}

// statusFor maps pipeline errors to HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrInvalidRequest), errors.Is(err, model.ErrSchema):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, store.ErrRunNotFound):
		return http.StatusNotFound, "run_not_found"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}

// handleCluster clusters a network. A network clustered before from the
// same input is answered with 200, a new run with 201.
func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req ClusterRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json_body", err)
		return
	}
	if req.Definition == nil {
		http.Error(w, `{"error":"missing_definition"}`, http.StatusBadRequest)
		return
	}
	if err := req.Definition.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_definition", err)
		return
	}

	out, err := s.pipeline.Cluster(r.Context(), req)
	if err != nil {
		status, code := statusFor(err)
		fmt.Printf(`{"level":"error","msg":"cluster_failed","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		writeError(w, r, status, code, err)
		return
	}

	status := http.StatusCreated
	if out.Cached {
		status = http.StatusOK
	}
	writeJSON(w, r, status, out)
}

// handleResults prepares and stores the result tables of an optimisation.
func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req ResultsRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_json_body", err)
		return
	}
	if req.TotalDemand < 0 {
		http.Error(w, `{"error":"invalid_total_demand"}`, http.StatusBadRequest)
		return
	}

	out, err := s.pipeline.Results(r.Context(), req)
	if err != nil {
		status, code := statusFor(err)
		fmt.Printf(`{"level":"error","msg":"results_failed","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		writeError(w, r, status, code, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, out)
}

// handleRuns lists runs newest first.
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	filter := store.RunFilter{Limit: 100}
	switch kind := store.RunKind(q.Get("kind")); kind {
	case "", store.RunKindCluster, store.RunKindResults:
		filter.Kind = kind
	default:
		http.Error(w, `{"error":"invalid_kind","allowed":"cluster,results"}`, http.StatusBadRequest)
		return
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit <= 0 {
			http.Error(w, `{"error":"invalid_limit"}`, http.StatusBadRequest)
			return
		}
		filter.Limit = limit
	}
	if sinceStr := q.Get("since"); sinceStr != "" {
		since, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			http.Error(w, `{"error":"invalid_since","format":"RFC3339"}`, http.StatusBadRequest)
			return
		}
		filter.Since = since
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_list_runs","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, http.StatusOK, RunsResponse{Runs: runs})
}

// handleRun returns one run envelope.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	runID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/runs/"), "/")
	if runID == "" || strings.Contains(runID, "/") {
		http.Error(w, `{"error":"invalid_run_id"}`, http.StatusBadRequest)
		return
	}

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		status, code := statusFor(err)
		writeError(w, r, status, code, nil)
		return
	}
	writeJSON(w, r, http.StatusOK, run)
}

// handleReports generates and streams reports.
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	// Parse parameters
	q := r.URL.Query()
	reportType := reports.ReportType(q.Get("type"))
	if reportType == "" {
		http.Error(w, `{"error":"missing_type"}`, http.StatusBadRequest)
		return
	}
	runID := q.Get("run_id")
	if runID == "" && reportType != reports.ReportTypeRuns {
		http.Error(w, `{"error":"missing_run_id"}`, http.StatusBadRequest)
		return
	}

	fromStr := q.Get("from")
	toStr := q.Get("to")

	// Default time range: last 24h if not specified
	to := s.now()
	if toStr != "" {
		var err error
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			http.Error(w, `{"error":"invalid_to","format":"RFC3339"}`, http.StatusBadRequest)
			return
		}
	}

	from := to.Add(-24 * time.Hour)
	if fromStr != "" {
		var err error
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			http.Error(w, `{"error":"invalid_from","format":"RFC3339"}`, http.StatusBadRequest)
			return
		}
	}

	// Build params
	params := reports.ReportParams{
		RunID:   runID,
		Start:   from,
		End:     to,
		Filters: make(map[string]interface{}),
	}

	// Pass through filters
	if typ := q.Get("component_type"); typ != "" {
		params.Filters["type"] = typ
	}
	if street := q.Get("street"); street != "" {
		params.Filters["street"] = street
	}
	if kind := q.Get("kind"); kind != "" {
		params.Filters["kind"] = kind
	}

	// Create generator
	gen, err := reports.NewReportGenerator(reportType, s.store)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_report_type", err)
		return
	}

	// Generate
	reader, err := gen.Generate(r.Context(), params)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			http.Error(w, `{"error":"run_not_found"}`, http.StatusNotFound)
			return
		}
		fmt.Printf(`{"level":"error","msg":"failed_to_generate_report","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		http.Error(w, `{"error":"report_generation_failed"}`, http.StatusInternalServerError)
		return
	}

	// Set headers
	w.Header().Set("Content-Type", "text/csv")
	filename := fmt.Sprintf("report_%s_%d.csv", reportType, s.now().Unix())
	if runID != "" {
		filename = fmt.Sprintf("report_%s_%s.csv", reportType, runID)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	// Stream response
	if _, err := io.Copy(w, reader); err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_stream_report","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
	}
}

// handlePrune deletes runs older than the requested retention.
func (s *Server) handlePrune(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, `{"error":"method_not_allowed"}`, http.StatusMethodNotAllowed)
		return
	}

	var req PruneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid_json_body"}`, http.StatusBadRequest)
		return
	}

	retention, err := time.ParseDuration(req.Retention)
	if err != nil || retention <= 0 {
		http.Error(w, `{"error":"invalid_retention_format","example":"720h"}`, http.StatusBadRequest)
		return
	}

	count, err := s.store.PruneRuns(r.Context(), s.now().Add(-retention))
	if err != nil {
		fmt.Printf(`{"level":"error","msg":"failed_to_prune_runs","trace_id":"%s","error":"%v"}`+"\n", getTraceID(r.Context()), err)
		writeError(w, r, http.StatusInternalServerError, "prune_failed", err)
		return
	}

	writeJSON(w, r, http.StatusOK, PruneResponse{
		Status:        "success",
		PrunedCount:   count,
		RetentionUsed: retention.String(),
	})
}

// handleHealth returns simple status
func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// Middleware: Panic Recovery
func withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				fmt.Printf(`{"level":"error","msg":"panic_recovered","error":"%v","path":"%s"}`+"\n", err, r.URL.Path)
				http.Error(w, `{"error":"internal_server_error"}`, http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Middleware: Request Logging
func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// 1. Extract or Generate Trace ID
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = generateTraceID()
		}

		// 2. Inject into Context
		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		r = r.WithContext(ctx)

		// Wrap writer to capture status code
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		// 3. Set response header
		w.Header().Set("X-Trace-ID", traceID)

		next.ServeHTTP(ww, r)

		duration := time.Since(start)
		fmt.Printf(`{"level":"info","msg":"http_request","trace_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`+"\n",
			traceID, r.Method, r.URL.Path, ww.status, duration.Milliseconds())
	})
}

func generateTraceID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

func getTraceID(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return ""
}

// statusWriter captures HTTP status code
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Middleware: Secure Headers
func withSecureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")

		next.ServeHTTP(w, r)
	})
}

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to the thermonet daemon. Requests failing in transport or
// answered with 429 or a transient 5xx are retried with backoff, honouring
// Retry-After up to the backoff ceiling.
type Client struct {
	endpoint   string
	http       *http.Client
	backoff    Backoff
	maxRetries int
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithBackoff replaces the retry pacing.
func WithBackoff(b Backoff) Option {
	return func(c *Client) { c.backoff = b }
}

// WithMaxRetries sets how often a failed request is retried. Zero disables
// retries.
func WithMaxRetries(n int) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a new thermonet client.
// endpoint defaults to "http://127.0.0.1:8090" if empty.
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = "http://127.0.0.1:8090"
	}
	c := &Client{
		endpoint: endpoint,
		http: &http.Client{
			Timeout: 60 * time.Second,
		},
		backoff:    NewBackoff(0),
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do sends the request and returns the response of the first attempt that
// is not retryable. The caller closes the body.
func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var lastErr error
	var asked time.Duration
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff.Next(attempt - 1)
			if asked > wait {
				wait = asked
			}
			if ceiling := c.ceiling(); ceiling > 0 && wait > ceiling {
				wait = ceiling
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.endpoint+path, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			asked = 0
		lastErr = fmt.Errorf("daemon unreachable: %w", err)
			continue
		}
		if resp.StatusCode < 300 {
			return resp, nil
		}

		apiErr := decodeError(resp)
		if !apiErr.Temporary() {
			return nil, apiErr
		}
		asked = apiErr.RetryAfter
		lastErr = apiErr
	}
	return nil, lastErr
}

// ceiling caps Retry-After pauses when the backoff has one.
func (c *Client) ceiling() time.Duration {
	if b, ok := c.backoff.(*JitteredBackoff); ok {
		return b.Ceiling
	}
	return 0
}

func decodeError(resp *http.Response) *APIError {
	defer resp.Body.Close()
	apiErr := &APIError{StatusCode: resp.StatusCode, RetryAfter: retryAfter(resp.Header, time.Now())}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Code == "" {
		apiErr.Code = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Ping checks the health of the daemon.
func (c *Client) Ping(ctx context.Context) (Status, error) {
	var status Status
	if err := c.doJSON(ctx, http.MethodGet, "/v1/health", nil, &status); err != nil {
		return Status{}, err
	}
	return status, nil
}

// Cluster clusters a network on the daemon.
func (c *Client) Cluster(ctx context.Context, req ClusterRequest) (*ClusterResponse, error) {
	if req.Definition == nil {
		return nil, errors.New("invalid cluster request: missing definition")
	}
	var out ClusterResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/cluster", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Results prepares optimisation results on the daemon.
func (c *Client) Results(ctx context.Context, req ResultsRequest) (*ResultsResponse, error) {
	var out ResultsResponse
	if err := c.doJSON(ctx, http.MethodPost, "/v1/results", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListRuns fetches runs newest first.
func (c *Client) ListRuns(ctx context.Context, opts RunsOptions) ([]Run, error) {
	q := url.Values{}
	if opts.Kind != "" {
		q.Set("kind", opts.Kind)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if !opts.Since.IsZero() {
		q.Set("since", opts.Since.Format(time.RFC3339))
	}
	path := "/v1/runs"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var out struct {
		Runs []Run `json:"runs"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Runs, nil
}

// GetRun fetches one run.
func (c *Client) GetRun(ctx context.Context, runID string) (*Run, error) {
	var run Run
	if err := c.doJSON(ctx, http.MethodGet, "/v1/runs/"+url.PathEscape(runID), nil, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Report downloads a CSV report.
func (c *Client) Report(ctx context.Context, opts ReportOptions) ([]byte, error) {
	q := url.Values{}
	q.Set("type", opts.Type)
	set := func(key, value string) {
		if value != "" {
			q.Set(key, value)
		}
	}
	set("run_id", opts.RunID)
	set("component_type", opts.ComponentType)
	set("street", opts.Street)
	set("kind", opts.Kind)
	if !opts.From.IsZero() {
		q.Set("from", opts.From.Format(time.RFC3339))
	}
	if !opts.To.IsZero() {
		q.Set("to", opts.To.Format(time.RFC3339))
	}

	resp, err := c.do(ctx, http.MethodGet, "/v1/reports?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read report: %w", err)
	}
	return data, nil
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rmax-ai/thermonet/pkg/client"
	"github.com/rmax-ai/thermonet/pkg/model"
	"github.com/rmax-ai/thermonet/pkg/network"
	"github.com/rmax-ai/thermonet/pkg/results"
)

// Server adapts thermonet-d to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	apiClient *client.Client
}

// NewServer creates a new MCP server instance.
func NewServer(apiURL string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"thermonet",
			"1.0.0",
		),
		apiClient: client.NewClient(apiURL),
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	// thermonet://runs
	s.mcpServer.AddResource(mcp.NewResource(
		"thermonet://runs",
		"Thermonet Runs",
		mcp.WithResourceDescription("Recent clustering and result preparation runs, newest first"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadRuns)
}

// --- Tools ---

func (s *Server) registerTools() {
	// cluster_network
	s.mcpServer.AddTool(mcp.NewTool(
		"cluster_network",
		mcp.WithDescription("Cluster the consumers of every active street into one consumer and rebuild the network. Returns the run id and a summary."),
		mcp.WithString("definition", mcp.Required(), mcp.Description("Model definition as JSON (buses, district_heating streets, pipe_types)")),
		mcp.WithString("network", mcp.Required(), mcp.Description("Unclustered network as JSON (forks, consumers, producers, pipes)")),
		mcp.WithString("name", mcp.Description("Run name (defaults to the definition name)")),
	), s.handleClusterNetwork)

	// prepare_results
	s.mcpServer.AddTool(mcp.NewTool(
		"prepare_results",
		mcp.WithDescription("Aggregate optimisation component results into the summary table, flow report and cost totals."),
		mcp.WithString("components", mcp.Required(), mcp.Description("JSON array of {label, record} component results")),
		mcp.WithNumber("total_demand", mcp.Required(), mcp.Description("Total heat demand before insulation savings")),
		mcp.WithString("source_labels", mcp.Description("Comma separated labels of the active sources")),
		mcp.WithString("name", mcp.Description("Run name")),
	), s.handlePrepareResults)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"thermonet-aware",
		mcp.WithPromptDescription("Provides context about district heating clustering concepts (Forks, Consumers, Streets)"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadRuns(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	runs, err := s.apiClient.ListRuns(ctx, client.RunsOptions{Limit: 50})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch runs: %w", err)
	}

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal runs: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleClusterNetwork(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var def model.Definition
	if err := json.Unmarshal([]byte(mcp.ParseString(request, "definition", "")), &def); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid definition: %v", err)), nil
	}
	var snap network.Snapshot
	if err := json.Unmarshal([]byte(mcp.ParseString(request, "network", "")), &snap); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid network: %v", err)), nil
	}

	resp, err := s.apiClient.Cluster(ctx, client.ClusterRequest{
		Name:       mcp.ParseString(request, "name", ""),
		Definition: &def,
		Network:    snap,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	reused := ""
	if resp.Cached {
		reused = " (reused)"
	}
	resultMsg := fmt.Sprintf("Run: %s%s\nStreets clustered: %d\nConsumers folded: %d\nConsumers: %d\nForks: %d\nPipes: %d\nConnections: %d",
		resp.Run.RunID, reused,
		len(resp.Report.SyntheticConsumers),
		resp.Report.ConsumersFolded,
		len(resp.Topology.Consumers),
		len(resp.Topology.Forks),
		len(resp.Topology.Pipes),
		len(resp.Connections))
	return mcp.NewToolResultText(resultMsg), nil
}

func (s *Server) handlePrepareResults(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var components []results.Component
	if err := json.Unmarshal([]byte(mcp.ParseString(request, "components", "")), &components); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid components: %v", err)), nil
	}

	var labels []string
	for _, l := range strings.Split(mcp.ParseString(request, "source_labels", ""), ",") {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}

	resp, err := s.apiClient.Results(ctx, client.ResultsRequest{
		Name:        mcp.ParseString(request, "name", ""),
		Components:  components,
		TotalDemand: mcp.ParseFloat64(request, "total_demand", 0),
		Context:     results.Context{SourceLabels: labels},
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API error: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run: %s\nDemand: %.2f\nPeriodical costs: %.2f\nVariable costs: %.2f\nConstraint costs: %.2f\nComponents:\n",
		resp.Run.RunID, resp.Result.Demand,
		resp.Result.Totals.PeriodicalCost, resp.Result.Totals.VariableCost, resp.Result.Totals.ConstraintCost)
	for _, row := range resp.Result.Summary {
		fmt.Fprintf(&b, "- %s (%s): output %.2f, capacity %.2f\n", row.ID, row.Type, row.Output1, row.Capacity)
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "thermonet-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := `You are working with Thermonet, a district heating network clustering tool.

Concepts:
- Fork: A junction of the pipe network, tagged with the street it lies on.
- Consumer: A building with a heat demand, fed through one or more input buses.
- Street: A section of the district heating table. Only active streets are clustered.
- Clustering: All consumers of an active street become one consumer at their centroid,
  connected to the street at its nearest point.
- Results: Optimisation outputs per component, aggregated into a summary table and cost totals.

Use 'cluster_network' to reduce a network before optimisation and 'prepare_results'
to turn solver outputs into tables. Past runs are listed in thermonet://runs.
`

	return mcp.NewGetPromptResult(
		"thermonet-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}

// Package mcp exposes itinerary synthesis and the execution monitor as MCP
// tools for operators and agent hosts.
package mcp

import (
	"context"
	"io"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/spawn-mcp/tripsynth/pkg/alerting"
	"github.com/spawn-mcp/tripsynth/pkg/monitor"
	"github.com/spawn-mcp/tripsynth/pkg/synthesis"
	"github.com/spawn-mcp/tripsynth/pkg/telemetry"
	"github.com/spawn-mcp/tripsynth/pkg/types"
)

// Synthesizer turns role outputs into an itinerary
type Synthesizer interface {
	SynthesizeOutputs(ctx context.Context, outputs ...types.RoleOutput) *types.SynthesisResult
}

// Monitor is the read and resolve side of the execution monitor
type Monitor interface {
	GetStats(category telemetry.Category, window time.Duration) (telemetry.Stats, bool)
	GetActiveAlerts() []alerting.Alert
	ResolveAlert(ctx context.Context, id string) (alerting.Alert, error)
	ExportSnapshot() monitor.Snapshot
}

// MCPServer wraps the synthesizer and monitor with MCP protocol support
type MCPServer struct {
	synthesizer Synthesizer
	monitor     Monitor
	logger      telemetry.Logger
	mcpServer   *server.MCPServer
}

// NewMCPServer creates the server and registers its tools
func NewMCPServer(synth Synthesizer, mon Monitor, logger telemetry.Logger) *MCPServer {
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	mcpServer := server.NewMCPServer(
		"TripSynth",
		synthesis.PipelineVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &MCPServer{
		synthesizer: synth,
		monitor:     mon,
		logger:      logger,
		mcpServer:   mcpServer,
	}

	s.registerTools()

	return s
}

// Server returns the underlying MCP server
func (s *MCPServer) Server() *server.MCPServer {
	return s.mcpServer
}

// Listen serves newline-delimited JSON-RPC from in to out. It returns nil
// when in is exhausted and the context error when ctx is cancelled.
func (s *MCPServer) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcpServer).Listen(ctx, in, out)
}

// registerTools registers all available MCP tools
func (s *MCPServer) registerTools() {
	synthesize := mcp.NewTool("synthesize_itinerary",
		mcp.WithDescription("Validate and merge the four role outputs into a scored itinerary"),
		mcp.WithString("architect",
			mcp.Required(),
			mcp.Description("Architect output as JSON (comments allowed)"),
		),
		mcp.WithString("gatherer",
			mcp.Required(),
			mcp.Description("Gatherer output as JSON (comments allowed)"),
		),
		mcp.WithString("specialist",
			mcp.Required(),
			mcp.Description("Specialist output as JSON (comments allowed)"),
		),
		mcp.WithString("putter",
			mcp.Required(),
			mcp.Description("Putter output as JSON (comments allowed)"),
		),
	)
	s.mcpServer.AddTool(synthesize, s.handleSynthesize)

	stats := mcp.NewTool("get_stats",
		mcp.WithDescription("Get duration and success statistics for an operation category"),
		mcp.WithString("category",
			mcp.Required(),
			mcp.Description("Operation category, e.g. synthesis, agent-call or search-query"),
		),
		mcp.WithNumber("window_seconds",
			mcp.Description("Trailing window in seconds"),
			mcp.DefaultNumber(300),
			mcp.Min(1),
		),
	)
	s.mcpServer.AddTool(stats, s.handleGetStats)

	active := mcp.NewTool("get_active_alerts",
		mcp.WithDescription("List unresolved alerts"),
	)
	s.mcpServer.AddTool(active, s.handleGetActiveAlerts)

	resolve := mcp.NewTool("resolve_alert",
		mcp.WithDescription("Mark an alert resolved"),
		mcp.WithString("alert_id",
			mcp.Required(),
			mcp.Description("ID of the alert to resolve"),
		),
	)
	s.mcpServer.AddTool(resolve, s.handleResolveAlert)

	snapshot := mcp.NewTool("export_snapshot",
		mcp.WithDescription("Export per-category stats, targets and retained alerts"),
	)
	s.mcpServer.AddTool(snapshot, s.handleExportSnapshot)
}

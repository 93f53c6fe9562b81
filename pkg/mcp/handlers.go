package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/spawn-mcp/tripsynth/pkg/telemetry"
	"github.com/spawn-mcp/tripsynth/pkg/types"
)

// roleArgs maps tool arguments to the role each must carry
var roleArgs = []struct {
	arg  string
	role types.Role
}{
	{"architect", types.RoleArchitect},
	{"gatherer", types.RoleGatherer},
	{"specialist", types.RoleSpecialist},
	{"putter", types.RolePutter},
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// handleSynthesize handles the synthesize_itinerary tool call
func (s *MCPServer) handleSynthesize(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	outputs := make([]types.RoleOutput, 0, len(roleArgs))
	for _, ra := range roleArgs {
		raw, err := request.RequireString(ra.arg)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid %s: %v", ra.arg, err)), nil
		}
		out, err := types.DecodeRoleOutputAs([]byte(raw), ra.role)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		outputs = append(outputs, out)
	}

	result := s.synthesizer.SynthesizeOutputs(ctx, outputs...)
	s.logger.Info(ctx, "synthesize_itinerary", "success", result.Success, "confidence", result.Confidence, "quality", result.Quality)

	b, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	if !result.Success {
		return mcp.NewToolResultError(string(b)), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// handleGetStats handles the get_stats tool call
func (s *MCPServer) handleGetStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	category, err := request.RequireString("category")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid category: %v", err)), nil
	}
	seconds := request.GetFloat("window_seconds", 300)
	if seconds <= 0 {
		return mcp.NewToolResultError("window_seconds must be positive"), nil
	}
	window := time.Duration(seconds * float64(time.Second))

	stats, ok := s.monitor.GetStats(telemetry.Category(category), window)
	if !ok {
		return mcp.NewToolResultText(fmt.Sprintf("No completed %s operations in the last %s", category, window)), nil
	}
	return jsonResult(stats)
}

// handleGetActiveAlerts handles the get_active_alerts tool call
func (s *MCPServer) handleGetActiveAlerts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	alerts := s.monitor.GetActiveAlerts()
	if len(alerts) == 0 {
		return mcp.NewToolResultText("No active alerts"), nil
	}
	return jsonResult(alerts)
}

// handleResolveAlert handles the resolve_alert tool call
func (s *MCPServer) handleResolveAlert(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("alert_id")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid alert_id: %v", err)), nil
	}
	alert, err := s.monitor.ResolveAlert(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(alert)
}

// handleExportSnapshot handles the export_snapshot tool call
func (s *MCPServer) handleExportSnapshot(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.monitor.ExportSnapshot())
}

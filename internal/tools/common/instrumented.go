package common

import (
	"context"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxtriage/internal/instrumentation"
	"github.com/teemow/inboxtriage/internal/logging"
	"github.com/teemow/inboxtriage/internal/server"
)

// ToolHandler is the signature of an mcp-go tool handler.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler wraps a tool handler with a span, metrics and a
// structured log line per invocation.
//
// Usage:
//
//	s.AddTool(myTool, common.InstrumentedToolHandler("my_tool", sc, handler))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName)
		start := time.Now()

		result, err := handler(ctx, request)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
		}
		sc.Metrics().RecordToolInvocation(ctx, toolName, status, duration)
		instrumentation.EndSpan(span, err)

		args := []interface{}{
			logging.Tool(toolName),
			logging.Status(status),
			slog.Duration(logging.KeyDuration, duration),
		}
		if err != nil {
			args = append(args, logging.Err(err))
		}
		if traceID := instrumentation.GetTraceID(ctx); traceID != "" {
			args = append(args, slog.String("trace_id", traceID))
		}
		sc.Logger().Info("tool invocation", args...)

		return result, err
	}
}

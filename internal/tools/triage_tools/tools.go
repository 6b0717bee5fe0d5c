package triage_tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxtriage/internal/checkpoint"
	"github.com/teemow/inboxtriage/internal/engine"
	"github.com/teemow/inboxtriage/internal/server"
	"github.com/teemow/inboxtriage/internal/tools/common"
	"github.com/teemow/inboxtriage/internal/triage"
)

const defaultTailLines = 20

// StatusResult is returned by triage_status.
type StatusResult struct {
	State      engine.State    `json:"state"`
	RunID      string          `json:"run_id,omitempty"`
	Resume     bool            `json:"resume"`
	Done       int             `json:"done"`
	Total      int             `json:"total"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
	Progress   server.Progress `json:"progress"`
	Checkpoint CheckpointInfo  `json:"checkpoint"`
	ReportPath string          `json:"report_path,omitempty"`
	Log        []string        `json:"log"`
}

// CheckpointInfo summarizes the checkpoint file.
type CheckpointInfo struct {
	Path        string `json:"path"`
	Exists      bool   `json:"exists"`
	Total       int    `json:"total,omitempty"`
	Done        int    `json:"done,omitempty"`
	Important   int    `json:"important,omitempty"`
	LowPriority int    `json:"low_priority,omitempty"`
	Labeled     int    `json:"labeled,omitempty"`
	Error       string `json:"error,omitempty"`
}

// RegisterTriageTools registers the triage tools with the MCP server. With
// readOnly only the inspection tools are registered.
func RegisterTriageTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if s == nil || sc == nil {
		return fmt.Errorf("mcp server and server context are required")
	}

	statusTool := mcp.NewTool("triage_status",
		mcp.WithDescription("Show the state of the triage engine, run progress and the most recent log lines"),
		mcp.WithNumber("lines",
			mcp.Description("Number of log lines to return (default: 20, 0 for all buffered lines)"),
		),
	)
	s.AddTool(statusTool, common.InstrumentedToolHandler("triage_status", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleStatus(ctx, request, sc)
	}))

	checkpointTool := mcp.NewTool("triage_checkpoint",
		mcp.WithDescription("Summarize the saved checkpoint of an interrupted run"),
	)
	s.AddTool(checkpointTool, common.InstrumentedToolHandler("triage_checkpoint", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return common.JSONResult(inspectCheckpoint(sc.Checkpoint()))
	}))

	if readOnly {
		return nil
	}

	startTool := mcp.NewTool("triage_start",
		mcp.WithDescription("Start a triage run in the background. Classifies matching messages and applies the AI labels."),
		mcp.WithBoolean("resume",
			mcp.Description("Continue from the saved checkpoint instead of starting fresh (default: true)"),
		),
	)
	s.AddTool(startTool, common.InstrumentedToolHandler("triage_start", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleStart(ctx, request, sc)
	}))

	stopTool := mcp.NewTool("triage_stop",
		mcp.WithDescription("Ask the active run to stop. Progress is saved to the checkpoint."),
		mcp.WithBoolean("wait",
			mcp.Description("Block until the run has stopped (default: false)"),
		),
	)
	s.AddTool(stopTool, common.InstrumentedToolHandler("triage_stop", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleStop(ctx, request, sc)
	}))

	clearTool := mcp.NewTool("triage_clear",
		mcp.WithDescription("Delete the saved checkpoint so the next run starts fresh"),
	)
	s.AddTool(clearTool, common.InstrumentedToolHandler("triage_clear", sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleClear(ctx, request, sc)
	}))

	return nil
}

func handleStart(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.IsShutdown() {
		return mcp.NewToolResultError("server is shutting down"), nil
	}
	resume := request.GetBool("resume", true)

	eng := sc.Engine()
	if eng.IsRunning() {
		return mcp.NewToolResultError("a triage run is already in progress"), nil
	}
	sc.Logs().Reset()
	if err := eng.Start(sc.Context(), resume); err != nil {
		if errors.Is(err, engine.ErrAlreadyRunning) {
			return mcp.NewToolResultError("a triage run is already in progress"), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to start triage run: %v", err)), nil
	}

	mode := "fresh"
	if resume {
		mode = "resume"
	}
	return mcp.NewToolResultText(fmt.Sprintf("Triage run started (%s). Use triage_status to follow progress.", mode)), nil
}

func handleStop(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	eng := sc.Engine()
	if !eng.IsRunning() {
		return mcp.NewToolResultText("No triage run in progress."), nil
	}
	eng.Stop()

	if !request.GetBool("wait", false) {
		return mcp.NewToolResultText("Stop requested. The run will save its checkpoint and stop."), nil
	}

	done := make(chan engine.Result, 1)
	go func() { done <- eng.Wait() }()
	select {
	case res := <-done:
		return mcp.NewToolResultText(fmt.Sprintf("Run %s ended: %s (%d/%d).", res.RunID, res.Outcome, res.Done, res.Total)), nil
	case <-ctx.Done():
		return mcp.NewToolResultError("stop requested but the run did not finish before the request was cancelled"), nil
	}
}

func handleStatus(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	lines := request.GetInt("lines", defaultTailLines)

	st := sc.Engine().Status()
	result := StatusResult{
		State:      st.State,
		RunID:      st.RunID,
		Resume:     st.Resume,
		Done:       st.Done,
		Total:      st.Total,
		LastError:  st.LastError,
		Progress:   sc.Logs().Progress(),
		Checkpoint: inspectCheckpoint(sc.Checkpoint()),
		ReportPath: sc.ReportPath(),
		Log:        sc.Logs().Tail(lines),
	}
	if !st.StartedAt.IsZero() {
		started := st.StartedAt
		result.StartedAt = &started
	}
	return common.JSONResult(result)
}

func handleClear(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	if sc.Engine().IsRunning() {
		return mcp.NewToolResultError("cannot clear the checkpoint while a triage run is in progress"), nil
	}
	store := sc.Checkpoint()
	if !store.Exists() {
		return mcp.NewToolResultText("No checkpoint to clear."), nil
	}
	if err := store.Clear(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Checkpoint %s cleared.", store.Path())), nil
}

func inspectCheckpoint(store *checkpoint.Store) CheckpointInfo {
	info := CheckpointInfo{Path: store.Path(), Exists: store.Exists()}
	if !info.Exists {
		return info
	}
	state, err := store.Load()
	if err != nil {
		info.Error = err.Error()
		return info
	}
	counts := state.Counts()
	info.Total = state.Total()
	info.Done = state.Done()
	info.Important = counts[triage.Important]
	info.LowPriority = counts[triage.LowPriority]
	info.Labeled = len(state.Labeled)
	return info
}

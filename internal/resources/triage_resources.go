package resources

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxtriage/internal/server"
)

// Resource URIs.
const (
	ReportURI     = "triage://report"
	CheckpointURI = "triage://checkpoint"
)

// RegisterTriageResources registers the report and checkpoint resources.
func RegisterTriageResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	if s == nil || sc == nil {
		return fmt.Errorf("mcp server and server context are required")
	}

	reportResource := mcp.NewResource(
		ReportURI,
		"Triage Report",
		mcp.WithResourceDescription("HTML report of the last completed triage run"),
		mcp.WithMIMEType("text/html"),
	)
	s.AddResource(reportResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return readFileResource(ReportURI, "text/html", sc.ReportPath())
	})

	checkpointResource := mcp.NewResource(
		CheckpointURI,
		"Triage Checkpoint",
		mcp.WithResourceDescription("Saved progress of an interrupted triage run"),
		mcp.WithMIMEType("application/json"),
	)
	s.AddResource(checkpointResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return readFileResource(CheckpointURI, "application/json", sc.Checkpoint().Path())
	})

	return nil
}

func readFileResource(uri, mimeType, path string) ([]mcp.ResourceContents, error) {
	if path == "" {
		return nil, fmt.Errorf("%s is not configured", uri)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: nothing written yet at %s", uri, path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: mimeType,
			Text:     string(data),
		},
	}, nil
}

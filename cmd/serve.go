package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/inboxtriage/internal/logging"
	"github.com/teemow/inboxtriage/internal/resources"
	"github.com/teemow/inboxtriage/internal/server"
	"github.com/teemow/inboxtriage/internal/tools/triage_tools"
)

// Supported MCP transports.
const (
	transportStdio          = "stdio"
	transportStreamableHTTP = "streamable-http"
)

type serveOptions struct {
	transport   string
	httpAddr    string
	yolo        bool
	metricsAddr string
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the Model Context Protocol (MCP) server so that an AI assistant can
start, stop and monitor triage runs.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP transport

Safety Mode:
  By default, the server operates in read-only mode and only exposes
  triage_status and triage_checkpoint. Use --yolo to enable triage_start,
  triage_stop and triage_clear, which label messages and discard progress.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", "127.0.0.1:8080", "HTTP server address (for streamable-http transport)")
	cmd.Flags().BoolVar(&opts.yolo, "yolo", false, "Enable the tools that start runs and discard checkpoints. Default is read-only mode.")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and health endpoints on this address (e.g. :9090)")
	cmd.Flags().String("query", "", "Gmail search query (default: is:unread)")
	cmd.Flags().String("mode", "", "Classification mode: chunked or sequential")
	cmd.Flags().String("model", "", "Ollama model name")
	cmd.Flags().String("oracle-url", "", "Ollama base URL")

	return cmd
}

var serveBindings = map[string]string{
	"query":         "query",
	"pipeline.mode": "mode",
	"oracle.model":  "model",
	"oracle.url":    "oracle-url",
}

func runServe(cmd *cobra.Command, opts serveOptions) error {
	switch opts.transport {
	case transportStdio, transportStreamableHTTP:
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", opts.transport)
	}

	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(shutdownCtx, cmd, serveBindings)
	if err != nil {
		return err
	}
	defer a.shutdown(context.Background())

	logs := server.NewLogBuffer(server.DefaultLogBufferSize)
	p, err := a.newPipeline(shutdownCtx, logs)
	if err != nil {
		return err
	}

	serverContext, err := server.NewServerContext(shutdownCtx, p.engine, p.store, logs, a.cfg.ReportPath())
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}
	serverContext.SetMetrics(a.metrics())
	serverContext.SetLogger(a.log())

	var metricsServer *server.MetricsServer
	if opts.metricsAddr != "" {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    opts.metricsAddr,
			InstrumentationProvider: a.provider,
			Health:                  server.NewHealthChecker(serverContext),
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		go func() {
			if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("metrics server failed", logging.Err(err))
			}
		}()
	}

	defer func() {
		// Shutdown metrics server first
		if metricsServer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(ctx); err != nil {
				a.logger.Warn("metrics server shutdown failed", logging.Err(err))
			}
		}
		// Stops an active run and waits for its checkpoint
		if err := serverContext.Shutdown(); err != nil {
			a.logger.Warn("server context shutdown failed", logging.Err(err))
		}
	}()

	mcpSrv := mcpserver.NewMCPServer("inboxtriage", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // Subscribe and listChanged
	)

	// readOnly is the inverse of yolo
	readOnly := !opts.yolo
	if readOnly {
		a.logger.Info("starting MCP server in read-only mode (use --yolo to enable runs)", "transport", opts.transport)
	} else {
		a.logger.Info("starting MCP server with run control enabled", "transport", opts.transport)
	}

	if err := registerAllTools(mcpSrv, serverContext, readOnly); err != nil {
		return err
	}

	switch opts.transport {
	case transportStreamableHTTP:
		return runStreamableHTTPServer(shutdownCtx, mcpSrv, opts.httpAddr, a)
	default:
		return runStdioServer(shutdownCtx, mcpSrv)
	}
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, addr string, a *app) error {
	httpSrv := mcpserver.NewStreamableHTTPServer(mcpSrv)

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		a.logger.Info("MCP HTTP server listening", "addr", addr)
		if err := httpSrv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverDone <- err
		}
	}()

	select {
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-ctx.Done():
		a.logger.Info("shutdown signal received, stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shut down HTTP server: %w", err)
		}
		return nil
	}
}

// registerAllTools registers all MCP tools and resources
func registerAllTools(mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	type registration struct {
		name     string
		register func() error
	}

	registrations := []registration{
		{
			name: "Triage tools",
			register: func() error {
				return triage_tools.RegisterTriageTools(mcpSrv, sc, readOnly)
			},
		},
		{
			name: "Triage resources",
			register: func() error {
				return resources.RegisterTriageResources(mcpSrv, sc)
			},
		},
	}

	for _, reg := range registrations {
		if err := reg.register(); err != nil {
			return fmt.Errorf("failed to register %s: %w", reg.name, err)
		}
	}
	return nil
}

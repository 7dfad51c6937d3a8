// Package mcp exposes a machine as an MCP server, so MCP-capable hosts
// can inspect definitions, start runs and read trails as tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wovenlab/shuttle"
	"github.com/wovenlab/shuttle/internal/logging"
	"github.com/wovenlab/shuttle/pkg/adapters/file"
	"github.com/wovenlab/shuttle/pkg/domain"
	"github.com/wovenlab/shuttle/pkg/ports"
	"github.com/wovenlab/shuttle/pkg/runner"
)

// RunSummary is the structured result of a run started over MCP.
type RunSummary struct {
	RunID     string           `json:"run_id"`
	Status    domain.RunStatus `json:"status"`
	FinalNode string           `json:"final_node"`
	Steps     int              `json:"steps"`
	Failure   string           `json:"failure,omitempty"`
}

// Server wraps a machine and exposes it as an MCP server.
type Server struct {
	machine   *shuttle.Machine
	runner    *runner.Runner
	decider   ports.Agent
	recorder  ports.TrailRecorder
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// Option configures a Server.
type Option func(*Server)

// WithTrailRecorder enables the get_trail tool.
func WithTrailRecorder(rec ports.TrailRecorder) Option {
	return func(s *Server) {
		s.recorder = rec
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer creates an MCP server for the machine, using the given agent
// for every run started by a host.
func NewServer(m *shuttle.Machine, decider ports.Agent, opts ...Option) *Server {
	s := &Server{
		machine:   m,
		decider:   decider,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("shuttle-mcp", shuttle.Version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.runner = runner.New(m, runner.WithLogger(s.logger))
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on Stdin/Stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE, shutting down
// gracefully when ctx is cancelled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())

	httpServer := &http.Server{Addr: addr, Handler: mux}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("get_definition",
		mcp.WithDescription("Get the machine definition: nodes, edges and attributes."),
	), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		g, err := s.machine.Definition(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
		}
		payload, _ := json.Marshal(file.FromGraph(s.machine.Name, g))
		return mcp.NewToolResultText(string(payload)), nil
	})

	s.mcpServer.AddTool(mcp.NewTool("validate_definition",
		mcp.WithDescription("Run the static validation pass over the machine definition."),
	), func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := s.machine.Validate(ctx); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("definition is valid"), nil
	})

	startTool := mcp.NewTool("start_run",
		mcp.WithDescription("Execute one complete run of the machine and return its outcome."),
		mcp.WithString("run_id", mcp.Description("Optional run identifier; generated when omitted")),
		mcp.WithOutputSchema[RunSummary](),
	)
	s.mcpServer.AddTool(startTool, mcp.NewStructuredToolHandler(s.handleStartRun))

	s.mcpServer.AddTool(mcp.NewTool("get_trail",
		mcp.WithDescription("Get the recorded step history of a run."),
		mcp.WithString("run_id", mcp.Required(), mcp.Description("Run identifier")),
	), s.handleGetTrail)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("machine://definition", "Machine Definition",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		g, err := s.machine.Definition(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load definition: %w", err)
		}
		payload, _ := json.Marshal(file.FromGraph(s.machine.Name, g))

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "machine://definition",
				MIMEType: "application/json",
				Text:     string(payload),
			},
		}, nil
	})
}

func (s *Server) handleStartRun(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (RunSummary, error) {
	var opts []shuttle.RunOption
	if id, ok := args["run_id"].(string); ok && id != "" {
		opts = append(opts, shuttle.WithRunID(id))
	}

	final, err := s.runner.Run(ctx, s.decider, opts...)
	if err != nil && final == nil {
		return RunSummary{}, fmt.Errorf("run failed to start: %w", err)
	}
	return RunSummary{
		RunID:     final.RunID,
		Status:    final.Status,
		FinalNode: final.CurrentNode,
		Steps:     final.StepCount,
		Failure:   final.Failure,
	}, nil
}

func (s *Server) handleGetTrail(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.recorder == nil {
		return mcp.NewToolResultError("trail recording is not enabled"), nil
	}
	runID, err := request.RequireString("run_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	trail, err := s.recorder.Trail(ctx, runID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("trail lookup failed: %v", err)), nil
	}
	payload, _ := json.Marshal(trail)
	return mcp.NewToolResultText(string(payload)), nil
}

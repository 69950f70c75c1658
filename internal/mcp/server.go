// Package mcp exposes the supervisor as Model Context Protocol tools so an
// agent can start, stop and inspect the supervised process over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/aki/fujita/internal/config"
	"github.com/aki/fujita/internal/core/logger"
	"github.com/aki/fujita/internal/runner"
)

// defaultOutputLimit is how many cached lines runner_output returns when no
// limit is given.
const defaultOutputLimit = 100

// Supervisor is the part of runner.Supervisor the tools drive.
type Supervisor interface {
	Start(name, commandLine string, opts runner.ExecOptions) error
	Stop()
	RunAction(name, commandLine string, opts runner.ExecOptions) error
	Status() runner.StatusEvent
	Name() string
	ActionName() string
	Lines() []runner.LineEvent
}

// Server serves supervisor tools over MCP.
type Server struct {
	mcpServer *server.MCPServer
	sup       Supervisor
	cfg       *config.Config
	logger    logger.Logger
}

// NewServer creates an MCP server for sup with the commands in cfg.
func NewServer(sup Supervisor, cfg *config.Config, version string, log logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}

	s := &Server{
		mcpServer: server.NewMCPServer(
			"fujita",
			version,
			server.WithLogging(),
			server.WithRecovery(),
		),
		sup:    sup,
		cfg:    cfg,
		logger: log,
	}
	s.registerTools()
	return s
}

// Serve runs the server on stdin and stdout until the client disconnects.
func (s *Server) Serve() error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return server.ServeStdio(s.mcpServer)
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("runner_status",
		mcp.WithDescription(toolDescription("runner_status")),
	), s.handleRunnerStatus)

	s.mcpServer.AddTool(mcp.NewTool("runner_start",
		mcp.WithDescription(toolDescription("runner_start")),
		mcp.WithString("name",
			mcp.Description("Name of a configured command"),
			mcp.Required(),
		),
	), s.handleRunnerStart)

	s.mcpServer.AddTool(mcp.NewTool("runner_stop",
		mcp.WithDescription(toolDescription("runner_stop")),
	), s.handleRunnerStop)

	s.mcpServer.AddTool(mcp.NewTool("action_run",
		mcp.WithDescription(toolDescription("action_run")),
		mcp.WithString("name",
			mcp.Description("Name of a configured action"),
			mcp.Required(),
		),
	), s.handleActionRun)

	s.mcpServer.AddTool(mcp.NewTool("runner_output",
		mcp.WithDescription(toolDescription("runner_output")),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of most recent lines (default %d)", defaultOutputLimit)),
		),
	), s.handleRunnerOutput)
}

// StatusResult is the runner_status payload.
type StatusResult struct {
	Name     string   `json:"name"`
	Action   string   `json:"action,omitempty"`
	Code     int      `json:"code"`
	Status   string   `json:"status"`
	Commands []string `json:"commands"`
	Actions  []string `json:"actions"`
}

// OutputLine is one entry in the runner_output payload.
type OutputLine struct {
	ID     string  `json:"id"`
	TS     float64 `json:"ts"`
	Stream string  `json:"stream"`
	Line   string  `json:"line"`
}

func (s *Server) handleRunnerStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := s.sup.Status()
	return jsonResult(StatusResult{
		Name:     s.sup.Name(),
		Action:   s.sup.ActionName(),
		Code:     int(status.Code),
		Status:   status.Message,
		Commands: s.cfg.CommandNames(),
		Actions:  s.cfg.ActionNames(),
	})
}

func (s *Server) handleRunnerStart(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, ok := request.GetArguments()["name"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("invalid or missing name argument")
	}

	cmd, ok := s.cfg.LookupCommand(name)
	if !ok {
		return nil, UnknownCommandError(name, s.cfg.CommandNames())
	}

	if err := s.sup.Start(name, cmd.Command, cmd.ExecOptions()); err != nil {
		return nil, startError(err)
	}

	s.logger.Info("started via MCP", "name", name)
	return textResult(fmt.Sprintf("%s started", name)), nil
}

func (s *Server) handleRunnerStop(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.sup.Stop()
	return textResult("stop requested"), nil
}

func (s *Server) handleActionRun(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, ok := request.GetArguments()["name"].(string)
	if !ok || name == "" {
		return nil, fmt.Errorf("invalid or missing name argument")
	}

	cmd, ok := s.cfg.LookupAction(name)
	if !ok {
		return nil, UnknownActionError(name, s.cfg.ActionNames())
	}

	if err := s.sup.RunAction(name, cmd.Command, cmd.ExecOptions()); err != nil {
		return nil, fmt.Errorf("failed to run action: %w", err)
	}
	return textResult(fmt.Sprintf("action %s started", name)), nil
}

func (s *Server) handleRunnerOutput(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lines := s.sup.Lines()

	limit := defaultOutputLimit
	if v, ok := request.GetArguments()["limit"].(float64); ok {
		if v < 1 || math.IsNaN(v) {
			return nil, fmt.Errorf("limit must be positive")
		}
		// int(v) overflows for values beyond the cache.
		if v >= float64(len(lines)) {
			limit = len(lines)
		} else {
			limit = int(v)
		}
	}

	if len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	out := make([]OutputLine, 0, len(lines))
	for _, ev := range lines {
		out = append(out, OutputLine{
			ID:     ev.ID,
			TS:     ev.Timestamp(),
			Stream: ev.Stream.String(),
			Line:   ev.Text,
		})
	}
	return jsonResult(out)
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return textResult(string(data)), nil
}

// Package mcpserver exposes the gateway registry over the Model Context
// Protocol, on stdio or as a streamable HTTP handler.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/petal-labs/taskgate/gateway"
)

// Invoker is the registry surface the protocol handlers use.
type Invoker interface {
	Tools() []gateway.Tool
	Invoke(ctx context.Context, name string, args map[string]any) (gateway.Result, error)
}

// New builds an MCP server carrying every registry tool under the same
// names and schemas.
func New(registry Invoker, name, version string) *server.MCPServer {
	s := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	tools := registry.Tools()
	serverTools := make([]server.ServerTool, 0, len(tools))
	for _, tool := range tools {
		serverTools = append(serverTools, server.ServerTool{
			Tool:    tool.Definition,
			Handler: ToolHandler(registry, tool.Definition.Name),
		})
	}
	s.AddTools(serverTools...)
	return s
}

// ToolHandler adapts one registry tool. Handler results, failures included,
// travel as JSON text content; failures set IsError. Argument and dispatch
// errors become protocol errors.
func ToolHandler(registry Invoker, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := registry.Invoke(ctx, name, req.GetArguments())
		if err != nil {
			return nil, err
		}
		text, err := json.Marshal(result.Payload())
		if err != nil {
			return nil, fmt.Errorf("encode %s result: %w", name, err)
		}
		if !result.OK() {
			return mcp.NewToolResultError(string(text)), nil
		}
		return mcp.NewToolResultText(string(text)), nil
	}
}

// ServeStdio runs the protocol on in/out until ctx is done or in closes.
// Nothing but protocol frames is written to out.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	stdio := server.NewStdioServer(s)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
	logger.Debug("mcp stdio transport listening")
	return stdio.Listen(ctx, in, out)
}

// NewStreamableHandler returns the streamable HTTP transport for s.
func NewStreamableHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s)
}

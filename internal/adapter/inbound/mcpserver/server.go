package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/i2y/apollo-mcp/internal/domain"
	"github.com/i2y/apollo-mcp/internal/usecase"
	"github.com/i2y/apollo-mcp/pkg/shared/mcpjsonrpc"
)

// Info identifies the server in the initialize handshake.
type Info struct {
	Name    string
	Version string
}

// Server wraps an mcp-go server. Calls to tools outside the catalog are
// answered with a JSON-RPC "method not found" error instead of reaching mcp-go.
type Server struct {
	mcp          *server.MCPServer
	known        map[string]struct{}
	maxLineBytes int
	logger       *slog.Logger
}

// New registers every listed tool with handler and returns the server.
func New(ctx context.Context, info Info, tools *usecase.ServeToolsUseCase, handler server.ToolHandlerFunc, logger *slog.Logger) (*Server, error) {
	log := logger.With("component", "mcp_server")

	ops, err := tools.Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	srv := server.NewMCPServer(info.Name, info.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	known := make(map[string]struct{}, len(ops))
	for _, op := range ops {
		tool, err := toMCPTool(op)
		if err != nil {
			return nil, err
		}
		srv.AddTool(tool, handler)
		known[tool.Name] = struct{}{}
		log.Debug("Registered tool", slog.String("tool_name", tool.Name))
	}
	log.Info("MCP server initialized", slog.Int("tools", len(known)))

	return &Server{mcp: srv, known: known, maxLineBytes: defaultMaxLineBytes, logger: log}, nil
}

// ToolCount reports how many tools are registered.
func (s *Server) ToolCount() int {
	return len(s.known)
}

// HandleMessage processes one raw JSON-RPC message and returns the response to
// send back, or nil for notifications.
func (s *Server) HandleMessage(ctx context.Context, raw json.RawMessage) any {
	var req mcpjsonrpc.Request
	if err := json.Unmarshal(raw, &req); err == nil && req.Method == mcpjsonrpc.MethodToolsCall {
		var params mcpjsonrpc.CallToolParams
		if err := json.Unmarshal(req.Params, &params); err == nil {
			if _, ok := s.known[params.Name]; !ok {
				s.logger.Warn("Call to unknown tool", slog.String("tool_name", params.Name))
				if req.IsNotification() {
					return nil
				}
				return mcpjsonrpc.NewError(req.ID, mcpjsonrpc.CodeMethodNotFound,
					fmt.Sprintf("%s: %s", usecase.ErrToolNotFound, params.Name))
			}
		}
	}

	if resp := s.mcp.HandleMessage(ctx, raw); resp != nil {
		return resp
	}
	return nil
}

func toMCPTool(op domain.Operation) (mcp.Tool, error) {
	schema, err := json.Marshal(op.InputSchema)
	if err != nil {
		return mcp.Tool{}, fmt.Errorf("failed to marshal input schema of %s: %w", op.Name, err)
	}
	tool := mcp.NewToolWithRawSchema(string(op.Name), op.Description, schema)
	tool.Annotations = mcp.ToolAnnotation{
		Title:           op.Title,
		ReadOnlyHint:    boolPtr(op.ReadOnly),
		DestructiveHint: boolPtr(false),
		IdempotentHint:  boolPtr(op.ReadOnly),
		OpenWorldHint:   boolPtr(true),
	}
	return tool, nil
}

func boolPtr(b bool) *bool { return &b }

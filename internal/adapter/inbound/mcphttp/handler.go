package mcphttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/i2y/apollo-mcp/pkg/shared/mcpjsonrpc"
)

const maxBodyBytes = 1 << 20

// MessageHandler processes one raw JSON-RPC message. It returns nil for
// notifications.
type MessageHandler interface {
	HandleMessage(ctx context.Context, raw json.RawMessage) any
	ToolCount() int
}

// Handlers struct holds dependencies for the HTTP handlers.
type Handlers struct {
	server MessageHandler
	logger *slog.Logger
}

// NewHandlers creates a new Handlers struct.
func NewHandlers(server MessageHandler, logger *slog.Logger) *Handlers {
	return &Handlers{
		server: server,
		logger: logger.With("component", "mcphttp_handler"),
	}
}

// RegisterRoutes sets up the MCP and health endpoints.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /mcp", h.handleMCP)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// handleMCP implements POST /mcp: one JSON-RPC message in, one out.
func (h *Handlers) handleMCP(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn("Request body too large", slog.Int64("limit", tooLarge.Limit))
			writeJSON(w, http.StatusRequestEntityTooLarge, mcpjsonrpc.NewError(nil, mcpjsonrpc.CodeInvalidRequest,
				fmt.Sprintf("Invalid Request: body exceeds %d bytes", tooLarge.Limit)))
			return
		}
		h.logger.Warn("Failed to read request body", slog.Any("error", err))
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	if !json.Valid(body) {
		h.logger.Warn("Received malformed JSON-RPC message")
		writeJSON(w, http.StatusOK, mcpjsonrpc.NewError(nil, mcpjsonrpc.CodeParseError, "Parse error"))
		return
	}

	resp := h.server.HandleMessage(r.Context(), body)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type healthResponse struct {
	Status string `json:"status"`
	Tools  int    `json:"tools"`
}

// handleHealth implements GET /healthz.
func (h *Handlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Tools: h.server.ToolCount()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package mcpjsonrpc

import "encoding/json"

// Based on JSON-RPC 2.0 Specification: https://www.jsonrpc.org/specification

// Version is the only protocol version accepted and produced.
const Version = "2.0"

// Request represents a JSON-RPC request or notification object.
// Params is kept raw so the server can inspect it before delegating.
type Request struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"` // absent for notifications
}

// IsNotification reports whether the request carries no id.
func (r Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response represents a JSON-RPC error response produced by the transports.
// Successful responses are built by the MCP server.
type Response struct {
	Version string          `json:"jsonrpc"`
	Error   *Error          `json:"error"`
	ID      json.RawMessage `json:"id"` // null when the request id could not be read
}

// Error represents a JSON-RPC error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Error codes defined by JSON-RPC 2.0.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInternalError  = -32603
)

// MethodToolsCall is the MCP method that invokes a tool.
const MethodToolsCall = "tools/call"

// CallToolParams is the "params" member of a tools/call request.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// NewError builds an error response for the given request id.
func NewError(id json.RawMessage, code int, message string) Response {
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return Response{
		Version: Version,
		Error:   &Error{Code: code, Message: message},
		ID:      id,
	}
}

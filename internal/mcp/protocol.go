// Package mcp speaks the Model Context Protocol tool subset over
// line-delimited JSON-RPC 2.0: a Server exposing a tool registry and a
// Client that dispatches to a remote one.
package mcp

import (
	"encoding/json"

	"github.com/coopco/toolbridge/internal/tools"
)

// ProtocolVersion is the MCP revision both sides announce.
const ProtocolVersion = "2024-11-05"

// JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Error kinds carried in the data of CodeInvalidParams errors.
const (
	KindUnknownTool = "unknown_tool"
	KindValidation  = "validation_error"
)

// message is any JSON-RPC 2.0 frame. ID stays raw so string and numeric
// IDs are echoed back unchanged.
type message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func (m *message) isNotification() bool { return len(m.ID) == 0 || string(m.ID) == "null" }

// RPCError is a JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string { return e.Message }

// errorData is the structured payload of tool lookup and validation errors.
type errorData struct {
	Kind   string `json:"kind"`
	Tool   string `json:"tool,omitempty"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`
}

type peerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      peerInfo       `json:"clientInfo"`
}

type initializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      peerInfo       `json:"serverInfo"`
}

type listResult struct {
	Tools []tools.Summary `json:"tools"`
}

type callResult struct {
	Content []tools.Content `json:"content"`
	IsError bool            `json:"isError,omitempty"`
}

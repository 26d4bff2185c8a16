package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/coopco/toolbridge/internal/tools"
)

const maxLineSize = 4 << 20

// ToolHost is the tool surface a Server exposes.
type ToolHost interface {
	List() []tools.Summary
	Invoke(ctx context.Context, req tools.Request) (tools.Result, error)
}

// Server answers MCP requests for a ToolHost. Requests are handled one at a
// time in arrival order.
type Server struct {
	host    ToolHost
	name    string
	version string
	logger  *slog.Logger

	mu sync.Mutex
	w  io.Writer
}

func NewServer(host ToolHost, name, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{host: host, name: name, version: version, logger: logger}
}

// Serve reads requests from r and writes responses to w until r is
// exhausted or ctx is cancelled. A clean EOF returns nil.
func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	s.w = w
	lines := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 64*1024), maxLineSize)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		readErr <- sc.Err()
	}()

	s.logger.Info("mcp server started", "name", s.name, "version", s.version)
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			if err != nil {
				return fmt.Errorf("mcp read: %w", err)
			}
			return nil
		case line := <-lines:
			if len(line) == 0 {
				continue
			}
			s.handleLine(ctx, line)
		}
	}
}

func (s *Server) handleLine(ctx context.Context, line []byte) {
	var msg message
	if err := json.Unmarshal(line, &msg); err != nil {
		s.writeError(nil, &RPCError{Code: CodeParseError, Message: "parse error: " + err.Error()})
		return
	}
	if msg.JSONRPC != "2.0" || msg.Method == "" {
		if !msg.isNotification() {
			s.writeError(msg.ID, &RPCError{Code: CodeInvalidRequest, Message: "invalid request"})
		}
		return
	}
	s.logger.Debug("mcp request", "method", msg.Method, "id", string(msg.ID))

	result, rpcErr := s.dispatch(ctx, &msg)
	if msg.isNotification() {
		return
	}
	if rpcErr != nil {
		s.writeError(msg.ID, rpcErr)
		return
	}
	s.write(&message{JSONRPC: "2.0", ID: msg.ID, Result: result})
}

func (s *Server) dispatch(ctx context.Context, msg *message) (any, *RPCError) {
	switch msg.Method {
	case "initialize":
		var p initializeParams
		if len(msg.Params) > 0 {
			if err := json.Unmarshal(msg.Params, &p); err != nil {
				return nil, &RPCError{Code: CodeInvalidParams, Message: "invalid initialize params: " + err.Error()}
			}
		}
		s.logger.Info("mcp client connected", "client", p.ClientInfo.Name, "version", p.ClientInfo.Version)
		return initializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    map[string]any{"tools": map[string]any{}},
			ServerInfo:      peerInfo{Name: s.name, Version: s.version},
		}, nil
	case "notifications/initialized", "ping":
		return struct{}{}, nil
	case "tools/list":
		return listResult{Tools: wireSummaries(s.host.List())}, nil
	case "tools/call":
		return s.callTool(ctx, msg.Params)
	}
	return nil, &RPCError{Code: CodeMethodNotFound, Message: "method not found: " + msg.Method}
}

// wireSummaries folds examples into descriptions; MCP tool objects have no
// examples field.
func wireSummaries(list []tools.Summary) []tools.Summary {
	out := make([]tools.Summary, len(list))
	for i, t := range list {
		t.Description = t.DescriptionWithExamples()
		t.Examples = nil
		out[i] = t
	}
	return out
}

func (s *Server) callTool(ctx context.Context, params json.RawMessage) (any, *RPCError) {
	var req tools.Request
	if err := json.Unmarshal(params, &req); err != nil || req.Name == "" {
		return nil, &RPCError{Code: CodeInvalidParams, Message: "tools/call requires a tool name"}
	}

	res, err := s.host.Invoke(ctx, req)
	if err == nil {
		return callResult{Content: res.Content}, nil
	}

	var verr *tools.ValidationError
	var herr *tools.HandlerError
	switch {
	case errors.Is(err, tools.ErrUnknownTool):
		return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error(), Data: errorData{Kind: KindUnknownTool, Tool: req.Name}}
	case errors.As(err, &verr):
		return nil, &RPCError{Code: CodeInvalidParams, Message: err.Error(), Data: errorData{
			Kind:   KindValidation,
			Tool:   verr.Tool,
			Field:  verr.Field,
			Reason: verr.Reason,
		}}
	case errors.As(err, &herr):
		s.logger.Warn("tool call failed", "tool", req.Name, "err", herr.Err)
		return callResult{Content: []tools.Content{{Type: tools.ContentText, Text: herr.Err.Error()}}, IsError: true}, nil
	}
	return nil, &RPCError{Code: CodeInternalError, Message: err.Error()}
}

func (s *Server) writeError(id json.RawMessage, e *RPCError) {
	if id == nil {
		id = json.RawMessage("null")
	}
	s.write(&message{JSONRPC: "2.0", ID: id, Error: e})
}

func (s *Server) write(msg *message) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error("mcp marshal response", "err", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(data, '\n')); err != nil {
		s.logger.Warn("mcp write response", "err", err)
	}
}

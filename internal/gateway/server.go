// Package gateway serves the bridge and the tool registry over HTTP.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coopco/toolbridge/internal/bridge"
	"github.com/coopco/toolbridge/internal/tools"
)

// ToolHost is the tool surface exposed over HTTP.
type ToolHost interface {
	List() []tools.Summary
	Invoke(ctx context.Context, req tools.Request) (tools.Result, error)
}

// Options configures a Server.
type Options struct {
	Addr         string
	Model        string // reported when a request names no model
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *slog.Logger
}

// Server exposes the chat-completion and tool endpoints.
type Server struct {
	bridge *bridge.Bridge
	tools  ToolHost
	mux    *http.ServeMux
	opts   Options
	logger *slog.Logger
}

func New(b *bridge.Bridge, host ToolHost, opts Options) *Server {
	if opts.Model == "" {
		opts.Model = "toolbridge"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		bridge: b,
		tools:  host,
		mux:    http.NewServeMux(),
		opts:   opts,
		logger: logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /v1/chat/completions", s.handleChatCompletions)
	s.mux.HandleFunc("GET /v1/tools", s.handleListTools)
	s.mux.HandleFunc("POST /v1/tools/call", s.handleCallTool)
}

// Handler returns the routed handler wrapped in request-ID and access-log middleware.
func (s *Server) Handler() http.Handler {
	return requestID(accessLog(s.logger, s.mux))
}

// Serve listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("gateway shutdown", "err", err)
		}
	}()

	s.logger.Info("gateway listening", "addr", s.opts.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

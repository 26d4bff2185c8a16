package main

import (
	"context"
	"fmt"

	"github.com/coopco/toolbridge/internal/bridge"
	"github.com/coopco/toolbridge/internal/config"
	"github.com/coopco/toolbridge/internal/gateway"
	"github.com/coopco/toolbridge/internal/mcp"
	"github.com/coopco/toolbridge/internal/tools"
)

// buildRegistry registers the built-in tools that config leaves enabled.
// A registration failure is fatal to start-up.
func buildRegistry(cfg *config.Config) (*tools.Registry, error) {
	defs := []tools.Definition{
		tools.NewStatusTool(statusProvider(cfg), cfg.Tools.Timeout),
		tools.NewDocSearchTool(docsProvider(cfg), cfg.Tools.Timeout),
	}

	reg := tools.NewRegistry()
	for _, def := range defs {
		if cfg.ToolDisabled(def.Name) {
			continue
		}
		if err := reg.Register(def); err != nil {
			return nil, fmt.Errorf("register tools: %w", err)
		}
	}
	return reg, nil
}

func statusProvider(cfg *config.Config) tools.StatusProvider {
	entries := make([]tools.ServiceStatus, 0, len(cfg.Tools.Status.Services))
	for _, s := range cfg.Tools.Status.Services {
		entries = append(entries, tools.ServiceStatus{Service: s.Service, State: s.State, Detail: s.Detail})
	}
	return tools.NewStaticStatus(entries...)
}

func docsProvider(cfg *config.Config) tools.DocSearchProvider {
	entries := make([]tools.DocEntry, 0, len(cfg.Tools.Docs.Entries))
	for _, d := range cfg.Tools.Docs.Entries {
		entries = append(entries, tools.DocEntry{Title: d.Title, URL: d.URL, Body: d.Body})
	}
	return tools.NewMemoryDocs(entries...)
}

// remote is a dispatcher that can also enumerate its tools.
type remote interface {
	bridge.Dispatcher
	List(ctx context.Context) ([]tools.Summary, error)
}

// localTools adapts a Registry to the remote interface.
type localTools struct{ *tools.Registry }

func (l localTools) List(context.Context) ([]tools.Summary, error) { return l.Registry.List(), nil }

// mcpTools adapts an MCP client to the remote interface.
type mcpTools struct{ *mcp.Client }

func (m mcpTools) List(ctx context.Context) ([]tools.Summary, error) { return m.ListTools(ctx) }

// dispatcher picks where bridge tool calls go. The returned func releases
// any connection it opened.
func dispatcher(ctx context.Context, cfg *config.Config, reg *tools.Registry) (remote, func(), error) {
	bc := cfg.Bridge
	switch bc.Dispatcher {
	case config.DispatcherHTTP:
		client := gateway.NewToolClient(bc.RemoteURL,
			gateway.WithRetry(gateway.NewRetryPolicy(bc.Retries, bc.RetryBackoff)))
		return client, func() {}, nil
	case config.DispatcherMCP:
		client, err := mcp.Spawn(ctx, "upstream", mcp.SpawnConfig{
			Command:     bc.MCP.Command,
			Args:        bc.MCP.Args,
			Env:         bc.MCP.Env,
			ToolTimeout: bc.MCP.ToolTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		return mcpTools{client}, func() { client.Close() }, nil
	}
	return localTools{reg}, func() {}, nil
}

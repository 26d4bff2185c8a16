// Package bridge turns a conversation into a single assistant reply,
// running at most one tool along the way.
package bridge

import (
	"context"
	"log/slog"

	"github.com/coopco/toolbridge/internal/tools"
)

// Roles accepted in a conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// FinishStop is the only finish reason the bridge produces.
const FinishStop = "stop"

// Message is one entry of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Reply is the assistant's answer to a conversation.
type Reply struct {
	Content      string `json:"content"`
	FinishReason string `json:"finish_reason"`
	// ToolUsed names the tool whose output backs the reply, or is empty.
	ToolUsed string `json:"tool_used,omitempty"`
}

// Dispatcher runs tool calls. *tools.Registry satisfies it locally; the HTTP
// and MCP clients satisfy it remotely.
type Dispatcher interface {
	Invoke(ctx context.Context, req tools.Request) (tools.Result, error)
}

type state string

const (
	stateIdle       state = "idle"
	stateToolCheck  state = "tool_check"
	stateResponding state = "responding"
)

// Bridge answers chat turns. It keeps no state between calls.
type Bridge struct {
	dispatcher Dispatcher
	triggers   []Trigger
	logger     *slog.Logger
}

// Config holds the dependencies of a Bridge.
type Config struct {
	Dispatcher Dispatcher
	// Triggers are evaluated in order; nil means DefaultTriggers.
	Triggers []Trigger
	Logger   *slog.Logger
}

func New(cfg Config) *Bridge {
	triggers := cfg.Triggers
	if triggers == nil {
		triggers = DefaultTriggers()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{
		dispatcher: cfg.Dispatcher,
		triggers:   triggers,
		logger:     logger,
	}
}

// Reply produces exactly one reply for conv. It never fails: tool errors are
// logged and turned into a degraded reply.
func (b *Bridge) Reply(ctx context.Context, conv []Message) Reply {
	if len(conv) == 0 {
		return Reply{Content: emptyReply, FinishReason: FinishStop}
	}
	last := conv[len(conv)-1]

	if last.Role != RoleUser {
		b.transition(stateIdle, stateResponding, "role", last.Role)
		return Reply{Content: echoReply(last.Content), FinishReason: FinishStop}
	}

	b.transition(stateIdle, stateToolCheck)
	t, ok := match(b.triggers, last.Content)
	if !ok || b.dispatcher == nil {
		b.transition(stateToolCheck, stateResponding, "tool", "none")
		return Reply{Content: echoReply(last.Content), FinishReason: FinishStop}
	}

	b.transition(stateToolCheck, stateResponding, "trigger", t.Name, "tool", t.Tool)
	var args map[string]any
	if t.Arguments != nil {
		args = t.Arguments(last.Content)
	}
	res, err := b.dispatcher.Invoke(ctx, tools.Request{Name: t.Tool, Arguments: args})
	if err != nil {
		b.logger.Warn("tool call failed, replying without it", "tool", t.Tool, "err", err)
		return Reply{Content: degradedReply(t.Tool), FinishReason: FinishStop}
	}
	return Reply{Content: toolReply(t, res), FinishReason: FinishStop, ToolUsed: t.Tool}
}

func (b *Bridge) transition(from, to state, attrs ...any) {
	b.logger.Debug("bridge state", append([]any{"from", from, "to", to}, attrs...)...)
}

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

var errEmptyResult = errors.New("handler returned no content")

// Registry maps tool names to definitions and dispatches calls to them.
// It is filled during start-up and only read afterwards; registries are
// independent values, so tests can build as many as they like.
type Registry struct {
	tools map[string]Definition
	order []string
	mu    sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Definition)}
}

// Register adds def. A name that is already registered is rejected and the
// existing definition is left untouched.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidDefinition)
	}
	if def.Handler == nil {
		return fmt.Errorf("%w: %s has no handler", ErrInvalidDefinition, def.Name)
	}
	if err := checkExamples(def); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[def.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, def.Name)
	}
	r.tools[def.Name] = def
	r.order = append(r.order, def.Name)
	return nil
}

// checkExamples rejects examples that are not JSON objects accepted by the
// tool's own schema.
func checkExamples(def Definition) error {
	for i, ex := range def.Examples {
		var raw map[string]any
		if err := json.Unmarshal([]byte(ex), &raw); err != nil {
			return fmt.Errorf("%w: %s example %d is not a JSON object: %v", ErrInvalidDefinition, def.Name, i, err)
		}
		if v := def.Schema.Validate(raw); !v.OK() {
			return fmt.Errorf("%w: %s example %d: %s %s", ErrInvalidDefinition, def.Name, i, v.Err.Field, v.Err.Reason)
		}
	}
	return nil
}

// MustRegister registers every definition and panics on the first failure.
// Meant for the start-up build phase, where misconfiguration is fatal.
func (r *Registry) MustRegister(defs ...Definition) {
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// Invoke validates req against the tool's schema and runs its handler.
//
// The handler only ever sees fully validated arguments. Handler errors and
// panics come back as *HandlerError; unknown names as ErrUnknownTool; schema
// violations as *ValidationError.
func (r *Registry) Invoke(ctx context.Context, req Request) (Result, error) {
	def, ok := r.Get(req.Name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, req.Name)
	}

	v := def.Schema.Validate(req.Arguments)
	if !v.OK() {
		v.Err.Tool = def.Name
		return Result{}, v.Err
	}

	res, err := runHandler(ctx, def, v.Args)
	if err != nil {
		slog.Debug("tool handler failed", "tool", def.Name, "err", err)
		return Result{}, &HandlerError{Tool: def.Name, Err: err}
	}
	if len(res.Content) == 0 {
		return Result{}, &HandlerError{Tool: def.Name, Err: errEmptyResult}
	}
	return res, nil
}

func runHandler(ctx context.Context, def Definition, args Args) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return def.Handler(ctx, args)
}

// List returns tool summaries in registration order.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Summary, 0, len(r.order))
	for _, name := range r.order {
		d := r.tools[name]
		out = append(out, Summary{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: d.Schema.JSONSchema(),
			Examples:    slices.Clone(d.Examples),
		})
	}
	return out
}

// FunctionDefinitions returns the registered tools in OpenAI function-calling form.
func (r *Registry) FunctionDefinitions() []openai.Tool {
	summaries := r.List()
	defs := make([]openai.Tool, 0, len(summaries))
	for _, s := range summaries {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.InputSchema,
			},
		})
	}
	return defs
}

// PromptCatalogue renders the registered tools as plain text for a system
// prompt: one entry per tool with its parameters and examples.
func (r *Registry) PromptCatalogue() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sb strings.Builder
	for _, name := range r.order {
		d := r.tools[name]
		fmt.Fprintf(&sb, "- %s: %s\n", d.Name, d.Description)
		if len(d.Schema.Fields) > 0 {
			params := make([]string, 0, len(d.Schema.Fields))
			for _, f := range d.Schema.Fields {
				params = append(params, f.promptLine())
			}
			fmt.Fprintf(&sb, "  Parameters: %s\n", strings.Join(params, ", "))
		}
		for _, ex := range d.Examples {
			fmt.Fprintf(&sb, "  Example: %s %s\n", d.Name, ex)
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

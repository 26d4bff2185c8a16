package tools

import (
	"context"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Handler runs a tool against arguments that already passed schema validation.
type Handler func(ctx context.Context, args Args) (Result, error)

// Definition describes a tool: its name, what it does, the arguments it accepts
// and the handler that runs it. Definitions are registered once and never mutated.
type Definition struct {
	Name        string
	Description string
	Schema      Schema
	// Examples are sample argument objects in JSON, shown to people and models
	// deciding how to call the tool.
	Examples []string
	Handler  Handler
}

// Summary is the introspection view of a registered tool.
type Summary struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
	Examples    []string           `json:"examples,omitempty"`
}

// DescriptionWithExamples folds the examples into the description for
// consumers that only carry a description string.
func (s Summary) DescriptionWithExamples() string {
	if len(s.Examples) == 0 {
		return s.Description
	}
	return s.Description + "\nExamples: " + strings.Join(s.Examples, "; ")
}

// Request is a single tool call as delivered by a transport.
type Request struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ContentText is the only content block kind produced today.
const ContentText = "text"

// Content is one tagged block of tool output.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the output of a tool call.
type Result struct {
	Content []Content `json:"content"`
}

// TextResult builds a Result with one text block per argument.
func TextResult(texts ...string) Result {
	blocks := make([]Content, 0, len(texts))
	for _, t := range texts {
		blocks = append(blocks, Content{Type: ContentText, Text: t})
	}
	return Result{Content: blocks}
}

// Text joins the text blocks of r with newlines, skipping other kinds.
func (r Result) Text() string {
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		if c.Type == ContentText {
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}

package tools

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateTool is returned by Register when the name is already taken.
	ErrDuplicateTool = errors.New("duplicate tool")
	// ErrUnknownTool is returned by Invoke when no tool has the requested name.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrInvalidDefinition is returned by Register for a nameless or handler-less definition.
	ErrInvalidDefinition = errors.New("invalid tool definition")
)

// ValidationError reports the first argument that failed schema validation.
type ValidationError struct {
	Tool   string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid argument %q for %s: %s", e.Field, e.Tool, e.Reason)
}

// HandlerError wraps a failure raised inside a tool handler.
type HandlerError struct {
	Tool string
	Err  error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

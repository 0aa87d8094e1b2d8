// Package tool implements the function / tool calling subsystem that lets the
// kernel resolve provider-issued tool calls: explicit Spec values with schema
// validated arguments, a Registry with unique names, and consistent error
// classification (not found, argument validation, execution).
package tool

import (
	"context"
	"fmt"
	"regexp"

	"github.com/hupe1980/echokernel/internal/util"
	"github.com/hupe1980/echokernel/model"
)

// Error codes carried by ToolError.
const (
	CodeNotFound   = "NOT_FOUND"
	CodeValidation = "VALIDATION_ERROR"
	CodeExecution  = "EXECUTION_ERROR"
)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// Handler executes a tool with validated arguments and returns its textual result.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Spec is an explicitly constructed tool: a unique name, a description shown
// to the model, a JSON schema for the arguments and the handler.
//
// Handlers should:
//   - Return plain text (JSON text is fine) the model can read
//   - Respect ctx cancellation for long running work
//   - Be safe for concurrent use
type Spec struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     Handler
}

var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

// Validate checks that the spec can be registered.
func (s Spec) Validate() error {
	if !namePattern.MatchString(s.Name) {
		return fmt.Errorf("invalid tool name %q", s.Name)
	}
	if s.Handler == nil {
		return fmt.Errorf("tool %s has no handler", s.Name)
	}
	return nil
}

// Definition returns the provider-facing declaration of the tool.
func (s Spec) Definition() model.ToolDefinition {
	params := s.Parameters
	if params == nil {
		params = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return model.ToolDefinition{Name: s.Name, Description: s.Description, Parameters: params}
}

// ToolError represents errors that occur during tool resolution or execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the tool that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// NewToolError creates a new ToolError with the specified details.
func NewToolError(tool, message, code string) *ToolError {
	return &ToolError{
		Tool:    tool,
		Message: message,
		Code:    code,
	}
}

// Unwrap exposes Details when it is an error.
func (e *ToolError) Unwrap() error {
	if err, ok := e.Details.(error); ok {
		return err
	}
	return nil
}

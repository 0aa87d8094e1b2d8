package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/internal/util"
	"github.com/hupe1980/echokernel/logging"
	"github.com/hupe1980/echokernel/model"
)

// Registry maps unique tool names to specs and executes provider tool calls.
//
// Registration is an administrative operation and must not race with active
// runs; lookups and executions are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	specs  map[string]Spec
	logger logging.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger logging.Logger) *Registry {
	return &Registry{specs: make(map[string]Spec), logger: logging.OrNoOp(logger)}
}

// Register adds spec. A name collision fails with core.ErrDuplicateTool.
func (r *Registry) Register(spec Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.specs[spec.Name]; exists {
		return core.NewError(core.KindDuplicateTool, "tool.register", fmt.Sprintf("tool %q already registered", spec.Name), nil)
	}
	r.specs[spec.Name] = spec

	return nil
}

// Get returns the spec registered under name.
func (r *Registry) Get(name string) (Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.specs))
	for n := range r.specs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.specs)
}

// Definitions returns provider declarations sorted by name. When names is
// non-empty only those tools are included; unknown names are skipped.
func (r *Registry) Definitions(names ...string) []model.ToolDefinition {
	if len(names) == 0 {
		names = r.Names()
	}
	defs := make([]model.ToolDefinition, 0, len(names))
	for _, n := range names {
		if s, ok := r.Get(n); ok {
			defs = append(defs, s.Definition())
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Execute resolves a provider tool call. Failures are *core.Error values of
// kind ToolNotFound, ArgumentValidation or ToolExecution wrapping a *ToolError.
// Handler panics are recovered and reported as ToolExecution.
func (r *Registry) Execute(ctx context.Context, call model.ToolCall) (out string, err error) {
	op := "tool." + call.Name

	spec, ok := r.Get(call.Name)
	if !ok {
		r.logger.Warn("tool.call.not_found", "tool", call.Name)
		return "", core.NewError(core.KindToolNotFound, op, "", NewToolError(call.Name, "tool not registered", CodeNotFound))
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			r.logger.Warn("tool.call.validation_failed", "tool", call.Name, "error", err.Error())
			return "", core.NewError(core.KindArgumentValidation, op, "", &ToolError{
				Tool: call.Name, Message: fmt.Sprintf("arguments are not a JSON object: %v", err), Code: CodeValidation,
			})
		}
	}

	if spec.Parameters != nil {
		if err := util.ValidateParameters(args, spec.Parameters); err != nil {
			r.logger.Warn("tool.call.validation_failed", "tool", call.Name, "error", err.Error())
			return "", core.NewError(core.KindArgumentValidation, op, "", &ToolError{
				Tool: call.Name, Message: fmt.Sprintf("parameter validation failed: %v", err), Code: CodeValidation, Details: err,
			})
		}
	}

	start := time.Now()
	r.logger.Debug("tool.call.start", "tool", call.Name, "call_id", call.ID)

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool.call.panic", "tool", call.Name, "recover", rec, "stack", string(debug.Stack()))
			out = ""
			err = core.NewError(core.KindToolExecution, op, "", &ToolError{
				Tool: call.Name, Message: fmt.Sprintf("panic: %v", rec), Code: CodeExecution,
			})
		}
	}()

	out, err = spec.Handler(ctx, args)
	if err != nil {
		r.logger.Error("tool.call.error", "tool", call.Name, "error", err.Error())

		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", core.Cancelled(op, ctxErr)
		}

		te, ok := err.(*ToolError)
		if !ok {
			te = &ToolError{Tool: call.Name, Message: err.Error(), Code: CodeExecution, Details: err}
		}
		kind := core.KindToolExecution
		if te.Code == CodeValidation {
			kind = core.KindArgumentValidation
		}
		return "", core.NewError(kind, op, "", te)
	}

	r.logger.Info("tool.call.success", "tool", call.Name, "duration_ms", time.Since(start).Milliseconds())

	return out, nil
}

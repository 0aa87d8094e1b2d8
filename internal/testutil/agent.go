package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/echokernel/core"
)

// StubAgent is a minimal core.Agent backed by a function. It records the
// tasks it receives.
type StubAgent struct {
	name string
	fn   func(ctx context.Context, task core.Task) (core.Result, error)

	mu    sync.Mutex
	tasks []core.Task
}

var _ core.Agent = (*StubAgent)(nil)

// NewStubAgent creates a StubAgent.
func NewStubAgent(name string, fn func(ctx context.Context, task core.Task) (core.Result, error)) *StubAgent {
	return &StubAgent{name: name, fn: fn}
}

// NewEchoAgent creates a StubAgent answering "name: <description>".
func NewEchoAgent(name string) *StubAgent {
	return NewStubAgent(name, func(_ context.Context, task core.Task) (core.Result, error) {
		return core.Success(name + ": " + task.Description), nil
	})
}

// Name implements core.Agent.
func (a *StubAgent) Name() string { return a.name }

// Kind implements core.Agent.
func (a *StubAgent) Kind() core.AgentKind { return core.KindFuncAgent }

// Run implements core.Agent.
func (a *StubAgent) Run(ctx context.Context, task core.Task) (core.Result, error) {
	a.mu.Lock()
	a.tasks = append(a.tasks, task)
	a.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return core.Failure("", core.Cancelled(a.name, err)), nil
	}
	return a.fn(ctx, task)
}

// Tasks returns the received tasks in order.
func (a *StubAgent) Tasks() []core.Task {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.Task(nil), a.tasks...)
}

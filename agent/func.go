package agent

import (
	"context"
	"time"

	"github.com/hupe1980/echokernel/core"
)

// FuncAgentOptions configures a FuncAgent.
type FuncAgentOptions struct {
	Common
}

// FuncAgent adapts a plain function into a leaf agent. It is the hook for
// custom leaves (scripted replies, tool pipelines, remote calls).
type FuncAgent struct {
	BaseAgent
	fn func(ctx context.Context, task core.Task) (string, error)
}

// NewFuncAgent creates a FuncAgent.
func NewFuncAgent(name string, fn func(ctx context.Context, task core.Task) (string, error), optFns ...func(o *FuncAgentOptions)) *FuncAgent {
	opts := FuncAgentOptions{}
	for _, f := range optFns {
		f(&opts)
	}
	return &FuncAgent{BaseAgent: newBaseAgent(name, opts.Common), fn: fn}
}

// Kind implements core.Agent.
func (a *FuncAgent) Kind() core.AgentKind { return core.KindFuncAgent }

// Run implements core.Agent.
func (a *FuncAgent) Run(ctx context.Context, task core.Task) (core.Result, error) {
	start := time.Now()
	if ctx.Err() != nil {
		return a.finish(a.Kind(), start, cancelled("agent."+a.name, ctx, ""))
	}

	out, err := a.fn(ctx, task)
	if err != nil {
		return a.finish(a.Kind(), start, core.Failure(out, err))
	}

	res := core.Success(out)
	res.Steps = 1
	return a.finish(a.Kind(), start, res)
}

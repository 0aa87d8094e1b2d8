package agent

import (
	"context"
	"time"

	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/kernel"
)

// ModelAgentOptions configures a ModelAgent.
type ModelAgentOptions struct {
	Common

	// Instruction is sent as the system message. Empty sends none.
	Instruction Instruction
	// Tools restricts the offered kernel tools; empty offers all registered tools.
	Tools []string
	// DisableTools sends no tool definitions.
	DisableTools bool
	Temperature  *float64
	MaxTokens    int64
	// MaxIterations overrides the kernel iteration cap when positive.
	MaxIterations   int
	ToolErrorPolicy *kernel.ToolErrorPolicy
}

// ModelAgent is the leaf agent: its persona plus one kernel generation.
type ModelAgent struct {
	BaseAgent
	gen  Generator
	opts ModelAgentOptions
}

// NewModelAgent creates a ModelAgent backed by gen.
func NewModelAgent(name string, gen Generator, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelAgent{
		BaseAgent: newBaseAgent(name, opts.Common),
		gen:       gen,
		opts:      opts,
	}
}

// Kind implements core.Agent.
func (a *ModelAgent) Kind() core.AgentKind { return core.KindModelAgent }

// Run renders the persona, generates a response for task.Prompt() and
// marks the result Incomplete when the kernel hit its iteration cap.
func (a *ModelAgent) Run(ctx context.Context, task core.Task) (core.Result, error) {
	start := time.Now()
	op := "agent." + a.name

	if ctx.Err() != nil {
		return a.finish(a.Kind(), start, cancelled(op, ctx, ""))
	}

	system, err := a.opts.Instruction.Resolve(ctx, task)
	if err != nil {
		return a.finish(a.Kind(), start, core.Failure("", core.NewError(core.KindInternal, op, "render instruction", err)))
	}

	gen, err := a.gen.GenerateText(ctx, task.Prompt(), func(o *kernel.GenerateOptions) {
		o.SystemMessage = system
		o.Tools = a.opts.Tools
		o.DisableTools = a.opts.DisableTools
		if a.opts.Temperature != nil {
			o.Temperature = a.opts.Temperature
		}
		if a.opts.MaxTokens > 0 {
			o.MaxTokens = a.opts.MaxTokens
		}
		if a.opts.MaxIterations > 0 {
			o.MaxIterations = a.opts.MaxIterations
		}
		if a.opts.ToolErrorPolicy != nil {
			o.ToolErrorPolicy = a.opts.ToolErrorPolicy
		}
	})
	if err != nil {
		res := core.Failure(gen.Text, err)
		res.Steps = gen.Iterations
		return a.finish(a.Kind(), start, res)
	}

	res := core.Success(gen.Text)
	res.Steps = gen.Iterations
	res.Incomplete = gen.Capped()
	if res.Incomplete {
		a.logger.Warn("agent.model.incomplete", "agent", a.name, "iterations", gen.Iterations)
	}
	return a.finish(a.Kind(), start, res)
}

package agent

import (
	"context"
	"time"

	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/logging"
)

// Common holds options shared by every agent variant.
type Common struct {
	// Description is informational (shown by CLIs and routers' logs).
	Description string
	// Strict returns failures as errors in addition to the Result.
	Strict bool
	// Logger receives agent events; nil disables logging.
	Logger logging.Logger
}

// BaseAgent bundles identity, strictness and logging. Embed it in concrete
// agent implementations and supply Kind and Run.
type BaseAgent struct {
	name        string
	description string
	strict      bool
	logger      logging.Logger
}

func newBaseAgent(name string, c Common) BaseAgent {
	desc := c.Description
	if desc == "" {
		desc = "Agent " + name
	}
	return BaseAgent{
		name:        name,
		description: desc,
		strict:      c.Strict,
		logger:      logging.OrNoOp(c.Logger),
	}
}

// Name returns the agent name.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a human readable description.
func (b *BaseAgent) Description() string { return b.description }

// Strict reports whether failures are also returned as errors.
func (b *BaseAgent) Strict() bool { return b.strict }

// finish logs the terminal state and applies the strict policy.
func (b *BaseAgent) finish(kind core.AgentKind, start time.Time, res core.Result) (core.Result, error) {
	args := []any{"agent", b.name, "kind", string(kind), "status", res.Status.String(), "steps", res.Steps, "duration_ms", time.Since(start).Milliseconds()}
	if res.Err != nil {
		args = append(args, "error", res.Err.Error())
		b.logger.Warn("agent.run.done", args...)
	} else {
		b.logger.Debug("agent.run.done", args...)
	}

	if b.strict && !res.OK() {
		return res, res.Err
	}
	return res, nil
}

// runChild runs a delegate and folds a returned error into the result, so
// composite agents behave the same whether their children are strict or not.
func runChild(ctx context.Context, child core.Agent, task core.Task) core.Result {
	res, err := child.Run(ctx, task)
	if err != nil && res.Err == nil {
		res = core.Failure(res.Output, err)
	}
	if res.Status == core.StatusFailed && res.Err == nil {
		res.Err = core.NewError(core.KindInternal, "agent."+child.Name(), "failed without error", nil)
	}
	return res
}

// cancelled builds a Cancelled result carrying partial output.
func cancelled(op string, ctx context.Context, partial string) core.Result {
	err := ctx.Err()
	if err == nil {
		err = context.Canceled
	}
	return core.Failure(partial, core.Cancelled(op, err))
}

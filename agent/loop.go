package agent

import (
	"context"
	"strings"
	"time"

	"github.com/hupe1980/echokernel/core"
)

// DefaultStopPhrase marks convergence for LoopAgent and CollaborativeAgent.
const DefaultStopPhrase = "Final version"

// LoopAgentOptions configures a LoopAgent.
type LoopAgentOptions struct {
	Common

	// MaxSteps bounds delegate calls (at least 1).
	MaxSteps int
	// StopPhrase is matched case-insensitively against every output.
	StopPhrase string
	// Interval waits between steps.
	Interval time.Duration
	// TransientRetries re-runs a step that failed with a transient provider error.
	TransientRetries int
	RetryDelay       time.Duration
}

// LoopAgent delegates to its inner agent repeatedly. Every step after the
// first receives the previous output as feedback context on top of the
// original task.
//
// States: Running -> Converged (stop phrase seen) or Exhausted (MaxSteps
// reached). Exhausted is a normal outcome carrying the last output. The
// returned output keeps the stop phrase.
type LoopAgent struct {
	BaseAgent
	inner core.Agent
	opts  LoopAgentOptions
}

// NewLoopAgent creates a LoopAgent around inner.
func NewLoopAgent(name string, inner core.Agent, optFns ...func(o *LoopAgentOptions)) *LoopAgent {
	opts := LoopAgentOptions{
		MaxSteps:         3,
		StopPhrase:       DefaultStopPhrase,
		TransientRetries: 2,
		RetryDelay:       500 * time.Millisecond,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxSteps < 1 {
		opts.MaxSteps = 1
	}

	return &LoopAgent{
		BaseAgent: newBaseAgent(name, opts.Common),
		inner:     inner,
		opts:      opts,
	}
}

// Kind implements core.Agent.
func (l *LoopAgent) Kind() core.AgentKind { return core.KindLoopAgent }

// Run implements core.Agent.
func (l *LoopAgent) Run(ctx context.Context, task core.Task) (core.Result, error) {
	start := time.Now()
	op := "agent." + l.name

	var (
		last  core.Result
		steps []core.Result
		calls int
	)

	done := func(res core.Result) (core.Result, error) {
		res.Steps = calls
		res.Children = steps
		return l.finish(l.Kind(), start, res)
	}

	for step := 1; step <= l.opts.MaxSteps; step++ {
		if ctx.Err() != nil {
			return done(cancelled(op, ctx, last.Output))
		}

		t := task
		if step > 1 {
			t = task.WithContext("Previous output:\n" + last.Output + "\n\nImprove the previous output.")
		}

		l.logger.Debug("agent.loop.step", "agent", l.name, "step", step)

		res, attempts := l.runStep(ctx, t, step)
		calls += attempts
		if !res.OK() && ctx.Err() != nil {
			return done(cancelled(op, ctx, last.Output))
		}
		steps = append(steps, res)

		if !res.OK() {
			out := core.Failure(last.Output, res.Err)
			return done(out)
		}
		last = res

		if ContainsStopPhrase(res.Output, l.opts.StopPhrase) {
			l.logger.Info("agent.loop.converged", "agent", l.name, "step", step)
			return done(core.Result{Status: core.StatusConverged, Output: res.Output, Incomplete: res.Incomplete})
		}

		if step < l.opts.MaxSteps && l.opts.Interval > 0 {
			if !sleepCtx(ctx, l.opts.Interval) {
				return done(cancelled(op, ctx, last.Output))
			}
		}
	}

	l.logger.Info("agent.loop.exhausted", "agent", l.name, "steps", l.opts.MaxSteps)
	return done(core.Result{Status: core.StatusExhausted, Output: last.Output, Incomplete: last.Incomplete})
}

// runStep runs the inner agent once, retrying transient provider failures
// with exponential backoff. It returns the last result and the number of
// delegate calls made.
func (l *LoopAgent) runStep(ctx context.Context, t core.Task, step int) (core.Result, int) {
	var (
		res      core.Result
		attempts int
	)

	_, _ = retryTransient(ctx, l.opts.TransientRetries, l.opts.RetryDelay, func() (core.Result, error) {
		if attempts > 0 {
			l.logger.Warn("agent.loop.retry", "agent", l.name, "step", step, "attempt", attempts+1, "error", res.Err.Error())
		}
		res = runChild(ctx, l.inner, t)
		attempts++
		if res.OK() {
			return res, nil
		}
		return res, res.Err
	})

	return res, attempts
}

// ContainsStopPhrase reports a case-insensitive substring match. An empty
// phrase never matches.
func ContainsStopPhrase(output, phrase string) bool {
	if phrase == "" {
		return false
	}
	return strings.Contains(strings.ToLower(output), strings.ToLower(phrase))
}

// sleepCtx waits for d or until ctx is done; it reports whether d elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

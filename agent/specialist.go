package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/kernel"
)

// ExhaustionPolicy decides the outcome once every routing attempt was rejected.
type ExhaustionPolicy int

const (
	// ExhaustLowConfidence returns the last output marked LowConfidence.
	ExhaustLowConfidence ExhaustionPolicy = iota
	// ExhaustFail fails with a validation error.
	ExhaustFail
)

// Validator inspects a specialist's output; a non-nil error rejects it and
// its message is fed back into the next classification request.
type Validator func(ctx context.Context, output string) error

// SpecialistRouterOptions configures a SpecialistRouterAgent.
type SpecialistRouterOptions struct {
	Common

	// Prompt replaces the default classification instructions.
	Prompt string
	// RetryCount is the number of routing attempts (at least 1).
	RetryCount int
	Validator  Validator
	// ExhaustionPolicy applies once all attempts were rejected.
	ExhaustionPolicy ExhaustionPolicy
	// TransientRetries bounds retries of a single classification request.
	TransientRetries int
	RetryDelay       time.Duration
}

// SpecialistRouterAgent classifies and dispatches like RouterAgent, but
// validates the specialist output and re-classifies with feedback when the
// name is unknown or the output is rejected.
type SpecialistRouterAgent struct {
	BaseAgent
	classifier  Generator
	specialists *specialistSet
	opts        SpecialistRouterOptions
}

// NewSpecialistRouterAgent creates a SpecialistRouterAgent.
func NewSpecialistRouterAgent(name string, classifier Generator, specialists []core.Agent, optFns ...func(o *SpecialistRouterOptions)) (*SpecialistRouterAgent, error) {
	opts := SpecialistRouterOptions{
		RetryCount:       3,
		TransientRetries: 2,
		RetryDelay:       500 * time.Millisecond,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.RetryCount < 1 {
		opts.RetryCount = 1
	}

	set, err := newSpecialistSet(specialists)
	if err != nil {
		return nil, err
	}
	if opts.Prompt == "" {
		opts.Prompt = "Given a subtask, choose the most appropriate specialist agent to handle it.\n" +
			"Available agents: " + strings.Join(set.Names(), ", ") + "\n" +
			"Respond with the name only."
	}

	return &SpecialistRouterAgent{
		BaseAgent:   newBaseAgent(name, opts.Common),
		classifier:  classifier,
		specialists: set,
		opts:        opts,
	}, nil
}

// Kind implements core.Agent.
func (r *SpecialistRouterAgent) Kind() core.AgentKind { return core.KindSpecialistRouter }

// Specialists returns the specialist names in order.
func (r *SpecialistRouterAgent) Specialists() []string { return r.specialists.Names() }

// Run implements core.Agent.
func (r *SpecialistRouterAgent) Run(ctx context.Context, task core.Task) (core.Result, error) {
	start := time.Now()
	op := "agent." + r.name
	names := strings.Join(r.specialists.Names(), ", ")

	prompt := fmt.Sprintf("%s\nSubtask: %s", r.opts.Prompt, task.Prompt())

	var (
		last     *core.Result
		reason   error
		attempts []core.Result
	)

	for attempt := 1; attempt <= r.opts.RetryCount; attempt++ {
		if ctx.Err() != nil {
			return r.finish(r.Kind(), start, withAttempts(cancelled(op, ctx, outputOf(last)), attempts, attempt-1))
		}

		gen, err := retryTransient(ctx, r.opts.TransientRetries, r.opts.RetryDelay, func() (kernel.Generation, error) {
			return r.classifier.GenerateText(ctx, prompt, plainText)
		})
		if err != nil {
			if ctx.Err() != nil || core.KindOf(err) == core.KindCancelled {
				return r.finish(r.Kind(), start, withAttempts(cancelled(op, ctx, outputOf(last)), attempts, attempt-1))
			}
			reason = err
			r.logger.Warn("agent.specialist.classify_failed", "agent", r.name, "attempt", attempt, "error", err.Error())
			continue
		}

		name, ok := r.specialists.Match(gen.Text)
		if !ok {
			reason = core.NewError(core.KindRouting, op, fmt.Sprintf("no agent matches %q", strings.TrimSpace(gen.Text)), nil)
			r.logger.Info("agent.specialist.invalid_name", "agent", r.name, "attempt", attempt, "response", gen.Text)
			prompt = fmt.Sprintf("The previous agent name was invalid (%q). Please choose from the following list: %s\nSubtask: %s",
				strings.TrimSpace(gen.Text), names, task.Prompt())
			continue
		}

		r.logger.Info("agent.specialist.dispatch", "agent", r.name, "attempt", attempt, "target", name)
		res := runChild(ctx, r.specialists.byName[name], task)
		attempts = append(attempts, res)

		if res.Status == core.StatusCancelled {
			return r.finish(r.Kind(), start, withAttempts(res, attempts, attempt))
		}

		if !res.OK() {
			reason = res.Err
		} else if r.opts.Validator != nil {
			reason = r.opts.Validator(ctx, res.Output)
		} else {
			reason = nil
		}

		if reason == nil {
			return r.finish(r.Kind(), start, withAttempts(res, attempts, attempt))
		}

		last = &res
		r.logger.Info("agent.specialist.rejected", "agent", r.name, "attempt", attempt, "target", name, "reason", reason.Error())
		prompt = fmt.Sprintf("Previous result from %s failed validation: %v. Please choose a different agent from: %s\nSubtask: %s",
			name, reason, names, task.Prompt())
	}

	return r.finish(r.Kind(), start, withAttempts(r.exhausted(op, last, reason), attempts, r.opts.RetryCount))
}

func (r *SpecialistRouterAgent) exhausted(op string, last *core.Result, reason error) core.Result {
	msg := fmt.Sprintf("failed to route task after %d attempts", r.opts.RetryCount)

	if last == nil {
		return core.Failure("", core.NewError(core.KindRouting, op, msg, reason))
	}

	if r.opts.ExhaustionPolicy == ExhaustFail || !last.OK() {
		return core.Failure(last.Output, core.NewError(core.KindValidation, op, msg, reason))
	}

	res := *last
	res.LowConfidence = true
	r.logger.Warn("agent.specialist.low_confidence", "agent", r.name, "reason", reason.Error())
	return res
}

// withAttempts records the dispatched specialist results and the routing
// attempts consumed.
func withAttempts(res core.Result, attempts []core.Result, steps int) core.Result {
	res.Children = attempts
	res.Steps = steps
	return res
}

func outputOf(r *core.Result) string {
	if r == nil {
		return ""
	}
	return r.Output
}

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/internal/util"
	"github.com/hupe1980/echokernel/kernel"
)

// DefaultPlanPrompt asks for a numbered breakdown. {{.task}} is the task prompt.
const DefaultPlanPrompt = "You are a planning agent.\n" +
	"Decompose the following task into 3–5 concrete, sequential subtasks:\n\n" +
	"Task: {{.task}}\n\n" +
	"Return the list of subtasks as plain numbered steps."

// TaskDecomposerOptions configures a TaskDecomposerAgent.
type TaskDecomposerOptions struct {
	Common

	// PlanPrompt is a text/template rendered with "task" set to the task prompt.
	PlanPrompt string
	// ChainResults passes the outputs of earlier subtasks to later ones.
	ChainResults bool
	// MaxSubtasks truncates longer plans when positive.
	MaxSubtasks int
	// TransientRetries bounds retries of the planning request.
	TransientRetries int
	RetryDelay       time.Duration
}

// TaskDecomposerAgent asks the planner for a numbered plan and runs each
// subtask, in order, against the executor agent.
//
// The report holds one "Subtask i Result:" section per subtask. A failing
// subtask embeds "Error: <msg>" in its section and the remaining subtasks
// still run. The run fails only when every subtask failed.
type TaskDecomposerAgent struct {
	BaseAgent
	planner  Generator
	executor core.Agent
	opts     TaskDecomposerOptions
}

// NewTaskDecomposerAgent creates a TaskDecomposerAgent.
func NewTaskDecomposerAgent(name string, planner Generator, executor core.Agent, optFns ...func(o *TaskDecomposerOptions)) *TaskDecomposerAgent {
	opts := TaskDecomposerOptions{
		PlanPrompt:       DefaultPlanPrompt,
		TransientRetries: 2,
		RetryDelay:       500 * time.Millisecond,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &TaskDecomposerAgent{
		BaseAgent: newBaseAgent(name, opts.Common),
		planner:   planner,
		executor:  executor,
		opts:      opts,
	}
}

// Kind implements core.Agent.
func (d *TaskDecomposerAgent) Kind() core.AgentKind { return core.KindTaskDecomposer }

// Plan requests and parses a plan for task. It never returns an empty plan.
func (d *TaskDecomposerAgent) Plan(ctx context.Context, task core.Task) ([]string, error) {
	prompt, err := util.RenderTemplate(d.opts.PlanPrompt, map[string]any{"task": task.Prompt()})
	if err != nil {
		return nil, core.NewError(core.KindInternal, "agent."+d.name, "render plan prompt", err)
	}

	gen, err := retryTransient(ctx, d.opts.TransientRetries, d.opts.RetryDelay, func() (kernel.Generation, error) {
		return d.planner.GenerateText(ctx, prompt, plainText)
	})
	if err != nil {
		return nil, err
	}

	plan := ParsePlan(gen.Text, task.Description)
	if d.opts.MaxSubtasks > 0 && len(plan) > d.opts.MaxSubtasks {
		plan = plan[:d.opts.MaxSubtasks]
	}
	return plan, nil
}

// Run implements core.Agent.
func (d *TaskDecomposerAgent) Run(ctx context.Context, task core.Task) (core.Result, error) {
	start := time.Now()
	op := "agent." + d.name

	plan, err := d.Plan(ctx, task)
	if err != nil {
		if ctx.Err() != nil {
			return d.finish(d.Kind(), start, cancelled(op, ctx, ""))
		}
		return d.finish(d.Kind(), start, core.Failure("", err))
	}

	d.logger.Info("agent.decomposer.plan", "agent", d.name, "subtasks", len(plan))

	return d.finish(d.Kind(), start, d.Execute(ctx, task, plan))
}

// Execute runs a fixed plan. Identical plans and subtask outputs always
// produce byte-identical reports.
func (d *TaskDecomposerAgent) Execute(ctx context.Context, task core.Task, plan []string) core.Result {
	op := "agent." + d.name
	shared := fmt.Sprintf("Overall task: %s\n\nPlan:\n%s", task.Description, numbered(plan))

	var (
		sections = make([]string, 0, len(plan))
		children = make([]core.Result, 0, len(plan))
		outputs  []string
		failed   int
		lastErr  error
	)

	for i, sub := range plan {
		if ctx.Err() != nil {
			res := cancelled(op, ctx, strings.Join(sections, "\n"))
			res.Steps = len(children)
			res.Children = children
			return res
		}

		t := core.Task{Description: sub, Metadata: task.Metadata}.WithContext(shared)
		if d.opts.ChainResults && len(outputs) > 0 {
			t = t.WithContext("Previous subtask results:\n" + strings.Join(outputs, "\n\n"))
		}

		d.logger.Debug("agent.decomposer.subtask", "agent", d.name, "index", i+1, "subtask", sub)
		res := runChild(ctx, d.executor, t)
		children = append(children, res)

		if res.Status == core.StatusCancelled {
			out := cancelled(op, ctx, strings.Join(sections, "\n"))
			out.Steps = len(children)
			out.Children = children
			return out
		}

		body := res.Output
		if !res.OK() {
			failed++
			lastErr = res.Err
			body = fmt.Sprintf("Error: %v", res.Err)
			d.logger.Warn("agent.decomposer.subtask_failed", "agent", d.name, "index", i+1, "error", res.Err.Error())
		} else {
			outputs = append(outputs, fmt.Sprintf("Subtask %d: %s", i+1, res.Output))
		}

		sections = append(sections, fmt.Sprintf("Subtask %d Result:\n%s\n", i+1, body))
	}

	report := strings.Join(sections, "\n")

	var res core.Result
	if failed == len(plan) {
		res = core.Failure(report, fmt.Errorf("all %d subtasks failed: %w", failed, lastErr))
	} else {
		res = core.Success(report)
	}
	res.Steps = len(plan)
	res.Children = children
	return res
}

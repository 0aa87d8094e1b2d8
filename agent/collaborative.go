package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/echokernel/core"
)

// CollaborativeAgentOptions configures a CollaborativeAgent.
type CollaborativeAgentOptions struct {
	Common

	// RoleA and RoleB label the turns of the two agents; they default to the agents' names.
	RoleA, RoleB string
	// MaxTurns bounds individual turns (A, B, A, ... counts each).
	MaxTurns int
	// StopPhrase is matched case-insensitively against every turn output.
	StopPhrase string
	// Transcript returns every turn as "Role: output" blocks instead of the final output only.
	Transcript bool
}

// CollaborativeAgent alternates two agents in a bounded dialogue. Agent A
// receives the original task; every later turn receives "Role: output" of
// the previous turn with the original task as context.
//
// A failed turn is recorded as "Error: <msg>" and the dialogue continues.
// The run converges when a turn contains the stop phrase and is exhausted
// after MaxTurns.
type CollaborativeAgent struct {
	BaseAgent
	agents [2]core.Agent
	roles  [2]string
	opts   CollaborativeAgentOptions
}

// NewCollaborativeAgent creates a CollaborativeAgent.
func NewCollaborativeAgent(name string, a, b core.Agent, optFns ...func(o *CollaborativeAgentOptions)) *CollaborativeAgent {
	opts := CollaborativeAgentOptions{
		MaxTurns:   10,
		StopPhrase: DefaultStopPhrase,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxTurns < 1 {
		opts.MaxTurns = 1
	}
	if opts.RoleA == "" {
		opts.RoleA = a.Name()
	}
	if opts.RoleB == "" {
		opts.RoleB = b.Name()
	}

	return &CollaborativeAgent{
		BaseAgent: newBaseAgent(name, opts.Common),
		agents:    [2]core.Agent{a, b},
		roles:     [2]string{opts.RoleA, opts.RoleB},
		opts:      opts,
	}
}

// Kind implements core.Agent.
func (c *CollaborativeAgent) Kind() core.AgentKind { return core.KindCollaborativeAgent }

// Run implements core.Agent.
func (c *CollaborativeAgent) Run(ctx context.Context, task core.Task) (core.Result, error) {
	start := time.Now()
	op := "agent." + c.name

	var (
		turns      []string
		children   []core.Result
		lastOutput string
	)

	output := func() string {
		if c.opts.Transcript {
			return strings.Join(turns, "\n\n")
		}
		return lastOutput
	}
	done := func(res core.Result) (core.Result, error) {
		res.Steps = len(children)
		res.Children = children
		return c.finish(c.Kind(), start, res)
	}

	input := task
	for turn := 1; turn <= c.opts.MaxTurns; turn++ {
		if ctx.Err() != nil {
			return done(cancelled(op, ctx, output()))
		}

		idx := (turn - 1) % 2
		role := c.roles[idx]

		c.logger.Debug("agent.collaborative.turn", "agent", c.name, "turn", turn, "role", role)
		res := runChild(ctx, c.agents[idx], input)
		children = append(children, res)

		if res.Status == core.StatusCancelled {
			return done(cancelled(op, ctx, output()))
		}

		text := res.Output
		if !res.OK() {
			text = fmt.Sprintf("Error: %v", res.Err)
			c.logger.Warn("agent.collaborative.turn_failed", "agent", c.name, "turn", turn, "role", role, "error", res.Err.Error())
		}
		turns = append(turns, fmt.Sprintf("%s: %s", role, text))
		lastOutput = text

		if res.OK() && ContainsStopPhrase(text, c.opts.StopPhrase) {
			c.logger.Info("agent.collaborative.converged", "agent", c.name, "turn", turn, "role", role)
			return done(core.Result{Status: core.StatusConverged, Output: output()})
		}

		input = core.Task{
			Description: fmt.Sprintf("%s: %s", role, text),
			Metadata:    task.Metadata,
		}.WithContext("Original task: " + task.Description)
	}

	c.logger.Info("agent.collaborative.exhausted", "agent", c.name, "turns", c.opts.MaxTurns)
	return done(core.Result{Status: core.StatusExhausted, Output: output()})
}

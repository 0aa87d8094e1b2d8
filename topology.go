package echokernel

import (
	"fmt"
	"strings"

	"github.com/hupe1980/echokernel/agent"
	"github.com/hupe1980/echokernel/config"
	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/evaluation"
	"github.com/hupe1980/echokernel/kernel"
)

// buildAgents instantiates the declared agents so that every agent is built
// after the agents it delegates to.
func (ek *EchoKernel) buildAgents(decls []config.AgentConfig) error {
	order, err := topoOrder(decls)
	if err != nil {
		return err
	}

	for _, decl := range order {
		a, err := ek.buildAgent(decl)
		if err != nil {
			return fmt.Errorf("agent %s: %w", decl.Name, err)
		}
		if err := ek.RegisterAgent(a); err != nil {
			return err
		}
	}
	return nil
}

// topoOrder sorts decls depth first by dependency and reports the first
// reference cycle as "agent cycle: a -> b -> a".
func topoOrder(decls []config.AgentConfig) ([]config.AgentConfig, error) {
	byName := make(map[string]config.AgentConfig, len(decls))
	for _, d := range decls {
		byName[d.Name] = d
	}

	const (
		unvisited = iota
		visiting
		done
	)

	state := make(map[string]int, len(decls))
	order := make([]config.AgentConfig, 0, len(decls))
	var path []string

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			start := 0
			for i, p := range path {
				if p == name {
					start = i
					break
				}
			}
			cycle := append(append([]string{}, path[start:]...), name)
			return fmt.Errorf("agent cycle: %s", strings.Join(cycle, " -> "))
		}

		d, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown agent %q", name)
		}

		state[name] = visiting
		path = append(path, name)

		for _, dep := range d.Dependencies() {
			if err := visit(dep); err != nil {
				return err
			}
		}

		path = path[:len(path)-1]
		state[name] = done
		order = append(order, d)
		return nil
	}

	for _, d := range decls {
		if err := visit(d.Name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (ek *EchoKernel) buildAgent(d config.AgentConfig) (core.Agent, error) {
	common := agent.Common{
		Description: d.Description,
		Strict:      d.Strict,
		Logger:      component(ek.logger, "agent"),
	}

	switch d.Type {
	case config.AgentModel:
		var policy *kernel.ToolErrorPolicy
		if d.ToolErrorPolicy != "" {
			p, err := kernel.ParseToolErrorPolicy(d.ToolErrorPolicy)
			if err != nil {
				return nil, err
			}
			policy = &p
		}
		return agent.NewModelAgent(d.Name, ek.kernel, func(o *agent.ModelAgentOptions) {
			o.Common = common
			if d.Instruction != "" {
				o.Instruction = agent.NewInstructionFromText(d.Instruction)
			}
			o.Tools = d.Tools
			o.DisableTools = d.DisableTools
			o.Temperature = d.Temperature
			o.MaxTokens = d.MaxTokens
			o.MaxIterations = d.MaxIterations
			o.ToolErrorPolicy = policy
		}), nil

	case config.AgentTaskDecomposer:
		executor, err := ek.lookup(d.Executor)
		if err != nil {
			return nil, err
		}
		return agent.NewTaskDecomposerAgent(d.Name, ek.kernel, executor, func(o *agent.TaskDecomposerOptions) {
			o.Common = common
			if d.PlanPrompt != "" {
				o.PlanPrompt = d.PlanPrompt
			}
			o.ChainResults = d.ChainResults
			o.MaxSubtasks = d.MaxSubtasks
			if d.TransientRetries != nil {
				o.TransientRetries = *d.TransientRetries
			}
		}), nil

	case config.AgentRouter:
		specialists, err := ek.lookupAll(d.Agents)
		if err != nil {
			return nil, err
		}
		return agent.NewRouterAgent(d.Name, ek.kernel, specialists, func(o *agent.RouterOptions) {
			o.Common = common
			if d.Prompt != "" {
				o.Prompt = d.Prompt
			}
			o.Default = d.Default
			if d.TransientRetries != nil {
				o.TransientRetries = *d.TransientRetries
			}
		})

	case config.AgentSpecialistRouter:
		specialists, err := ek.lookupAll(d.Agents)
		if err != nil {
			return nil, err
		}
		validator, err := ek.buildValidator(d)
		if err != nil {
			return nil, err
		}
		return agent.NewSpecialistRouterAgent(d.Name, ek.kernel, specialists, func(o *agent.SpecialistRouterOptions) {
			o.Common = common
			o.Prompt = d.Prompt
			if d.RetryCount > 0 {
				o.RetryCount = d.RetryCount
			}
			o.Validator = validator
			if d.ExhaustionPolicy == "fail" {
				o.ExhaustionPolicy = agent.ExhaustFail
			}
			if d.TransientRetries != nil {
				o.TransientRetries = *d.TransientRetries
			}
		})

	case config.AgentLoop:
		inner, err := ek.lookup(d.Inner)
		if err != nil {
			return nil, err
		}
		return agent.NewLoopAgent(d.Name, inner, func(o *agent.LoopAgentOptions) {
			o.Common = common
			if d.MaxSteps > 0 {
				o.MaxSteps = d.MaxSteps
			}
			if d.StopPhrase != "" {
				o.StopPhrase = d.StopPhrase
			}
			o.Interval = d.Interval
			if d.TransientRetries != nil {
				o.TransientRetries = *d.TransientRetries
			}
		}), nil

	case config.AgentMemory:
		inner, err := ek.lookup(d.Inner)
		if err != nil {
			return nil, err
		}
		if !ek.kernel.HasProvider(kernel.Memory) || !ek.kernel.HasProvider(kernel.Embedding) {
			return nil, fmt.Errorf("memory agent requires an embedding provider and a memory store")
		}
		return agent.NewMemoryAgent(d.Name, ek.kernel, ek.kernel.Memory(), inner, func(o *agent.MemoryAgentOptions) {
			o.Common = common
			if d.TopK > 0 {
				o.TopK = d.TopK
			}
			o.MinScore = d.MinScore
			o.Persist = d.Persist
		}), nil

	case config.AgentCollaborative:
		pair, err := ek.lookupAll(d.Agents)
		if err != nil {
			return nil, err
		}
		if len(pair) != 2 {
			return nil, fmt.Errorf("collaborative agent needs exactly two agents, got %d", len(pair))
		}
		return agent.NewCollaborativeAgent(d.Name, pair[0], pair[1], func(o *agent.CollaborativeAgentOptions) {
			o.Common = common
			o.RoleA = d.RoleA
			o.RoleB = d.RoleB
			if d.MaxTurns > 0 {
				o.MaxTurns = d.MaxTurns
			}
			if d.StopPhrase != "" {
				o.StopPhrase = d.StopPhrase
			}
			o.Transcript = d.Transcript
		}), nil

	default:
		return nil, fmt.Errorf("unsupported agent type %q", d.Type)
	}
}

// buildValidator returns nil when no validator is declared.
func (ek *EchoKernel) buildValidator(d config.AgentConfig) (agent.Validator, error) {
	var e evaluation.Evaluator

	switch d.Validator {
	case "":
		return nil, nil
	case "non_empty":
		e = evaluation.NonEmpty(1)
	case "contains":
		e = evaluation.ContainsAll(d.ValidatorTerms...)
	case "judge":
		judge, err := evaluation.NewModelJudge(ek.kernel, func(o *evaluation.JudgeOptions) {
			o.Criteria = d.ValidatorCriteria
		})
		if err != nil {
			return nil, err
		}
		e = evaluation.All(evaluation.NonEmpty(1), judge)
	default:
		return nil, fmt.Errorf("unsupported validator %q", d.Validator)
	}

	return evaluation.Validator(e), nil
}

func (ek *EchoKernel) lookupAll(names []string) ([]core.Agent, error) {
	agents := make([]core.Agent, 0, len(names))
	for _, n := range names {
		a, err := ek.lookup(n)
		if err != nil {
			return nil, err
		}
		agents = append(agents, a)
	}
	return agents, nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

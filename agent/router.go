package agent

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/kernel"
)

// DefaultRouterPrompt introduces the classification request.
const DefaultRouterPrompt = "You are a routing agent. Choose the agent best suited to handle the task."

// RouterOptions configures a RouterAgent.
type RouterOptions struct {
	Common

	// Prompt precedes the list of agents and the task.
	Prompt string
	// Default names the specialist used when the classification matches no
	// agent. Empty makes an unmatched classification a routing error.
	Default string
	// TransientRetries bounds retries of the classification request.
	TransientRetries int
	RetryDelay       time.Duration
}

// RouterAgent issues one classification request constrained to the names of
// its specialists and dispatches the task to the chosen one.
type RouterAgent struct {
	BaseAgent
	classifier  Generator
	specialists *specialistSet
	opts        RouterOptions
}

// NewRouterAgent creates a RouterAgent. Specialists are offered in the given order.
func NewRouterAgent(name string, classifier Generator, specialists []core.Agent, optFns ...func(o *RouterOptions)) (*RouterAgent, error) {
	opts := RouterOptions{
		Prompt:           DefaultRouterPrompt,
		TransientRetries: 2,
		RetryDelay:       500 * time.Millisecond,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	set, err := newSpecialistSet(specialists)
	if err != nil {
		return nil, err
	}
	if opts.Default != "" {
		if _, ok := set.byName[opts.Default]; !ok {
			return nil, fmt.Errorf("router %s: default agent %q is not a specialist", name, opts.Default)
		}
	}

	return &RouterAgent{
		BaseAgent:   newBaseAgent(name, opts.Common),
		classifier:  classifier,
		specialists: set,
		opts:        opts,
	}, nil
}

// Kind implements core.Agent.
func (r *RouterAgent) Kind() core.AgentKind { return core.KindRouter }

// Specialists returns the specialist names in order.
func (r *RouterAgent) Specialists() []string { return r.specialists.Names() }

// Run implements core.Agent.
func (r *RouterAgent) Run(ctx context.Context, task core.Task) (core.Result, error) {
	start := time.Now()
	op := "agent." + r.name

	prompt := fmt.Sprintf("%s\nAvailable agents: %s\nTask: %s\nRespond ONLY with the name of the best agent.",
		r.opts.Prompt, strings.Join(r.specialists.Names(), ", "), task.Prompt())

	calls := 0
	gen, err := retryTransient(ctx, r.opts.TransientRetries, r.opts.RetryDelay, func() (kernel.Generation, error) {
		calls++
		return r.classifier.GenerateText(ctx, prompt, plainText)
	})
	if err != nil {
		if ctx.Err() != nil {
			return r.finish(r.Kind(), start, cancelled(op, ctx, ""))
		}
		res := core.Failure("", err)
		res.Steps = calls
		return r.finish(r.Kind(), start, res)
	}

	name, ok := r.specialists.Match(gen.Text)
	if !ok {
		if r.opts.Default == "" {
			res := core.Failure("", core.NewError(core.KindRouting, op, fmt.Sprintf("no agent matches %q", strings.TrimSpace(gen.Text)), nil))
			res.Steps = calls
			return r.finish(r.Kind(), start, res)
		}
		r.logger.Info("agent.router.default", "agent", r.name, "response", gen.Text, "default", r.opts.Default)
		name = r.opts.Default
	}

	r.logger.Info("agent.router.dispatch", "agent", r.name, "target", name)

	res := runChild(ctx, r.specialists.byName[name], task)
	return r.finish(r.Kind(), start, res)
}

// specialistSet keeps specialists in registration order and matches
// classification responses against their names.
type specialistSet struct {
	order  []string
	byName map[string]core.Agent
	words  map[string]*regexp.Regexp
}

func newSpecialistSet(agents []core.Agent) (*specialistSet, error) {
	if len(agents) == 0 {
		return nil, fmt.Errorf("at least one specialist is required")
	}
	s := &specialistSet{byName: make(map[string]core.Agent, len(agents)), words: make(map[string]*regexp.Regexp, len(agents))}
	for _, a := range agents {
		if a == nil {
			return nil, fmt.Errorf("nil specialist")
		}
		name := a.Name()
		if _, dup := s.byName[name]; dup {
			return nil, fmt.Errorf("duplicate specialist %q", name)
		}
		s.order = append(s.order, name)
		s.byName[name] = a
		s.words[name] = regexp.MustCompile(`(?i)(^|[^\pL\pN_])` + regexp.QuoteMeta(name) + `($|[^\pL\pN_])`)
	}
	return s, nil
}

// Names returns the specialist names in order.
func (s *specialistSet) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Match resolves a classification response. A normalized case-insensitive
// exact match wins; otherwise exactly one name must appear as a whole word.
func (s *specialistSet) Match(response string) (string, bool) {
	norm := normalizeName(response)
	if norm == "" {
		return "", false
	}
	for _, name := range s.order {
		if strings.EqualFold(norm, name) {
			return name, true
		}
	}

	var found []string
	for _, name := range s.order {
		if s.words[name].MatchString(response) {
			found = append(found, name)
		}
	}
	if len(found) == 1 {
		return found[0], true
	}
	return "", false
}

func normalizeName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "`'\"*_ \t\r\n")
	s = strings.TrimRight(s, ".!?:;,")
	return strings.TrimSpace(s)
}

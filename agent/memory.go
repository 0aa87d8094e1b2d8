package agent

import (
	"context"
	"strings"
	"time"

	"github.com/hupe1980/echokernel/core"
)

// MemoryContextHeader introduces recalled records in the injected context block.
const MemoryContextHeader = "Use the following prior context if useful:"

// MemoryAgentOptions configures a MemoryAgent.
type MemoryAgentOptions struct {
	Common

	// TopK is the number of records to recall.
	TopK int
	// MinScore drops recalled records scoring below it.
	MinScore float64
	// Persist stores successful outputs back into memory with agent provenance.
	Persist bool
}

// MemoryAgent recalls the records most similar to the task, injects them as
// context and delegates. Recall failures are logged and the run proceeds
// without injected context. The inner result is returned unmodified.
type MemoryAgent struct {
	BaseAgent
	embedder core.Embedder
	store    core.MemoryStore
	inner    core.Agent
	opts     MemoryAgentOptions
}

// NewMemoryAgent creates a MemoryAgent.
func NewMemoryAgent(name string, embedder core.Embedder, store core.MemoryStore, inner core.Agent, optFns ...func(o *MemoryAgentOptions)) *MemoryAgent {
	opts := MemoryAgentOptions{TopK: 5}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &MemoryAgent{
		BaseAgent: newBaseAgent(name, opts.Common),
		embedder:  embedder,
		store:     store,
		inner:     inner,
		opts:      opts,
	}
}

// Kind implements core.Agent.
func (m *MemoryAgent) Kind() core.AgentKind { return core.KindMemoryAgent }

// Run implements core.Agent.
func (m *MemoryAgent) Run(ctx context.Context, task core.Task) (core.Result, error) {
	start := time.Now()

	t := task
	if block := m.recall(ctx, task); block != "" {
		t = task.WithContext(block)
	}

	res := runChild(ctx, m.inner, t)

	if m.opts.Persist && res.OK() && ctx.Err() == nil {
		m.persist(ctx, task, res)
	}

	return m.finish(m.Kind(), start, res)
}

// available reports whether both memory ports are configured.
func (m *MemoryAgent) available() bool { return m.embedder != nil && m.store != nil }

func (m *MemoryAgent) recall(ctx context.Context, task core.Task) string {
	if m.opts.TopK <= 0 || ctx.Err() != nil {
		return ""
	}
	if !m.available() {
		m.logger.Warn("agent.memory.recall_failed", "agent", m.name, "stage", "ports", "error", "embedder or memory store not configured")
		return ""
	}

	vec, err := m.embedder.Embed(ctx, task.Description)
	if err != nil {
		m.logger.Warn("agent.memory.recall_failed", "agent", m.name, "stage", "embed", "error", err.Error())
		return ""
	}

	results, err := m.store.Search(ctx, vec, m.opts.TopK)
	if err != nil {
		m.logger.Warn("agent.memory.recall_failed", "agent", m.name, "stage", "search", "error", err.Error())
		return ""
	}

	var b strings.Builder
	n := 0
	for _, r := range results {
		if r.Score < m.opts.MinScore || strings.TrimSpace(r.Record.Text) == "" {
			continue
		}
		if n == 0 {
			b.WriteString(MemoryContextHeader)
		}
		b.WriteString("\n- ")
		b.WriteString(r.Record.Text)
		n++
	}

	m.logger.Debug("agent.memory.recalled", "agent", m.name, "records", n)
	return b.String()
}

func (m *MemoryAgent) persist(ctx context.Context, task core.Task, res core.Result) {
	if strings.TrimSpace(res.Output) == "" || !m.available() {
		return
	}

	vec, err := m.embedder.Embed(ctx, res.Output)
	if err != nil {
		m.logger.Warn("agent.memory.persist_failed", "agent", m.name, "stage", "embed", "error", err.Error())
		return
	}

	_, err = m.store.Add(ctx, res.Output, vec, map[string]any{
		core.MetadataProvenance: core.ProvenanceAgent,
		core.MetadataAgent:      m.name,
		core.MetadataTask:       task.Description,
	})
	if err != nil {
		m.logger.Warn("agent.memory.persist_failed", "agent", m.name, "stage", "add", "error", err.Error())
	}
}

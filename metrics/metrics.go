// Package metrics records kernel, tool and agent observations. Recorder is
// the port used by the rest of the module; Prometheus backs it with
// client_golang collectors and Noop discards everything.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder receives observations from the kernel, tool registry and runner.
type Recorder interface {
	ObserveGeneration(model, status string, iterations int, dur time.Duration, err error)
	ObserveTokens(model string, prompt, completion int)
	ObserveToolCall(tool string, dur time.Duration, err error)
	ObserveAgentRun(agent, kind, status string, dur time.Duration)
}

// Noop discards all observations.
type Noop struct{}

func (Noop) ObserveGeneration(string, string, int, time.Duration, error) {}
func (Noop) ObserveTokens(string, int, int)                              {}
func (Noop) ObserveToolCall(string, time.Duration, error)                {}
func (Noop) ObserveAgentRun(string, string, string, time.Duration)       {}

// OrNoop returns r, or Noop when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return Noop{}
	}
	return r
}

// Prometheus is a Recorder backed by prometheus collectors.
type Prometheus struct {
	generations        *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	iterations         *prometheus.HistogramVec
	tokens             *prometheus.CounterVec
	toolCalls          *prometheus.CounterVec
	toolDuration       *prometheus.HistogramVec
	agentRuns          *prometheus.CounterVec
	agentDuration      *prometheus.HistogramVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus registers the echokernel collectors with reg. A nil reg uses
// a fresh registry, which is convenient in tests.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Prometheus{
		generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echokernel",
			Name:      "generations_total",
			Help:      "Text generations by model and terminal status.",
		}, []string{"model", "status"}),
		generationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "echokernel",
			Name:      "generation_duration_seconds",
			Help:      "Wall time of a text generation including tool round trips.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"model"}),
		iterations: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "echokernel",
			Name:      "generation_iterations",
			Help:      "Provider requests issued per generation.",
			Buckets:   []float64{1, 2, 3, 5, 8, 10, 20},
		}, []string{"model"}),
		tokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echokernel",
			Name:      "tokens_total",
			Help:      "Tokens reported by providers.",
		}, []string{"model", "direction"}),
		toolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echokernel",
			Name:      "tool_calls_total",
			Help:      "Tool executions by tool and outcome.",
		}, []string{"tool", "outcome"}),
		toolDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "echokernel",
			Name:      "tool_duration_seconds",
			Help:      "Tool execution time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		agentRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "echokernel",
			Name:      "agent_runs_total",
			Help:      "Agent runs by agent, kind and status.",
		}, []string{"agent", "kind", "status"}),
		agentDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "echokernel",
			Name:      "agent_run_duration_seconds",
			Help:      "Agent run wall time.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"agent"}),
	}
}

func (p *Prometheus) ObserveGeneration(model, status string, iterations int, dur time.Duration, err error) {
	if err != nil {
		status = "error"
	}
	p.generations.WithLabelValues(model, status).Inc()
	p.generationDuration.WithLabelValues(model).Observe(dur.Seconds())
	p.iterations.WithLabelValues(model).Observe(float64(iterations))
}

func (p *Prometheus) ObserveTokens(model string, prompt, completion int) {
	p.tokens.WithLabelValues(model, "prompt").Add(float64(prompt))
	p.tokens.WithLabelValues(model, "completion").Add(float64(completion))
}

func (p *Prometheus) ObserveToolCall(tool string, dur time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	p.toolCalls.WithLabelValues(tool, outcome).Inc()
	p.toolDuration.WithLabelValues(tool).Observe(dur.Seconds())
}

func (p *Prometheus) ObserveAgentRun(agent, kind, status string, dur time.Duration) {
	p.agentRuns.WithLabelValues(agent, kind, status).Inc()
	p.agentDuration.WithLabelValues(agent).Observe(dur.Seconds())
}

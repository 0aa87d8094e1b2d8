package kernel

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/model"
)

// GenerationStatus is the terminal state of a GenerateText call.
type GenerationStatus int

const (
	// StatusComplete means the provider returned a response without tool calls.
	StatusComplete GenerationStatus = iota
	// StatusCapped means the iteration cap was reached while the provider still requested tools.
	StatusCapped
)

func (s GenerationStatus) String() string {
	if s == StatusCapped {
		return "capped"
	}
	return "complete"
}

// ToolInvocation records one resolved tool call.
type ToolInvocation struct {
	Call   model.ToolCall
	Output string
	Err    error
}

// Generation is the result of GenerateText.
type Generation struct {
	Text       string
	Status     GenerationStatus
	Iterations int // provider requests issued
	ToolCalls  []ToolInvocation
	Usage      model.TokenUsage
}

// Capped reports whether the generation stopped at the iteration cap.
func (g Generation) Capped() bool { return g.Status == StatusCapped }

// GenerateOptions tune a single GenerateText call.
type GenerateOptions struct {
	SystemMessage string
	ToolChoice    model.ToolChoice
	Temperature   *float64
	MaxTokens     int64
	// Tools restricts the offered tools to the named subset. Empty offers all.
	Tools []string
	// DisableTools sends no tool definitions at all.
	DisableTools bool
	// MaxIterations overrides the kernel cap when positive.
	MaxIterations int
	// ToolErrorPolicy overrides the kernel policy when non-nil.
	ToolErrorPolicy *ToolErrorPolicy
}

// GenerateText sends prompt to the text-generation provider and resolves tool
// calls until the provider answers without tools or the iteration cap is hit.
//
// The cap counts provider requests. When the last allowed response still asks
// for tools, those calls are not executed: the generation returns with
// StatusCapped and the text of that response. Hitting the cap is not an error.
func (k *Kernel) GenerateText(ctx context.Context, prompt string, optFns ...func(o *GenerateOptions)) (Generation, error) {
	const op = "kernel.generate"

	opts := GenerateOptions{
		Temperature:   k.opts.Temperature,
		MaxTokens:     k.opts.MaxTokens,
		MaxIterations: k.opts.MaxIterations,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = k.opts.MaxIterations
	}
	policy := k.opts.ToolErrorPolicy
	if opts.ToolErrorPolicy != nil {
		policy = *opts.ToolErrorPolicy
	}

	m := k.textModel()
	if m == nil {
		return Generation{}, unavailable(op, TextGeneration)
	}
	modelName := m.Info().Name

	req := model.Request{
		ToolChoice:  opts.ToolChoice,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.SystemMessage != "" {
		req.Messages = append(req.Messages, model.SystemMessage(opts.SystemMessage))
	}
	req.Messages = append(req.Messages, model.UserMessage(prompt))

	// Tool calls are ignored only when the caller opted out of tools. With
	// nothing to offer, stray calls still resolve through the registry and
	// fail as unknown tools.
	toolsEnabled := !opts.DisableTools && opts.ToolChoice.Mode != model.ToolChoiceNone
	if toolsEnabled {
		req.Tools = k.tools.Definitions(opts.Tools...)
	}
	if len(req.Tools) == 0 {
		req.Tools = nil
		req.ToolChoice = model.ToolChoice{}
	}

	start := time.Now()
	gen := Generation{}
	k.logger.Debug("kernel.generate.start", "model", modelName, "tools", len(req.Tools), "max_iterations", maxIter)

	finish := func(err error) (Generation, error) {
		dur := time.Since(start)
		k.metrics.ObserveGeneration(modelName, gen.Status.String(), gen.Iterations, dur, err)
		k.metrics.ObserveTokens(modelName, gen.Usage.PromptTokens, gen.Usage.CompletionTokens)
		if err != nil {
			k.logger.Error("kernel.generate.error", "model", modelName, "iterations", gen.Iterations, "duration_ms", dur.Milliseconds(), "error", err.Error())
			return gen, err
		}
		k.logger.Info("kernel.generate.done", "model", modelName, "status", gen.Status.String(), "iterations", gen.Iterations,
			"tool_calls", len(gen.ToolCalls), "token_count", gen.Usage.TotalTokens, "duration_ms", dur.Milliseconds())
		return gen, nil
	}

	for {
		resp, err := k.callModel(ctx, m, req)
		gen.Iterations++
		if err != nil {
			return finish(err)
		}
		gen.Usage.Add(resp.Usage)
		gen.Text = resp.Content

		if !toolsEnabled || len(resp.ToolCalls) == 0 {
			gen.Status = StatusComplete
			return finish(nil)
		}

		if gen.Iterations >= maxIter {
			gen.Status = StatusCapped
			k.logger.Warn("kernel.generate.capped", "model", modelName, "iterations", gen.Iterations, "pending_tool_calls", len(resp.ToolCalls))
			return finish(nil)
		}

		req.Messages = append(req.Messages, model.AssistantMessage(resp.Content, resp.ToolCalls...))

		results := k.executeTools(ctx, resp.ToolCalls)
		for _, res := range results {
			gen.ToolCalls = append(gen.ToolCalls, res)

			content := res.Output
			if res.Err != nil {
				if core.KindOf(res.Err) == core.KindCancelled || ctx.Err() != nil {
					return finish(core.Cancelled(op, firstErr(ctx.Err(), res.Err)))
				}
				if policy == ToolErrorFail {
					return finish(res.Err)
				}
				content = fmt.Sprintf("Error: %v", res.Err)
			}
			req.Messages = append(req.Messages, model.ToolMessage(res.Call.ID, content))
		}

		// A forced tool choice applies to the first request only.
		if req.ToolChoice.Mode == model.ToolChoiceRequired || req.ToolChoice.Mode == model.ToolChoiceFunction {
			req.ToolChoice = model.ToolChoice{Mode: model.ToolChoiceAuto}
		}
	}
}

// callModel issues one provider request under the per-run budget and the provider timeout.
func (k *Kernel) callModel(ctx context.Context, m model.Model, req model.Request) (model.Response, error) {
	const op = "kernel.generate"

	if ctx.Err() == nil {
		if limiter := core.ModelLimiterFrom(ctx); limiter != nil {
			if err := limiter.Increment(); err != nil {
				return model.Response{}, err
			}
		}
	}

	var resp model.Response
	err := k.withTimeout(ctx, op, func(callCtx context.Context) error {
		var err error
		resp, err = m.Generate(callCtx, req)
		return err
	})
	return resp, err
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

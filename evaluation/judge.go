package evaluation

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"

	"github.com/hupe1980/echokernel/kernel"
)

// DefaultJudgePrompt asks for a single-line PASS or FAIL verdict.
const DefaultJudgePrompt = "You are a strict reviewer.\n" +
	"{{if .criteria}}Criteria: {{.criteria}}\n{{end}}" +
	"Review the following output:\n\n{{.output}}\n\n" +
	"Answer with PASS if it is acceptable, otherwise FAIL: <reason>."

// Generator is satisfied by *kernel.Kernel.
type Generator interface {
	GenerateText(ctx context.Context, prompt string, optFns ...func(o *kernel.GenerateOptions)) (kernel.Generation, error)
}

// JudgeOptions configures a ModelJudge.
type JudgeOptions struct {
	// Prompt is a text/template rendered with "output" and "criteria".
	Prompt   string
	Criteria string
}

// ModelJudge asks a model for a PASS/FAIL verdict.
type ModelJudge struct {
	gen  Generator
	tmpl *template.Template
	opts JudgeOptions
}

// NewModelJudge creates a ModelJudge.
func NewModelJudge(gen Generator, optFns ...func(o *JudgeOptions)) (*ModelJudge, error) {
	opts := JudgeOptions{Prompt: DefaultJudgePrompt}
	for _, fn := range optFns {
		fn(&opts)
	}

	tmpl, err := template.New("judge").Parse(opts.Prompt)
	if err != nil {
		return nil, fmt.Errorf("parse judge prompt: %w", err)
	}

	return &ModelJudge{gen: gen, tmpl: tmpl, opts: opts}, nil
}

// Evaluate implements Evaluator. Verdicts that are neither PASS nor FAIL
// fail with the raw reply as feedback.
func (j *ModelJudge) Evaluate(ctx context.Context, inv Invocation) (*Result, error) {
	var buf bytes.Buffer
	if err := j.tmpl.Execute(&buf, map[string]string{"output": inv.Output, "criteria": j.opts.Criteria}); err != nil {
		return nil, fmt.Errorf("render judge prompt: %w", err)
	}

	gen, err := j.gen.GenerateText(ctx, buf.String(), func(o *kernel.GenerateOptions) { o.DisableTools = true })
	if err != nil {
		return nil, err
	}

	return parseVerdict(gen.Text), nil
}

func parseVerdict(reply string) *Result {
	text := strings.TrimSpace(reply)
	upper := strings.ToUpper(text)

	switch {
	case strings.HasPrefix(upper, "PASS"):
		return &Result{Pass: true, Score: 1}
	case strings.HasPrefix(upper, "FAIL"):
		reason := strings.TrimLeft(text[len("FAIL"):], ": -")
		return &Result{Feedback: strings.TrimSpace(reason)}
	default:
		return &Result{Feedback: "unrecognized verdict: " + text}
	}
}

// Package evaluation scores agent outputs. Evaluators plug into
// SpecialistRouterAgent through Validator, turning a failed evaluation into
// a rejection whose feedback reaches the next classification request.
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Invocation is the output under evaluation.
type Invocation struct {
	Output string
}

// Result is the verdict of an Evaluator.
type Result struct {
	Pass bool
	// Score is in [0, 1].
	Score    float64
	Feedback string
}

// Evaluator judges one invocation. An error means the evaluation itself failed.
type Evaluator interface {
	Evaluate(ctx context.Context, inv Invocation) (*Result, error)
}

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, inv Invocation) (*Result, error)

// Evaluate implements Evaluator.
func (f EvaluatorFunc) Evaluate(ctx context.Context, inv Invocation) (*Result, error) {
	return f(ctx, inv)
}

// NonEmpty passes outputs with at least minChars non-space characters.
func NonEmpty(minChars int) Evaluator {
	if minChars < 1 {
		minChars = 1
	}
	return EvaluatorFunc(func(_ context.Context, inv Invocation) (*Result, error) {
		n := len([]rune(strings.Join(strings.Fields(inv.Output), "")))
		if n < minChars {
			return &Result{Feedback: fmt.Sprintf("output too short (%d < %d characters)", n, minChars)}, nil
		}
		return &Result{Pass: true, Score: 1}, nil
	})
}

// ContainsAll passes outputs containing every term, case-insensitively.
func ContainsAll(terms ...string) Evaluator {
	return EvaluatorFunc(func(_ context.Context, inv Invocation) (*Result, error) {
		lower := strings.ToLower(inv.Output)

		var missing []string
		for _, t := range terms {
			if !strings.Contains(lower, strings.ToLower(t)) {
				missing = append(missing, t)
			}
		}
		if len(missing) > 0 {
			score := 0.0
			if len(terms) > 0 {
				score = float64(len(terms)-len(missing)) / float64(len(terms))
			}
			return &Result{Score: score, Feedback: "missing: " + strings.Join(missing, ", ")}, nil
		}
		return &Result{Pass: true, Score: 1}, nil
	})
}

// All runs evaluators in order and stops at the first failing verdict. The
// score of a passing result is the mean of all scores.
func All(evaluators ...Evaluator) Evaluator {
	return EvaluatorFunc(func(ctx context.Context, inv Invocation) (*Result, error) {
		total := 0.0
		for _, e := range evaluators {
			res, err := e.Evaluate(ctx, inv)
			if err != nil {
				return nil, err
			}
			if !res.Pass {
				return res, nil
			}
			total += res.Score
		}
		score := 1.0
		if len(evaluators) > 0 {
			score = total / float64(len(evaluators))
		}
		return &Result{Pass: true, Score: score}, nil
	})
}

// ErrRejected wraps the feedback of a failed evaluation.
var ErrRejected = errors.New("output rejected")

// Validator adapts e to the specialist router's validation callback. A
// failing verdict becomes an error carrying its feedback; evaluation errors
// reject the output as well.
func Validator(e Evaluator) func(ctx context.Context, output string) error {
	return func(ctx context.Context, output string) error {
		res, err := e.Evaluate(ctx, Invocation{Output: output})
		if err != nil {
			return fmt.Errorf("evaluation failed: %w", err)
		}
		if res.Pass {
			return nil
		}
		if res.Feedback == "" {
			return ErrRejected
		}
		return fmt.Errorf("%w: %s", ErrRejected, res.Feedback)
	}
}

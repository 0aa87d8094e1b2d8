package evaluation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/echokernel/internal/testutil"
)

func TestNonEmpty(t *testing.T) {
	res, err := NonEmpty(3).Evaluate(context.Background(), Invocation{Output: " a b "})
	require.NoError(t, err)
	assert.False(t, res.Pass)
	assert.Contains(t, res.Feedback, "too short")

	res, err = NonEmpty(0).Evaluate(context.Background(), Invocation{Output: "x"})
	require.NoError(t, err)
	assert.True(t, res.Pass)
}

func TestContainsAll(t *testing.T) {
	res, err := ContainsAll("def", "return").Evaluate(context.Background(), Invocation{Output: "DEF add(a, b): pass"})
	require.NoError(t, err)
	assert.False(t, res.Pass)
	assert.Equal(t, "missing: return", res.Feedback)
	assert.InDelta(t, 0.5, res.Score, 1e-9)
}

func TestAllStopsAtFirstFailure(t *testing.T) {
	calls := 0
	counting := EvaluatorFunc(func(context.Context, Invocation) (*Result, error) {
		calls++
		return &Result{Pass: true, Score: 1}, nil
	})

	res, err := All(NonEmpty(10), counting).Evaluate(context.Background(), Invocation{Output: "short"})
	require.NoError(t, err)
	assert.False(t, res.Pass)
	assert.Equal(t, 0, calls)
}

func TestValidator(t *testing.T) {
	validate := Validator(ContainsAll("answer"))

	require.NoError(t, validate(context.Background(), "the answer is 42"))

	err := validate(context.Background(), "no idea")
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "missing: answer")

	failing := Validator(EvaluatorFunc(func(context.Context, Invocation) (*Result, error) {
		return nil, errors.New("boom")
	}))
	assert.ErrorContains(t, failing(context.Background(), "x"), "evaluation failed: boom")
}

func TestModelJudge(t *testing.T) {
	k, m := testutil.NewKernel(t)
	m.EnqueueText("FAIL: no tests included", "pass")

	judge, err := NewModelJudge(k, func(o *JudgeOptions) { o.Criteria = "must include tests" })
	require.NoError(t, err)

	res, err := judge.Evaluate(context.Background(), Invocation{Output: "func Add() {}"})
	require.NoError(t, err)
	assert.False(t, res.Pass)
	assert.Equal(t, "no tests included", res.Feedback)

	prompt := m.Requests()[0].LastUserContent()
	assert.Contains(t, prompt, "Criteria: must include tests")
	assert.Contains(t, prompt, "func Add() {}")

	res, err = judge.Evaluate(context.Background(), Invocation{Output: "func Add() {} // tested"})
	require.NoError(t, err)
	assert.True(t, res.Pass)
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		reply    string
		pass     bool
		feedback string
	}{
		{"PASS", true, ""},
		{"  pass - looks good", true, ""},
		{"FAIL: too vague", false, "too vague"},
		{"fail - wrong language", false, "wrong language"},
		{"maybe", false, "unrecognized verdict: maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			res := parseVerdict(tt.reply)
			assert.Equal(t, tt.pass, res.Pass)
			assert.Equal(t, tt.feedback, res.Feedback)
		})
	}
}

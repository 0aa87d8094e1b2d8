package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/echokernel/core"
)

func TestLoopAgentConverges(t *testing.T) {
	inner := NewMockAgent("editor")
	inner.On("Run", mock.Anything, mock.Anything).Return(core.Success("draft 1"), nil).Once()
	inner.On("Run", mock.Anything, mock.Anything).Return(core.Success("draft 2"), nil).Once()
	inner.On("Run", mock.Anything, mock.Anything).Return(core.Success("FINAL VERSION: done"), nil).Once()

	l := NewLoopAgent("loop", inner, func(o *LoopAgentOptions) { o.MaxSteps = 5 })
	assert.Equal(t, core.KindLoopAgent, l.Kind())

	res, err := l.Run(context.Background(), core.NewTask("write"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusConverged, res.Status)
	assert.Equal(t, "FINAL VERSION: done", res.Output)
	assert.Equal(t, 3, res.Steps)
	assert.Len(t, res.Children, 3)
	inner.AssertNumberOfCalls(t, "Run", 3)
}

func TestLoopAgentExhausted(t *testing.T) {
	var prompts []string
	inner := NewFuncAgent("editor", func(_ context.Context, task core.Task) (string, error) {
		prompts = append(prompts, task.Prompt())
		return "draft", nil
	})

	res, err := NewLoopAgent("loop", inner).Run(context.Background(), core.NewTask("write"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusExhausted, res.Status)
	assert.True(t, res.OK())
	assert.Equal(t, "draft", res.Output)
	assert.Equal(t, 3, res.Steps)

	require.Len(t, prompts, 3)
	assert.Equal(t, "write", prompts[0])
	assert.Equal(t, "Previous output:\ndraft\n\nImprove the previous output.\n\nwrite", prompts[1])
}

func TestLoopAgentInnerFailure(t *testing.T) {
	inner := NewMockAgent("editor")
	inner.On("Run", mock.Anything, mock.Anything).Return(core.Success("draft 1"), nil).Once()
	inner.On("Run", mock.Anything, mock.Anything).Return(core.Failure("", errors.New("boom")), nil).Once()

	res, err := NewLoopAgent("loop", inner).Run(context.Background(), core.NewTask("write"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, res.Status)
	assert.Equal(t, "draft 1", res.Output)
	assert.Equal(t, 2, res.Steps)
}

func TestLoopAgentRetriesTransient(t *testing.T) {
	unavailable := core.NewError(core.KindProviderUnavailable, "model", "503", nil)

	inner := NewMockAgent("editor")
	inner.On("Run", mock.Anything, mock.Anything).Return(core.Failure("", unavailable), nil).Once()
	inner.On("Run", mock.Anything, mock.Anything).Return(core.Success("Final version"), nil).Once()

	l := NewLoopAgent("loop", inner, func(o *LoopAgentOptions) { o.RetryDelay = 0 })
	res, err := l.Run(context.Background(), core.NewTask("write"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusConverged, res.Status)
	assert.Equal(t, 2, res.Steps)
}

func TestLoopAgentTransientRetriesExhausted(t *testing.T) {
	unavailable := core.NewError(core.KindProviderUnavailable, "model", "503", nil)

	inner := NewMockAgent("editor")
	inner.On("Run", mock.Anything, mock.Anything).Return(core.Failure("", unavailable), nil).Times(3)

	l := NewLoopAgent("loop", inner, func(o *LoopAgentOptions) {
		o.RetryDelay = 0
		o.TransientRetries = 2
	})
	res, err := l.Run(context.Background(), core.NewTask("write"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, res.Status)
	assert.ErrorIs(t, res.Err, core.ErrProviderUnavailable)
	assert.Equal(t, 3, res.Steps)
	inner.AssertExpectations(t)
}

func TestLoopAgentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	inner := NewFuncAgent("editor", func(context.Context, core.Task) (string, error) {
		cancel()
		return "partial", nil
	})

	res, err := NewLoopAgent("loop", inner).Run(ctx, core.NewTask("write"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, res.Status)
	assert.Equal(t, "partial", res.Output)
	assert.Equal(t, 1, res.Steps)
}

func TestContainsStopPhrase(t *testing.T) {
	assert.True(t, ContainsStopPhrase("this is the final Version.", "Final version"))
	assert.False(t, ContainsStopPhrase("draft", "Final version"))
	assert.False(t, ContainsStopPhrase("anything", ""))
}

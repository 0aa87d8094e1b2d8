package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/internal/testutil"
	"github.com/hupe1980/echokernel/model"
	"github.com/hupe1980/echokernel/tool"
)

func TestModelAgentPersona(t *testing.T) {
	k, m := newTestKernel(t)
	m.EnqueueText("def add(a, b): return a + b")

	a := NewModelAgent("PythonCoder", k, func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromText("You are a {{.language | default \"Python\"}} expert.")
	})
	assert.Equal(t, core.KindModelAgent, a.Kind())

	res, err := a.Run(context.Background(), core.NewTask("write add"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.Equal(t, "def add(a, b): return a + b", res.Output)
	assert.Equal(t, 1, res.Steps)
	assert.False(t, res.Incomplete)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	require.Len(t, reqs[0].Messages, 2)
	assert.Equal(t, model.RoleSystem, reqs[0].Messages[0].Role)
	assert.Equal(t, "You are a Python expert.", reqs[0].Messages[0].Content)
	assert.Equal(t, "write add", reqs[0].Messages[1].Content)
}

func TestModelAgentUsesTaskContext(t *testing.T) {
	k, m := newTestKernel(t)

	a := NewModelAgent("writer", k)
	task := core.NewTask("summarize").WithContext("Background: cats")

	res, err := a.Run(context.Background(), task)
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: Background: cats\n\nsummarize", res.Output)
	assert.Len(t, m.Requests()[0].Messages, 1)
}

func TestModelAgentIncomplete(t *testing.T) {
	k, m := newTestKernel(t)
	require.NoError(t, k.RegisterTool(tool.MustSpec(tool.NewSpec("noop", "does nothing", nil,
		func(context.Context, map[string]any) (string, error) { return "ok", nil }))))

	m.SetHandler(func(model.Request) (model.Response, error) {
		return model.Response{Content: "still working", ToolCalls: []model.ToolCall{{ID: "1", Name: "noop", Arguments: "{}"}}}, nil
	})

	a := NewModelAgent("looper", k, func(o *ModelAgentOptions) { o.MaxIterations = 3 })
	res, err := a.Run(context.Background(), core.NewTask("go"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.True(t, res.Incomplete)
	assert.Equal(t, 3, res.Steps)
	assert.Equal(t, "still working", res.Output)
}

func TestModelAgentProviderError(t *testing.T) {
	k, m := newTestKernel(t)
	m.EnqueueError(errors.New("503"))

	res, err := NewModelAgent("a", k).Run(context.Background(), core.NewTask("x"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, res.Status)
	assert.Equal(t, core.KindProviderUnavailable, res.Kind())
}

func TestModelAgentDynamicInstruction(t *testing.T) {
	k, m := newTestKernel(t)

	a := NewModelAgent("a", k, func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromFunc(func(_ context.Context, task core.Task) (string, error) {
			return "Respond in " + task.MetadataString("lang"), nil
		})
	})
	_, err := a.Run(context.Background(), testutil.NewTaskBuilder("hello").Meta("lang", "German").Build())
	require.NoError(t, err)
	assert.Equal(t, "Respond in German", m.Requests()[0].Messages[0].Content)
}

package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/internal/testutil"
	"github.com/hupe1980/echokernel/kernel"
	"github.com/hupe1980/echokernel/model"
)

// MockAgent for testing composite agents
type MockAgent struct {
	mock.Mock
	name string
}

func NewMockAgent(name string) *MockAgent {
	return &MockAgent{name: name}
}

func (m *MockAgent) Name() string { return m.name }

func (m *MockAgent) Kind() core.AgentKind { return core.KindFuncAgent }

func (m *MockAgent) Run(ctx context.Context, task core.Task) (core.Result, error) {
	args := m.Called(ctx, task)
	return args.Get(0).(core.Result), args.Error(1)
}

// newTestKernel returns a kernel backed by a scripted mock model.
func newTestKernel(t *testing.T) (*kernel.Kernel, *model.MockModel) {
	t.Helper()
	return testutil.NewKernel(t)
}

func echoAgent(name string) *FuncAgent {
	return NewFuncAgent(name, func(_ context.Context, task core.Task) (string, error) {
		return name + ": " + task.Description, nil
	})
}

func failingAgent(name string, err error) *FuncAgent {
	return NewFuncAgent(name, func(context.Context, core.Task) (string, error) {
		return "", err
	})
}

// Compile-time checks that every variant satisfies core.Agent.
var (
	_ core.Agent = (*ModelAgent)(nil)
	_ core.Agent = (*FuncAgent)(nil)
	_ core.Agent = (*TaskDecomposerAgent)(nil)
	_ core.Agent = (*RouterAgent)(nil)
	_ core.Agent = (*SpecialistRouterAgent)(nil)
	_ core.Agent = (*LoopAgent)(nil)
	_ core.Agent = (*MemoryAgent)(nil)
	_ core.Agent = (*CollaborativeAgent)(nil)
)

func TestBaseAgentDefaults(t *testing.T) {
	a := echoAgent("echo")
	assert.Equal(t, "echo", a.Name())
	assert.Equal(t, "Agent echo", a.Description())
	assert.False(t, a.Strict())
	assert.Equal(t, core.KindFuncAgent, a.Kind())

	b := NewFuncAgent("b", nil, func(o *FuncAgentOptions) { o.Description = "does b" })
	assert.Equal(t, "does b", b.Description())
}

func TestFuncAgent(t *testing.T) {
	res, err := echoAgent("echo").Run(context.Background(), core.NewTask("hi"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.Equal(t, "echo: hi", res.Output)
	assert.Equal(t, 1, res.Steps)
}

func TestStrictMode(t *testing.T) {
	boom := core.NewError(core.KindToolExecution, "test", "boom", nil)

	t.Run("non-strict returns failure as value", func(t *testing.T) {
		res, err := failingAgent("f", boom).Run(context.Background(), core.NewTask("x"))
		require.NoError(t, err)
		assert.Equal(t, core.StatusFailed, res.Status)
		assert.Equal(t, core.KindToolExecution, res.Kind())
	})

	t.Run("strict also returns the error", func(t *testing.T) {
		a := NewFuncAgent("f", func(context.Context, core.Task) (string, error) { return "", boom },
			func(o *FuncAgentOptions) { o.Strict = true })
		res, err := a.Run(context.Background(), core.NewTask("x"))
		require.Error(t, err)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, core.StatusFailed, res.Status)
	})

	t.Run("strict success has no error", func(t *testing.T) {
		a := NewFuncAgent("f", func(context.Context, core.Task) (string, error) { return "ok", nil },
			func(o *FuncAgentOptions) { o.Strict = true })
		_, err := a.Run(context.Background(), core.NewTask("x"))
		require.NoError(t, err)
	})
}

func TestRunChildFoldsErrors(t *testing.T) {
	m := NewMockAgent("child")
	m.On("Run", mock.Anything, mock.Anything).Return(core.Result{}, errors.New("raw")).Once()

	res := runChild(context.Background(), m, core.NewTask("x"))
	assert.Equal(t, core.StatusFailed, res.Status)
	assert.EqualError(t, res.Err, "raw")

	m.On("Run", mock.Anything, mock.Anything).Return(core.Result{Status: core.StatusFailed}, nil).Once()
	res = runChild(context.Background(), m, core.NewTask("x"))
	assert.Equal(t, core.KindInternal, res.Kind())

	m.AssertExpectations(t)
}

func TestFuncAgentCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := echoAgent("echo").Run(ctx, core.NewTask("x"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, res.Status)
	assert.Equal(t, core.KindCancelled, res.Kind())
}

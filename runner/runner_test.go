package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/echokernel/agent"
	"github.com/hupe1980/echokernel/core"
	eutil "github.com/hupe1980/echokernel/internal/testutil"
	"github.com/hupe1980/echokernel/kernel"
	"github.com/hupe1980/echokernel/metrics"
	"github.com/hupe1980/echokernel/model"
)

func echo() core.Agent {
	return eutil.NewEchoAgent("echo")
}

// blocking waits until its context is cancelled.
func blocking(started chan<- struct{}) core.Agent {
	return agent.NewFuncAgent("blocker", func(ctx context.Context, _ core.Task) (string, error) {
		if started != nil {
			started <- struct{}{}
		}
		<-ctx.Done()
		return "", core.Cancelled("blocker", ctx.Err())
	})
}

func TestInvoke(t *testing.T) {
	r := New()
	a := eutil.NewEchoAgent("echo")

	res, err := r.Invoke(context.Background(), a, core.NewTask("hi"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusSuccess, res.Status)
	assert.Equal(t, "echo: hi", res.Output)
	assert.Empty(t, r.ActiveRuns())
	require.Len(t, a.Tasks(), 1)
	assert.Equal(t, "hi", a.Tasks()[0].Prompt())
}

func TestStartAndCancel(t *testing.T) {
	r := New()
	started := make(chan struct{}, 1)

	id, ch := r.Start(context.Background(), blocking(started), core.NewTask("wait"))
	require.NotEmpty(t, id)

	<-started
	assert.Equal(t, []string{id}, r.ActiveRuns())
	require.NoError(t, r.Cancel(id))

	select {
	case run := <-ch:
		assert.Equal(t, id, run.ID)
		assert.Equal(t, "blocker", run.Agent)
		assert.Equal(t, core.StatusCancelled, run.Result.Status)
		assert.Equal(t, core.KindCancelled, run.Result.Kind())
	case <-time.After(2 * time.Second):
		t.Fatal("run did not finish after cancel")
	}

	_, open := <-ch
	assert.False(t, open)
	assert.Empty(t, r.ActiveRuns())
}

func TestCancelUnknown(t *testing.T) {
	err := New().Cancel("nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int32

	a := agent.NewFuncAgent("worker", func(context.Context, core.Task) (string, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		inFlight.Add(-1)
		return "ok", nil
	})

	r := New(func(o *Options) { o.MaxConcurrentInvocations = 2 })

	tasks := make([]core.Task, 8)
	for i := range tasks {
		tasks[i] = core.NewTask("t")
	}

	results, err := r.InvokeBatch(context.Background(), a, tasks)
	require.NoError(t, err)
	require.Len(t, results, 8)
	for _, res := range results {
		assert.Equal(t, "ok", res.Output)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestInvokeBatchKeepsOrder(t *testing.T) {
	r := New()
	tasks := []core.Task{core.NewTask("a"), core.NewTask("b"), core.NewTask("c")}

	results, err := r.InvokeBatch(context.Background(), echo(), tasks)
	require.NoError(t, err)
	assert.Equal(t, "echo: a", results[0].Output)
	assert.Equal(t, "echo: b", results[1].Output)
	assert.Equal(t, "echo: c", results[2].Output)
}

func TestInvokeBatchStrictError(t *testing.T) {
	boom := errors.New("boom")
	a := agent.NewFuncAgent("strict", func(_ context.Context, task core.Task) (string, error) {
		if task.Description == "bad" {
			return "", boom
		}
		return "ok", nil
	}, func(o *agent.FuncAgentOptions) { o.Strict = true })

	results, err := New().InvokeBatch(context.Background(), a, []core.Task{core.NewTask("good"), core.NewTask("bad")})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "ok", results[0].Output)
	assert.Equal(t, core.StatusFailed, results[1].Status)
}

func TestModelCallBudget(t *testing.T) {
	k := kernel.New(func(o *kernel.Options) { o.ProviderTimeout = 0 })
	m := model.NewMockModel("mock", "mock")
	require.NoError(t, k.RegisterProvider(kernel.TextGeneration, m))

	calls := 0
	a := agent.NewFuncAgent("chatty", func(ctx context.Context, _ core.Task) (string, error) {
		for {
			if _, err := k.GenerateText(ctx, "again"); err != nil {
				return "", err
			}
			calls++
		}
	})

	r := New(func(o *Options) { o.MaxModelCalls = 3 })
	res, err := r.Invoke(context.Background(), a, core.NewTask("x"))
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, core.KindBudgetExceeded, res.Kind())
}

func TestPanicRecovered(t *testing.T) {
	a := agent.NewFuncAgent("panicky", func(context.Context, core.Task) (string, error) {
		panic("kaboom")
	})

	res, err := New().Invoke(context.Background(), a, core.NewTask("x"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, res.Status)
	assert.Equal(t, core.KindInternal, res.Kind())
	assert.Contains(t, res.Err.Error(), "kaboom")
}

func TestCancelledBeforeSlot(t *testing.T) {
	r := New(func(o *Options) { o.MaxConcurrentInvocations = 1 })
	started := make(chan struct{}, 1)

	id, ch := r.Start(context.Background(), blocking(started), core.NewTask("hold"))
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	res, err := r.Invoke(ctx, echo(), core.NewTask("queued"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusCancelled, res.Status)

	require.NoError(t, r.Cancel(id))
	<-ch
}

func TestRunMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := metrics.NewPrometheus(reg)

	r := New(func(o *Options) { o.Metrics = rec })
	_, err := r.Invoke(context.Background(), echo(), core.NewTask("x"))
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "echokernel_agent_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

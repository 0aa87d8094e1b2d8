package echokernel

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/echokernel/agent"
	"github.com/hupe1980/echokernel/config"
	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/model"
)

func newTestEchoKernel(t *testing.T, cfg *config.Config) (*EchoKernel, *model.MockModel) {
	t.Helper()

	m := model.NewMockModel("mock", "mock")
	ek, err := New(context.Background(), cfg, func(o *Options) {
		o.Model = m
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = ek.Close() })

	return ek, m
}

func TestNewDefaults(t *testing.T) {
	ek, _ := newTestEchoKernel(t, nil)

	assert.NotNil(t, ek.Kernel())
	assert.NotNil(t, ek.Runner())
	assert.NotNil(t, ek.Memory())
	assert.Nil(t, ek.Gatherer())
	assert.Empty(t, ek.Agents())
}

func TestGenerate(t *testing.T) {
	ek, m := newTestEchoKernel(t, nil)
	m.EnqueueText("hello there")

	gen, err := ek.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "hello there", gen.Text)
	assert.Equal(t, 1, m.Calls())
}

func TestInvokeDeclaredTopology(t *testing.T) {
	cfg := config.Default()
	cfg.Agents = []config.AgentConfig{
		{Name: "refiner", Type: config.AgentLoop, Inner: "writer", MaxSteps: 3},
		{Name: "writer", Type: config.AgentModel, Instruction: "You write."},
	}

	ek, m := newTestEchoKernel(t, cfg)
	m.EnqueueText("draft", "Final version: done")

	assert.Equal(t, []string{"writer", "refiner"}, ek.Agents())

	res, err := ek.Invoke(context.Background(), "refiner", core.NewTask("write a poem"))
	require.NoError(t, err)
	assert.Equal(t, core.StatusConverged, res.Status)
	assert.Equal(t, "Final version: done", res.Output)
	assert.Equal(t, 2, res.Steps)

	reqs := m.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, model.RoleSystem, reqs[0].Messages[0].Role)
	assert.Equal(t, "You write.", reqs[0].Messages[0].Content)
}

func TestRouterTopology(t *testing.T) {
	cfg := config.Default()
	cfg.Agents = []config.AgentConfig{
		{Name: "router", Type: config.AgentRouter, Agents: []string{"poet", "coder"}},
		{Name: "poet", Type: config.AgentModel},
		{Name: "coder", Type: config.AgentModel},
	}

	ek, m := newTestEchoKernel(t, cfg)
	m.EnqueueText("coder", "package main")

	res, err := ek.Invoke(context.Background(), "router", core.NewTask("write go code"))
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "package main", res.Output)
}

func TestAgentCycle(t *testing.T) {
	cfg := config.Default()
	cfg.Agents = []config.AgentConfig{
		{Name: "a", Type: config.AgentLoop, Inner: "b"},
		{Name: "b", Type: config.AgentLoop, Inner: "a"},
	}

	_, err := New(context.Background(), cfg, func(o *Options) {
		o.Model = model.NewMockModel("mock", "mock")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent cycle: a -> b -> a")
}

func TestTopoOrder(t *testing.T) {
	decls := []config.AgentConfig{
		{Name: "pair", Type: config.AgentCollaborative, Agents: []string{"x", "y"}},
		{Name: "x", Type: config.AgentModel},
		{Name: "mem", Type: config.AgentMemory, Inner: "x"},
		{Name: "y", Type: config.AgentLoop, Inner: "mem"},
	}

	order, err := topoOrder(decls)
	require.NoError(t, err)

	names := make([]string, 0, len(order))
	for _, d := range order {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"x", "mem", "y", "pair"}, names)
}

func TestInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Provider.Type = "bogus"

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provider.type")
}

func TestInvokeUnknownAgent(t *testing.T) {
	ek, _ := newTestEchoKernel(t, nil)

	_, err := ek.Invoke(context.Background(), "missing", core.NewTask("x"))
	require.ErrorIs(t, err, ErrAgentNotFound)

	_, _, err = ek.Start(context.Background(), "missing", core.NewTask("x"))
	require.ErrorIs(t, err, ErrAgentNotFound)
}

func TestRegisterAgent(t *testing.T) {
	ek, _ := newTestEchoKernel(t, nil)

	echo := agent.NewFuncAgent("echo", func(_ context.Context, task core.Task) (string, error) {
		return "echo: " + task.Description, nil
	})
	require.NoError(t, ek.RegisterAgent(echo))
	require.Error(t, ek.RegisterAgent(echo))

	id, ch, err := ek.Start(context.Background(), "echo", core.NewTask("ping"))
	require.NoError(t, err)

	run := <-ch
	assert.Equal(t, id, run.ID)
	assert.Equal(t, "echo: ping", run.Result.Output)
}

func TestBuiltinTools(t *testing.T) {
	cfg := config.Default()
	cfg.Tools.Memory = true
	cfg.Tools.Code.Enabled = true
	cfg.Tools.Web.Enabled = true

	ek, _ := newTestEchoKernel(t, cfg)

	assert.ElementsMatch(t,
		[]string{"execute_code", "get_web_content", "search_web", "search_memory", "save_memory"},
		ek.Kernel().Tools().Names(),
	)
}

func TestAzureProvider(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"1","object":"chat.completion","created":1,"model":"gpt-4o",
			"choices":[{"index":0,"message":{"role":"assistant","content":"from azure"},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Provider = config.ProviderConfig{Type: "azure", Model: "chat-deploy", APIKey: "k", BaseURL: srv.URL, APIVersion: config.DefaultAzureAPIVersion}

	ek, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer ek.Close()

	gen, err := ek.Generate(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "from azure", gen.Text)
	assert.Equal(t, "/openai/deployments/chat-deploy/chat/completions", path)
}

func TestWebSearchBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "bing-key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		fmt.Fprint(w, `{"webPages":{"value":[{"name":"Go","url":"https://go.dev/"}]}}`)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Tools.Web.Enabled = true
	cfg.Tools.Web.RequestsPerSecond = 0
	cfg.Tools.Web.SearchProvider = "bing"
	cfg.Tools.Web.SearchAPIKey = "bing-key"
	cfg.Tools.Web.SearchURL = srv.URL

	ek, _ := newTestEchoKernel(t, cfg)

	out, err := ek.Kernel().Tools().Execute(context.Background(), model.ToolCall{Name: "search_web", Arguments: `{"query":"go"}`})
	require.NoError(t, err)
	assert.Contains(t, out, "https://go.dev/")
}

func TestMemoryAgentTopology(t *testing.T) {
	cfg := config.Default()
	cfg.Agents = []config.AgentConfig{
		{Name: "answer", Type: config.AgentModel},
		{Name: "recall", Type: config.AgentMemory, Inner: "answer", Persist: true},
	}

	ek, m := newTestEchoKernel(t, cfg)
	_, err := ek.Memory().AddText(context.Background(), "the sky is blue", nil)
	require.NoError(t, err)

	m.EnqueueText("blue")

	res, err := ek.Invoke(context.Background(), "recall", core.NewTask("the sky is blue?"))
	require.NoError(t, err)
	assert.Equal(t, "blue", res.Output)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].LastUserContent(), agent.MemoryContextHeader+"\n- the sky is blue")

	results, err := ek.Memory().SearchText(context.Background(), "blue", 5)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestMetricsEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.Metrics.Enabled = true
	cfg.Agents = []config.AgentConfig{{Name: "writer", Type: config.AgentModel}}

	ek, m := newTestEchoKernel(t, cfg)
	m.EnqueueText("ok")

	_, err := ek.Invoke(context.Background(), "writer", core.NewTask("go"))
	require.NoError(t, err)

	require.NotNil(t, ek.Gatherer())
	count, err := testutil.GatherAndCount(ek.Gatherer(), "echokernel_agent_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSpecialistRouterValidatorTopology(t *testing.T) {
	cfg := config.Default()
	cfg.Agents = []config.AgentConfig{
		{
			Name:             "dispatch",
			Type:             config.AgentSpecialistRouter,
			Agents:           []string{"poet", "coder"},
			RetryCount:       2,
			ExhaustionPolicy: "fail",
			Validator:        "contains",
			ValidatorTerms:   []string{"func"},
		},
		{Name: "poet", Type: config.AgentModel},
		{Name: "coder", Type: config.AgentModel},
	}

	ek, m := newTestEchoKernel(t, cfg)
	m.EnqueueText("poet", "roses are red", "coder", "func main() {}")

	res, err := ek.Invoke(context.Background(), "dispatch", core.NewTask("write go"))
	require.NoError(t, err)
	assert.True(t, res.OK())
	assert.Equal(t, "func main() {}", res.Output)

	reqs := m.Requests()
	require.Len(t, reqs, 4)
	assert.Contains(t, reqs[2].LastUserContent(), "missing: func")
}

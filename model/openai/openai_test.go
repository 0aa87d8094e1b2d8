package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hupe1980/echokernel/model"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionJSON = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4o-mini",
  "choices": [{
    "index": 0,
    "message": {
      "role": "assistant",
      "content": "",
      "tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "add", "arguments": "{\"a\":1,\"b\":2}"}}]
    },
    "finish_reason": "tool_calls"
  }],
  "usage": {"prompt_tokens": 7, "completion_tokens": 3, "total_tokens": 10}
}`

func newTestModel(t *testing.T, handler http.HandlerFunc) *Model {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewModel(func(o *Options) {
		o.ClientOptions = []option.RequestOption{
			option.WithAPIKey("test"),
			option.WithBaseURL(srv.URL + "/"),
			option.WithMaxRetries(0),
		}
	})
}

func TestModel_GenerateToolCalls(t *testing.T) {
	var body map[string]any
	m := newTestModel(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON))
	})

	resp, err := m.Generate(context.Background(), model.Request{
		Messages: []model.Message{
			model.SystemMessage("be precise"),
			model.UserMessage("add 1 and 2"),
			model.AssistantMessage("", model.ToolCall{ID: "call_0", Name: "add", Arguments: `{"a":0,"b":0}`}),
			model.ToolMessage("call_0", "0"),
		},
		Tools: []model.ToolDefinition{{
			Name:        "add",
			Description: "adds numbers",
			Parameters:  map[string]any{"type": "object"},
		}},
		ToolChoice: model.ToolChoiceFor("add"),
	})
	require.NoError(t, err)

	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, model.ToolCall{ID: "call_1", Name: "add", Arguments: `{"a":1,"b":2}`}, resp.ToolCalls[0])
	assert.Equal(t, "tool_calls", resp.FinishReason)
	assert.Equal(t, 10, resp.Usage.TotalTokens)

	msgs, _ := body["messages"].([]any)
	assert.Len(t, msgs, 4)
	tools, _ := body["tools"].([]any)
	assert.Len(t, tools, 1)
	choice, _ := body["tool_choice"].(map[string]any)
	fn, _ := choice["function"].(map[string]any)
	assert.Equal(t, "add", fn["name"])
}

func TestModel_GenerateAPIError(t *testing.T) {
	m := newTestModel(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	})

	_, err := m.Generate(context.Background(), model.Request{Messages: []model.Message{model.UserMessage("hi")}})
	assert.ErrorContains(t, err, "openai api error")
}

func TestModel_Info(t *testing.T) {
	m := NewModel(func(o *Options) {
		o.Model = "gpt-4o"
		o.ClientOptions = []option.RequestOption{option.WithAPIKey("test")}
	})
	assert.Equal(t, model.Info{Name: "gpt-4o", Provider: "openai", SupportsTools: true}, m.Info())
}

func TestAzureModel(t *testing.T) {
	var (
		path, version, key string
		body               map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		version = r.URL.Query().Get("api-version")
		key = r.Header.Get("Api-Key")
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completionJSON))
	}))
	defer srv.Close()

	m := NewAzureModel(AzureConfig{Endpoint: srv.URL, APIVersion: "2024-06-01", APIKey: "az-key"}, "my-deploy", func(o *Options) {
		o.ClientOptions = []option.RequestOption{option.WithMaxRetries(0)}
	})
	assert.Equal(t, "my-deploy", m.Info().Name)
	assert.Equal(t, "azure", m.Info().Provider)

	resp, err := m.Generate(context.Background(), model.Request{Messages: []model.Message{model.UserMessage("hi")}})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "/openai/deployments/my-deploy/chat/completions", path)
	assert.Equal(t, "2024-06-01", version)
	assert.Equal(t, "az-key", key)
	assert.Equal(t, "my-deploy", body["model"])
}

package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/embedding"
	"github.com/hupe1980/echokernel/memory"
)

type failingStore struct{}

func (failingStore) Add(context.Context, string, []float32, map[string]any) (string, error) {
	return "", errors.New("store down")
}

func (failingStore) Search(context.Context, []float32, int) ([]core.SearchResult, error) {
	return nil, errors.New("store down")
}

func (failingStore) Get(context.Context, string) (core.MemoryRecord, error) {
	return core.MemoryRecord{}, errors.New("store down")
}

func (failingStore) Delete(context.Context, string) error { return errors.New("store down") }

func recordingAgent(prompts *[]string) *FuncAgent {
	return NewFuncAgent("inner", func(_ context.Context, task core.Task) (string, error) {
		*prompts = append(*prompts, task.Prompt())
		return "answer", nil
	})
}

func TestMemoryAgentInjectsContext(t *testing.T) {
	ctx := context.Background()
	emb := embedding.NewHashEmbedder(64)
	store := memory.NewInMemoryStore()

	vec, err := emb.Embed(ctx, "the sky is blue")
	require.NoError(t, err)
	_, err = store.Add(ctx, "the sky is blue", vec, nil)
	require.NoError(t, err)

	var prompts []string
	a := NewMemoryAgent("mem", emb, store, recordingAgent(&prompts))
	assert.Equal(t, core.KindMemoryAgent, a.Kind())

	res, err := a.Run(ctx, core.NewTask("the sky is blue"))
	require.NoError(t, err)
	assert.Equal(t, "answer", res.Output)

	require.Len(t, prompts, 1)
	assert.Equal(t, "Use the following prior context if useful:\n- the sky is blue\n\nthe sky is blue", prompts[0])
}

func TestMemoryAgentEmptyStore(t *testing.T) {
	var prompts []string
	a := NewMemoryAgent("mem", embedding.NewHashEmbedder(16), memory.NewInMemoryStore(), recordingAgent(&prompts))

	_, err := a.Run(context.Background(), core.NewTask("question"))
	require.NoError(t, err)
	assert.Equal(t, []string{"question"}, prompts)
}

func TestMemoryAgentFailingStoreDegrades(t *testing.T) {
	var prompts []string
	inner := recordingAgent(&prompts)

	direct, err := inner.Run(context.Background(), core.NewTask("question"))
	require.NoError(t, err)

	a := NewMemoryAgent("mem", embedding.NewHashEmbedder(16), failingStore{}, inner, func(o *MemoryAgentOptions) { o.Persist = true })
	res, err := a.Run(context.Background(), core.NewTask("question"))
	require.NoError(t, err)

	assert.Equal(t, direct.Output, res.Output)
	assert.Equal(t, direct.Status, res.Status)
	assert.Equal(t, []string{"question", "question"}, prompts)
}

func TestMemoryAgentMissingPortsDegrade(t *testing.T) {
	tests := []struct {
		name     string
		embedder core.Embedder
		store    core.MemoryStore
	}{
		{"no ports", nil, nil},
		{"no embedder", nil, memory.NewInMemoryStore()},
		{"no store", embedding.NewHashEmbedder(16), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prompts []string
			a := NewMemoryAgent("mem", tt.embedder, tt.store, recordingAgent(&prompts), func(o *MemoryAgentOptions) { o.Persist = true })

			res, err := a.Run(context.Background(), core.NewTask("question"))
			require.NoError(t, err)
			assert.Equal(t, core.StatusSuccess, res.Status)
			assert.Equal(t, "answer", res.Output)
			assert.Equal(t, []string{"question"}, prompts)
		})
	}
}

func TestMemoryAgentMinScore(t *testing.T) {
	ctx := context.Background()
	store := memory.NewInMemoryStore()
	_, err := store.Add(ctx, "orthogonal", []float32{0, 1}, nil)
	require.NoError(t, err)

	emb := embedderFunc(func(context.Context, string) ([]float32, error) { return []float32{1, 0}, nil })

	var prompts []string
	a := NewMemoryAgent("mem", emb, store, recordingAgent(&prompts), func(o *MemoryAgentOptions) { o.MinScore = 0.5 })
	_, err = a.Run(ctx, core.NewTask("q"))
	require.NoError(t, err)
	assert.Equal(t, []string{"q"}, prompts)
}

func TestMemoryAgentPersist(t *testing.T) {
	ctx := context.Background()
	emb := embedding.NewHashEmbedder(16)
	store := memory.NewInMemoryStore()

	var prompts []string
	a := NewMemoryAgent("mem", emb, store, recordingAgent(&prompts), func(o *MemoryAgentOptions) { o.Persist = true })

	_, err := a.Run(ctx, core.NewTask("what is up"))
	require.NoError(t, err)
	require.Equal(t, 1, store.Len())

	vec, err := emb.Embed(ctx, "answer")
	require.NoError(t, err)
	hits, err := store.Search(ctx, vec, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	rec := hits[0].Record
	assert.Equal(t, "answer", rec.Text)
	assert.Equal(t, core.ProvenanceAgent, rec.Provenance())
	assert.Equal(t, "mem", rec.Metadata[core.MetadataAgent])
	assert.Equal(t, "what is up", rec.Metadata[core.MetadataTask])
}

type embedderFunc func(ctx context.Context, text string) ([]float32, error)

func (f embedderFunc) Embed(ctx context.Context, text string) ([]float32, error) { return f(ctx, text) }

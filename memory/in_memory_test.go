package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/embedding"
)

func TestInMemoryStore_AddGetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	id, err := store.Add(ctx, "hello", []float32{1, 0}, map[string]any{"k": "v"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", rec.Text)
	assert.Equal(t, "v", rec.Metadata["k"])

	// returned records are copies
	rec.Metadata["k"] = "changed"
	rec.Vector[0] = 42
	again, _ := store.Get(ctx, id)
	assert.Equal(t, "v", again.Metadata["k"])
	assert.Equal(t, float32(1), again.Vector[0])

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete(ctx, id), ErrNotFound)
}

func TestInMemoryStore_AppendOnlyIDs(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	a, err := store.Add(ctx, "same", []float32{1, 0}, nil)
	require.NoError(t, err)
	b, err := store.Add(ctx, "same", []float32{1, 0}, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, store.Len())
}

func TestInMemoryStore_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	_, err := store.Add(ctx, "a", []float32{1, 0, 0}, nil)
	require.NoError(t, err)

	_, err = store.Add(ctx, "b", []float32{1, 0}, nil)
	assert.Error(t, err)

	_, err = store.Search(ctx, []float32{1, 0}, 3)
	assert.Error(t, err)

	_, err = store.Add(ctx, "c", nil, nil)
	assert.Error(t, err)
}

func TestInMemoryStore_SearchOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	_, _ = store.Add(ctx, "orthogonal", []float32{0, 1}, nil)
	_, _ = store.Add(ctx, "close", []float32{0.9, 0.1}, nil)
	_, _ = store.Add(ctx, "exact", []float32{1, 0}, nil)
	_, _ = store.Add(ctx, "exact twin", []float32{2, 0}, nil)

	results, err := store.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// ties keep insertion order
	assert.Equal(t, "exact", results[0].Record.Text)
	assert.Equal(t, "exact twin", results[1].Record.Text)
	assert.Equal(t, "close", results[2].Record.Text)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.GreaterOrEqual(t, results[1].Score, results[2].Score)
}

func TestInMemoryStore_SearchEdgeCases(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	results, err := store.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)

	_, _ = store.Add(ctx, "one", []float32{1, 0}, nil)

	results, err = store.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = store.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestInMemoryStore_DeleteReindexes(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	ids := make([]string, 3)
	for i := range ids {
		id, err := store.Add(ctx, fmt.Sprintf("r%d", i), []float32{1, float32(i)}, nil)
		require.NoError(t, err)
		ids[i] = id
	}

	require.NoError(t, store.Delete(ctx, ids[0]))

	rec, err := store.Get(ctx, ids[2])
	require.NoError(t, err)
	assert.Equal(t, "r2", rec.Text)
}

func TestInMemoryStore_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewInMemoryStore()
	_, err := store.Add(ctx, "x", []float32{1}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Add(ctx, fmt.Sprintf("doc %d", i), []float32{1, float32(i)}, nil)
			assert.NoError(t, err)
			_, err = store.Search(ctx, []float32{1, 1}, 3)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, store.Len())
}

func TestTextMemory_AddAndSearch(t *testing.T) {
	ctx := context.Background()
	mem := NewTextMemory(embedding.NewHashEmbedder(64), NewInMemoryStore())

	_, err := mem.AddText(ctx, "the user prefers python", nil)
	require.NoError(t, err)
	id, err := mem.AddText(ctx, "the weather is sunny", map[string]any{core.MetadataProvenance: core.ProvenanceAgent})
	require.NoError(t, err)

	results, err := mem.SearchText(ctx, "which language does the user prefer? python", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "the user prefers python", results[0].Record.Text)
	assert.Equal(t, core.ProvenanceUser, results[0].Record.Provenance())

	rec, err := mem.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, core.ProvenanceAgent, rec.Provenance())

	require.NoError(t, mem.Delete(ctx, id))
}

func TestMemoryTools(t *testing.T) {
	ctx := context.Background()
	mem := NewTextMemory(embedding.NewHashEmbedder(64), NewInMemoryStore())

	save, err := NewSaveTool(mem)
	require.NoError(t, err)
	search, err := NewSearchTool(mem)
	require.NoError(t, err)

	out, err := save.Handler(ctx, map[string]any{"text": "deploys happen on fridays"})
	require.NoError(t, err)
	assert.Contains(t, out, "saved ")

	out, err = search.Handler(ctx, map[string]any{"query": "when do deploys happen", "limit": 3})
	require.NoError(t, err)
	assert.Contains(t, out, "deploys happen on fridays")

	_, err = search.Handler(ctx, map[string]any{"query": "  "})
	assert.Error(t, err)

	results, err := mem.SearchText(ctx, "deploys", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.ProvenanceAgent, results[0].Record.Provenance())
}

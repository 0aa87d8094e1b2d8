package memory

import (
	"context"
	"fmt"
	"maps"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/hupe1980/echokernel/core"
)

// ErrNotFound is returned when a record id is unknown.
var ErrNotFound = core.ErrRecordNotFound

// InMemoryStore is a naive process‑local MemoryStore.
//
// Concurrency: protected by RWMutex; Add is a single locked append.
// Search: linear scan scoring every record by cosine similarity. Ties keep
// insertion order so results are deterministic. The first Add fixes the
// vector dimension; later vectors of a different length are rejected.
type InMemoryStore struct {
	mu      sync.RWMutex
	records []core.MemoryRecord
	index   map[string]int // id -> position in records
	dims    int
}

var _ core.MemoryStore = (*InMemoryStore)(nil)

// NewInMemoryStore creates a new in-memory memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{index: make(map[string]int)}
}

// Add appends a record with a fresh uuid.
func (m *InMemoryStore) Add(ctx context.Context, text string, vector []float32, metadata map[string]any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(vector) == 0 {
		return "", fmt.Errorf("empty vector")
	}

	rec := core.MemoryRecord{
		ID:       uuid.NewString(),
		Text:     text,
		Vector:   append([]float32(nil), vector...),
		Metadata: maps.Clone(metadata),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dims == 0 {
		m.dims = len(vector)
	} else if len(vector) != m.dims {
		return "", fmt.Errorf("vector dimension %d does not match store dimension %d", len(vector), m.dims)
	}

	m.index[rec.ID] = len(m.records)
	m.records = append(m.records, rec)

	return rec.ID, nil
}

// Search returns up to topK records by descending cosine similarity.
func (m *InMemoryStore) Search(ctx context.Context, vector []float32, topK int) ([]core.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []core.SearchResult{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.dims != 0 && len(vector) != m.dims {
		return nil, fmt.Errorf("query dimension %d does not match store dimension %d", len(vector), m.dims)
	}

	results := make([]core.SearchResult, 0, len(m.records))
	for _, rec := range m.records {
		results = append(results, core.SearchResult{Record: copyRecord(rec), Score: cosine(vector, rec.Vector)})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Get returns a copy of the record with id.
func (m *InMemoryStore) Get(_ context.Context, id string) (core.MemoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos, ok := m.index[id]
	if !ok {
		return core.MemoryRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyRecord(m.records[pos]), nil
}

// Delete removes the record with id.
func (m *InMemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	m.records = append(m.records[:pos], m.records[pos+1:]...)
	delete(m.index, id)
	for i := pos; i < len(m.records); i++ {
		m.index[m.records[i].ID] = i
	}
	return nil
}

// Len returns the number of stored records.
func (m *InMemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func copyRecord(r core.MemoryRecord) core.MemoryRecord {
	r.Vector = append([]float32(nil), r.Vector...)
	r.Metadata = maps.Clone(r.Metadata)
	return r
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

package memory

import (
	"context"
	"fmt"

	"github.com/hupe1980/echokernel/core"
)

// TextMemory pairs an Embedder with a MemoryStore so callers can add and
// search plain text.
type TextMemory struct {
	embedder core.Embedder
	store    core.MemoryStore
}

// NewTextMemory creates a TextMemory.
func NewTextMemory(embedder core.Embedder, store core.MemoryStore) *TextMemory {
	return &TextMemory{embedder: embedder, store: store}
}

// AddText embeds text and stores it. A missing provenance key defaults to user.
func (m *TextMemory) AddText(ctx context.Context, text string, metadata map[string]any) (string, error) {
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return "", fmt.Errorf("embed text: %w", err)
	}

	md := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		md[k] = v
	}
	if _, ok := md[core.MetadataProvenance]; !ok {
		md[core.MetadataProvenance] = core.ProvenanceUser
	}

	return m.store.Add(ctx, text, vec, md)
}

// SearchText embeds query and returns up to topK records by similarity.
func (m *TextMemory) SearchText(ctx context.Context, query string, topK int) ([]core.SearchResult, error) {
	vec, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return m.store.Search(ctx, vec, topK)
}

// Get returns the record with id.
func (m *TextMemory) Get(ctx context.Context, id string) (core.MemoryRecord, error) {
	return m.store.Get(ctx, id)
}

// Delete removes the record with id.
func (m *TextMemory) Delete(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

package memory

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/hupe1980/echokernel/core"
)

// ChromemOptions configure a ChromemStore.
type ChromemOptions struct {
	// Collection name (default "echokernel").
	Collection string
	// PersistPath enables on-disk persistence when non-empty.
	PersistPath string
	// Compress gzips the persisted files.
	Compress bool
}

// ChromemStore is a MemoryStore backed by an embedded chromem-go collection.
// Vectors are always precomputed by the caller; chromem normalizes them on
// insert, so Get returns unit-length vectors.
type ChromemStore struct {
	db  *chromem.DB
	col *chromem.Collection
}

var _ core.MemoryStore = (*ChromemStore)(nil)

var errNoEmbeddingFunc = errors.New("chromem store expects precomputed embeddings")

// NewChromemStore opens (or creates) the collection.
func NewChromemStore(optFns ...func(o *ChromemOptions)) (*ChromemStore, error) {
	opts := ChromemOptions{Collection: "echokernel"}
	for _, fn := range optFns {
		fn(&opts)
	}

	db := chromem.NewDB()
	if opts.PersistPath != "" {
		pdb, err := chromem.NewPersistentDB(opts.PersistPath, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db at %s: %w", opts.PersistPath, err)
		}
		db = pdb
	}

	embed := func(context.Context, string) ([]float32, error) { return nil, errNoEmbeddingFunc }
	col, err := db.GetOrCreateCollection(opts.Collection, nil, embed)
	if err != nil {
		return nil, fmt.Errorf("create chromem collection %s: %w", opts.Collection, err)
	}

	return &ChromemStore{db: db, col: col}, nil
}

// Add stores text with its vector. Metadata values are stringified because
// chromem only keeps string metadata.
func (s *ChromemStore) Add(ctx context.Context, text string, vector []float32, metadata map[string]any) (string, error) {
	if len(vector) == 0 {
		return "", fmt.Errorf("empty vector")
	}
	doc := chromem.Document{
		ID:        uuid.NewString(),
		Content:   text,
		Embedding: append([]float32(nil), vector...),
		Metadata:  stringifyMetadata(metadata),
	}
	if err := s.col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return "", fmt.Errorf("chromem add: %w", err)
	}
	return doc.ID, nil
}

// Search queries by embedding; topK is clamped to the collection size.
func (s *ChromemStore) Search(ctx context.Context, vector []float32, topK int) ([]core.SearchResult, error) {
	n := min(topK, s.col.Count())
	if n <= 0 {
		return []core.SearchResult{}, nil
	}

	res, err := s.col.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}

	out := make([]core.SearchResult, 0, len(res))
	for _, r := range res {
		out = append(out, core.SearchResult{
			Record: core.MemoryRecord{
				ID:       r.ID,
				Text:     r.Content,
				Vector:   r.Embedding,
				Metadata: anyMetadata(r.Metadata),
			},
			Score: float64(r.Similarity),
		})
	}
	return out, nil
}

// Get returns the record with id.
func (s *ChromemStore) Get(ctx context.Context, id string) (core.MemoryRecord, error) {
	doc, err := s.col.GetByID(ctx, id)
	if err != nil {
		return core.MemoryRecord{}, fmt.Errorf("%w: %s: %v", ErrNotFound, id, err)
	}
	return core.MemoryRecord{ID: doc.ID, Text: doc.Content, Vector: doc.Embedding, Metadata: anyMetadata(doc.Metadata)}, nil
}

// Delete removes the record with id.
func (s *ChromemStore) Delete(ctx context.Context, id string) error {
	if _, err := s.col.GetByID(ctx, id); err != nil {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := s.col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("chromem delete: %w", err)
	}
	return nil
}

// Len returns the number of stored documents.
func (s *ChromemStore) Len() int { return s.col.Count() }

func stringifyMetadata(md map[string]any) map[string]string {
	if len(md) == 0 {
		return nil
	}
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = fmt.Sprint(v)
	}
	return out
}

func anyMetadata(md map[string]string) map[string]any {
	out := make(map[string]any, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}

package core

import "context"

// Metadata keys and values written by EchoKernel components.
const (
	MetadataProvenance = "provenance"
	MetadataAgent      = "agent"
	MetadataTask       = "task"

	// ProvenanceUser marks records supplied by a caller.
	ProvenanceUser = "user"
	// ProvenanceAgent marks records persisted by an agent from its own output.
	ProvenanceAgent = "agent"
)

// MemoryRecord is an append-only entry of a vector memory. Records are never
// mutated after creation; they can only be removed with Delete.
type MemoryRecord struct {
	ID       string
	Text     string
	Vector   []float32
	Metadata map[string]any
}

// Provenance returns the provenance marker of the record, if any.
func (r MemoryRecord) Provenance() string {
	s, _ := r.Metadata[MetadataProvenance].(string)
	return s
}

// MemoryStore persists vectors with their text and supports similarity search.
// Add must be safe for concurrent writers without external locking.
type MemoryStore interface {
	// Add appends a record and returns its id.
	Add(ctx context.Context, text string, vector []float32, metadata map[string]any) (string, error)
	// Search returns up to topK records ordered by descending score.
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	// Get returns a record by id.
	Get(ctx context.Context, id string) (MemoryRecord, error)
	// Delete removes a record by id.
	Delete(ctx context.Context, id string) error
}

// Embedder turns text into a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

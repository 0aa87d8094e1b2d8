package core

// SearchResult pairs a retrieved record with its similarity score (higher is closer).
type SearchResult struct {
	Record MemoryRecord
	Score  float64
}

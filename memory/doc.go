// Package memory provides MemoryStore implementations and helpers for
// vector memory:
//
//   - InMemoryStore: process-local brute force cosine search (tests, demos)
//   - ChromemStore: embedded chromem-go collection, optionally persisted to disk
//   - QdrantStore: remote Qdrant collection over gRPC
//   - TextMemory: pairs an Embedder with a store for text in / text out use
//   - NewSearchTool / NewSaveTool: expose a TextMemory to models as tools
//
// All stores are append-only: Add never overwrites an existing record.
package memory

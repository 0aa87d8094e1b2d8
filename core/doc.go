// Package core provides the foundational domain types and ports used by
// EchoKernel. It defines the core abstractions for:
//
//   - Tasks (immutable units of work flowing through agent layers)
//   - Results (terminal status, output and error kind of a run)
//   - Agents (the capability interface every orchestration variant satisfies)
//   - Error kinds (sentinel classification shared by every package)
//   - Ports for embeddings and vector memory (Embedder, MemoryStore)
//
// Concrete agents, providers and stores live in sibling packages; this
// package only exposes small interfaces so backends remain pluggable.
package core

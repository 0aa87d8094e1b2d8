// Package model defines the provider‑agnostic text generation port and
// concrete helpers for interacting with language models inside EchoKernel.
//
// Core goals:
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate deterministic fakes for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so the kernel and agents remain decoupled from vendor SDKs.
package model

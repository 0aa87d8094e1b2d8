// Package runner executes agents on behalf of callers.
//
// A Runner bounds how many agent runs execute at once, attaches a per-run
// model call budget to every run, assigns run ids and keeps the cancel
// functions of active runs so they can be stopped by id.
//
// # Responsibilities
//   - Blocking (Invoke) and asynchronous (Start) invocation
//   - Batched invocation with a concurrency limit (InvokeBatch)
//   - Cancellation by run id
//   - Run logging and agent run metrics
package runner

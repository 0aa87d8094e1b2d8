// Package agent contains the EchoKernel agent variants. Every variant
// implements core.Agent and is built with an explicit constructor taking
// functional options; the set is closed (see core.AgentKind).
//
//   - ModelAgent: persona plus one kernel generation (the leaf)
//   - FuncAgent: adapter turning a function into a leaf agent
//   - TaskDecomposerAgent: plans subtasks and runs them in sequence
//   - RouterAgent: one classification, then dispatch to a named specialist
//   - SpecialistRouterAgent: classification with validation and bounded retries
//   - LoopAgent: delegates repeatedly until a stop phrase or the step bound
//   - MemoryAgent: injects recalled memory before delegating
//   - CollaborativeAgent: alternates two role agents in a bounded dialogue
//
// Within one Run every unit of work is sequential. Distinct Runs may execute
// concurrently against the same agents and kernel.
//
// Failure reporting: by default Run returns a nil error and reports failures
// in the Result. With Strict set, the same failure is also returned as the
// error.
package agent

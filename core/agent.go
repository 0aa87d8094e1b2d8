package core

import "context"

// AgentKind tags the closed set of agent variants.
type AgentKind string

const (
	KindModelAgent         AgentKind = "model"
	KindTaskDecomposer     AgentKind = "decomposer"
	KindRouter             AgentKind = "router"
	KindSpecialistRouter   AgentKind = "specialist_router"
	KindLoopAgent          AgentKind = "loop"
	KindMemoryAgent        AgentKind = "memory"
	KindCollaborativeAgent AgentKind = "collaborative"
	KindFuncAgent          AgentKind = "func"
)

// Agent defines the interface every orchestration unit implements.
//
// Run always returns a well-formed Result. Non-strict agents report failures
// only through the Result; strict agents additionally return the failure as
// the error so callers can short-circuit with errors.Is.
//
// Implementations must:
//   - Respect context cancellation and report StatusCancelled when it fires
//   - Treat the incoming Task as read-only (wrap it with WithContext instead)
//   - Be safe for concurrent Run calls against distinct tasks
type Agent interface {
	Name() string
	Kind() AgentKind
	Run(ctx context.Context, task Task) (Result, error)
}

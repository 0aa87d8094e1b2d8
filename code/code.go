// Package code runs model-written source code and exposes it as a tool.
package code

import "context"

// Result is the outcome of one execution.
type Result struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitStatus int    `json:"exit_status"`
	Success    bool   `json:"success"`
	// TimedOut is set when the execution was killed by the executor timeout.
	TimedOut bool `json:"timed_out,omitempty"`
	// Truncated is set when stdout or stderr exceeded the output cap.
	Truncated bool `json:"truncated,omitempty"`
}

// Executor defines the interface for executing code snippets.
type Executor interface {
	// Execute runs source written in language. A failing program is reported
	// through Result; the error is reserved for executor failures.
	Execute(ctx context.Context, language, source string) (Result, error)

	// Languages returns the supported language names.
	Languages() []string
}

package testutil

import "github.com/hupe1980/echokernel/core"

// TaskBuilder helps construct tasks with fluent chaining for tests.
// Example:
//
//	task := NewTaskBuilder("summarize").Meta("lang", "en").Context("prior").Build()
type TaskBuilder struct {
	task core.Task
}

// NewTaskBuilder creates a new builder for a task with the given description.
func NewTaskBuilder(description string) *TaskBuilder {
	return &TaskBuilder{task: core.NewTask(description)}
}

// Meta sets a metadata key/value pair (chainable).
func (b *TaskBuilder) Meta(key string, val any) *TaskBuilder {
	b.task = b.task.WithMetadata(key, val)
	return b
}

// Context prepends a context block to the prompt (chainable).
func (b *TaskBuilder) Context(block string) *TaskBuilder {
	b.task = b.task.WithContext(block)
	return b
}

// Build returns the task.
func (b *TaskBuilder) Build() core.Task {
	return b.task
}

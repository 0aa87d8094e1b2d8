package core

import (
	"maps"
	"strings"
)

// Task is a text description plus optional metadata. A Task is a value: the
// With* helpers return modified copies, so the task handed to an agent is
// never changed underneath it.
type Task struct {
	Description string
	Metadata    map[string]any

	context []string
}

// NewTask creates a Task for the given description.
func NewTask(description string) Task {
	return Task{Description: description}
}

// WithMetadata returns a copy of the task with key set to value.
func (t Task) WithMetadata(key string, value any) Task {
	md := make(map[string]any, len(t.Metadata)+1)
	maps.Copy(md, t.Metadata)
	md[key] = value
	t.Metadata = md
	return t
}

// WithContext returns a copy of the task with an additional context block.
// Blocks are rendered before the description, in the order they were added.
func (t Task) WithContext(block string) Task {
	if strings.TrimSpace(block) == "" {
		return t
	}
	ctx := make([]string, len(t.context), len(t.context)+1)
	copy(ctx, t.context)
	t.context = append(ctx, block)
	return t
}

// Context returns a copy of the context blocks attached to the task.
func (t Task) Context() []string {
	out := make([]string, len(t.context))
	copy(out, t.context)
	return out
}

// Prompt renders the context blocks followed by the description.
func (t Task) Prompt() string {
	if len(t.context) == 0 {
		return t.Description
	}
	var b strings.Builder
	for _, c := range t.context {
		b.WriteString(c)
		b.WriteString("\n\n")
	}
	b.WriteString(t.Description)
	return b.String()
}

// MetadataString returns the metadata value for key when it is a string.
func (t Task) MetadataString(key string) string {
	s, _ := t.Metadata[key].(string)
	return s
}

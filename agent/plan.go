package agent

import (
	"fmt"
	"regexp"
	"strings"
)

// planItem matches "1. x", "1) x", "1: x", "Step 1: x", "**1.** x" and "- 1. x".
// The delimiter must be followed by whitespace or the end of the line, so a
// wrapped line such as "3.5 percent" continues the current item.
var planItem = regexp.MustCompile(`(?i)^[\s>*#-]*(?:step\s+)?(\d+)\s*(?:[.):]|\*\*[.):]?)\**(?:\s+|$)(.*)$`)

// ParsePlan extracts an ordered list of subtasks from a numbered plan.
//
// Lines that do not start a new item are appended to the current one, so
// wrapped descriptions stay intact; text before the first item is ignored.
// Without any numbered line the whole response becomes the single subtask,
// and an empty response falls back to fallback. The result is never empty.
func ParsePlan(response, fallback string) []string {
	var (
		items   []string
		current *strings.Builder
	)

	flush := func() {
		if current == nil {
			return
		}
		if s := strings.TrimSpace(current.String()); s != "" {
			items = append(items, s)
		}
		current = nil
	}

	for _, line := range strings.Split(response, "\n") {
		if m := planItem.FindStringSubmatch(line); m != nil {
			flush()
			current = &strings.Builder{}
			current.WriteString(strings.TrimSpace(strings.Trim(m[2], "*")))
			continue
		}
		text := strings.TrimSpace(line)
		if current == nil || text == "" {
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(text)
	}
	flush()

	if len(items) > 0 {
		return items
	}
	if s := strings.TrimSpace(response); s != "" {
		return []string{s}
	}
	return []string{fallback}
}

// numbered renders items as "1. a\n2. b".
func numbered(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s", i+1, strings.TrimSpace(item))
	}
	return b.String()
}

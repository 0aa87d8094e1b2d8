package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/hupe1980/echokernel/core"
	"github.com/hupe1980/echokernel/tool"
)

type searchArgs struct {
	Query string `json:"query" jsonschema:"description=What to look for in long-term memory"`
	Limit int    `json:"limit,omitempty" jsonschema:"description=Maximum number of records (default 5),minimum=1,maximum=50"`
}

type saveArgs struct {
	Text string `json:"text" jsonschema:"description=Fact or note to remember"`
}

// NewSearchTool exposes m as the search_memory tool.
func NewSearchTool(m *TextMemory) (tool.Spec, error) {
	return tool.NewTyped("search_memory", "Search long-term memory for records relevant to a query.",
		func(ctx context.Context, in searchArgs) (string, error) {
			if strings.TrimSpace(in.Query) == "" {
				return "", tool.NewToolError("search_memory", "query must not be empty", tool.CodeValidation)
			}
			limit := in.Limit
			if limit <= 0 {
				limit = 5
			}

			results, err := m.SearchText(ctx, in.Query, limit)
			if err != nil {
				return "", err
			}
			if len(results) == 0 {
				return "No matching memories.", nil
			}

			var b strings.Builder
			for i, r := range results {
				fmt.Fprintf(&b, "%d. [%.3f] %s\n", i+1, r.Score, r.Record.Text)
			}
			return strings.TrimRight(b.String(), "\n"), nil
		})
}

// NewSaveTool exposes m as the save_memory tool. Saved records carry agent provenance.
func NewSaveTool(m *TextMemory) (tool.Spec, error) {
	return tool.NewTyped("save_memory", "Store a fact in long-term memory.",
		func(ctx context.Context, in saveArgs) (string, error) {
			if strings.TrimSpace(in.Text) == "" {
				return "", tool.NewToolError("save_memory", "text must not be empty", tool.CodeValidation)
			}
			id, err := m.AddText(ctx, in.Text, map[string]any{core.MetadataProvenance: core.ProvenanceAgent})
			if err != nil {
				return "", err
			}
			return "saved " + id, nil
		})
}

package web

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/hupe1980/echokernel/tool"
)

// Tool names.
const (
	GetWebContentToolName = "get_web_content"
	SearchWebToolName     = "search_web"
)

type getWebContentArgs struct {
	URL string `json:"url" jsonschema:"description=Absolute http or https URL of the page"`
}

type searchWebArgs struct {
	Query      string `json:"query" jsonschema:"description=Search query"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"description=Maximum number of results (default 5),minimum=1,maximum=10"`
}

// NewGetWebContentTool returns the get_web_content tool. The output is the
// JSON encoded Page.
func NewGetWebContentTool(c *Client) (tool.Spec, error) {
	return tool.NewTyped(GetWebContentToolName, "Retrieves a web page and returns its title, description, headings and text content.",
		func(ctx context.Context, in getWebContentArgs) (string, error) {
			if _, err := ValidateURL(in.URL); err != nil {
				return "", tool.NewToolError(GetWebContentToolName, err.Error(), tool.CodeValidation)
			}
			page, err := c.FetchPage(ctx, in.URL)
			if err != nil {
				return "", err
			}
			return toJSON(page)
		})
}

// NewSearchWebTool returns the search_web tool backed by s. The output is a
// JSON object with the query and its results.
func NewSearchWebTool(s Searcher) (tool.Spec, error) {
	return tool.NewTyped(SearchWebToolName, "Searches the web and returns result titles, URLs and snippets.",
		func(ctx context.Context, in searchWebArgs) (string, error) {
			if strings.TrimSpace(in.Query) == "" {
				return "", tool.NewToolError(SearchWebToolName, "query must not be empty", tool.CodeValidation)
			}
			limit := min(max(in.MaxResults, 0), 10)
			results, err := s.Search(ctx, in.Query, limit)
			if err != nil {
				return "", err
			}
			return toJSON(map[string]any{"query": in.Query, "results": results})
		})
}

// Tools returns both web tools. A nil searcher searches through c.
func Tools(c *Client, s Searcher) ([]tool.Spec, error) {
	if s == nil {
		s = c
	}
	get, err := NewGetWebContentTool(c)
	if err != nil {
		return nil, err
	}
	search, err := NewSearchWebTool(s)
	if err != nil {
		return nil, err
	}
	return []tool.Spec{get, search}, nil
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

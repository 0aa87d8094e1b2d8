package web

import (
	"context"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// SearchResult is one organic search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Searcher runs a web search and returns up to maxResults hits in rank order.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

var _ Searcher = (*Client)(nil)

// Search queries the DuckDuckGo HTML endpoint and returns up to
// maxResults hits in page order.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	u, err := url.Parse(c.opts.SearchURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	doc, _, err := c.get(ctx, u.String())
	if err != nil {
		return nil, err
	}

	results := parseResults(doc, maxResults)
	c.logger.Debug("web.search.done", "query", query, "results", len(results))

	return results, nil
}

func parseResults(doc *goquery.Document, max int) []SearchResult {
	var out []SearchResult

	doc.Find(".result").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.HasClass("result--ad") {
			return true
		}
		link := s.Find("a.result__a").First()
		href, ok := link.Attr("href")
		if !ok {
			return true
		}
		out = append(out, SearchResult{
			Title:   collapse(link.Text()),
			URL:     resolveRedirect(href),
			Snippet: collapse(s.Find(".result__snippet").First().Text()),
		})
		return len(out) < max
	})

	return out
}

// resolveRedirect unwraps DuckDuckGo "/l/?uddg=<target>" links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

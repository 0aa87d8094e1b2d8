package web

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Default API endpoints of the keyed search backends.
const (
	DefaultBingEndpoint   = "https://api.bing.microsoft.com/v7.0/search"
	DefaultGoogleEndpoint = "https://www.googleapis.com/customsearch/v1"
)

// Per-request result limits of the keyed search backends.
const (
	bingMaxResults   = 50
	googleMaxResults = 10
)

// BingSearcher queries the Bing Web Search API through a Client, sharing its
// throttle and HTTP settings.
type BingSearcher struct {
	client   *Client
	apiKey   string
	endpoint string
}

var _ Searcher = (*BingSearcher)(nil)

// NewBingSearcher creates a BingSearcher. An empty endpoint selects
// DefaultBingEndpoint.
func NewBingSearcher(c *Client, apiKey, endpoint string) *BingSearcher {
	if endpoint == "" {
		endpoint = DefaultBingEndpoint
	}
	return &BingSearcher{client: c, apiKey: apiKey, endpoint: endpoint}
}

type bingResponse struct {
	WebPages struct {
		Value []struct {
			Name    string `json:"name"`
			URL     string `json:"url"`
			Snippet string `json:"snippet"`
		} `json:"value"`
	} `json:"webPages"`
}

// Search implements Searcher.
func (b *BingSearcher) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	maxResults = min(maxResults, bingMaxResults)

	u, err := url.Parse(b.endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("q", query)
	q.Set("count", strconv.Itoa(maxResults))
	q.Set("responseFilter", "Webpages")
	q.Set("textFormat", "Raw")
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Ocp-Apim-Subscription-Key", b.apiKey)

	var resp bingResponse
	if err := b.client.getJSON(ctx, u.String(), header, &resp); err != nil {
		return nil, fmt.Errorf("bing search: %w", err)
	}

	var out []SearchResult
	for _, v := range resp.WebPages.Value {
		if len(out) == maxResults {
			break
		}
		out = append(out, SearchResult{Title: collapse(v.Name), URL: v.URL, Snippet: collapse(v.Snippet)})
	}

	b.client.logger.Debug("web.search.done", "backend", "bing", "query", query, "results", len(out))
	return out, nil
}

// GoogleSearcher queries the Google Custom Search JSON API.
type GoogleSearcher struct {
	client   *Client
	apiKey   string
	engineID string
	endpoint string
}

var _ Searcher = (*GoogleSearcher)(nil)

// NewGoogleSearcher creates a GoogleSearcher for the custom search engine
// engineID. An empty endpoint selects DefaultGoogleEndpoint.
func NewGoogleSearcher(c *Client, apiKey, engineID, endpoint string) *GoogleSearcher {
	if endpoint == "" {
		endpoint = DefaultGoogleEndpoint
	}
	return &GoogleSearcher{client: c, apiKey: apiKey, engineID: engineID, endpoint: endpoint}
}

type googleResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

// Search implements Searcher.
func (g *GoogleSearcher) Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 5
	}
	maxResults = min(maxResults, googleMaxResults)

	u, err := url.Parse(g.endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("key", g.apiKey)
	q.Set("cx", g.engineID)
	q.Set("q", query)
	q.Set("num", strconv.Itoa(maxResults))
	u.RawQuery = q.Encode()

	var resp googleResponse
	if err := g.client.getJSON(ctx, u.String(), nil, &resp); err != nil {
		return nil, fmt.Errorf("google search: %w", err)
	}

	var out []SearchResult
	for _, it := range resp.Items {
		if len(out) == maxResults {
			break
		}
		out = append(out, SearchResult{Title: collapse(it.Title), URL: it.Link, Snippet: collapse(it.Snippet)})
	}

	g.client.logger.Debug("web.search.done", "backend", "google", "query", query, "results", len(out))
	return out, nil
}

// Package web provides rate limited web access tools: page content
// extraction and web search.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/hupe1980/echokernel/logging"
)

// DefaultSearchURL is the DuckDuckGo HTML endpoint.
const DefaultSearchURL = "https://html.duckduckgo.com/html/"

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	// RequestsPerSecond throttles outgoing requests; <= 0 disables throttling.
	RequestsPerSecond float64
	UserAgent         string
	// MaxBodyBytes rejects larger responses.
	MaxBodyBytes int64
	// MaxTextChars truncates extracted page text.
	MaxTextChars int
	SearchURL    string
	Logger       logging.Logger
}

// Client fetches pages and search results.
type Client struct {
	opts    Options
	http    *http.Client
	limiter *rate.Limiter
	logger  logging.Logger
}

// NewClient creates a Client.
func NewClient(optFns ...func(o *Options)) *Client {
	opts := Options{
		RequestsPerSecond: 1,
		UserAgent:         "EchoKernel-WebAccess/1.0",
		MaxBodyBytes:      10 * 1024 * 1024,
		MaxTextChars:      20000,
		SearchURL:         DefaultSearchURL,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &Client{
		opts:    opts,
		http:    httpClient,
		limiter: limiter,
		logger:  logging.OrNoOp(opts.Logger),
	}
}

// Page is the text content extracted from an HTML page.
type Page struct {
	URL         string   `json:"url"`
	StatusCode  int      `json:"status_code"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Headings    []string `json:"headings,omitempty"`
	Text        string   `json:"text"`
	WordCount   int      `json:"word_count"`
	Truncated   bool     `json:"truncated,omitempty"`
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid url %q: missing host", raw)
	}
	return u, nil
}

// FetchPage downloads rawURL and extracts title, description, headings and text.
func (c *Client) FetchPage(ctx context.Context, rawURL string) (Page, error) {
	u, err := ValidateURL(rawURL)
	if err != nil {
		return Page{}, err
	}

	doc, status, err := c.get(ctx, u.String())
	if err != nil {
		return Page{URL: u.String(), StatusCode: status}, err
	}

	doc.Find("script, style, noscript").Remove()

	page := Page{
		URL:        u.String(),
		StatusCode: status,
		Title:      strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).Attr("content"); ok {
		page.Description = strings.TrimSpace(desc)
	}
	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if h := collapse(s.Text()); h != "" {
			page.Headings = append(page.Headings, h)
		}
	})

	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	var text strings.Builder
	for _, n := range body.Nodes {
		visibleText(n, &text)
	}
	words := strings.Fields(text.String())
	page.WordCount = len(words)
	page.Text = strings.Join(words, " ")
	if c.opts.MaxTextChars > 0 && len(page.Text) > c.opts.MaxTextChars {
		page.Text = truncateUTF8(page.Text, c.opts.MaxTextChars)
		page.Truncated = true
	}

	c.logger.Debug("web.fetch.done", "url", page.URL, "status", status, "words", page.WordCount)

	return page, nil
}

// get performs a throttled GET and parses the HTML body.
func (c *Client) get(ctx context.Context, target string) (*goquery.Document, int, error) {
	header := http.Header{}
	header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	header.Set("Accept-Language", "en-US,en;q=0.5")

	body, status, err := c.do(ctx, target, header)
	if err != nil {
		return nil, status, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, status, fmt.Errorf("parse html: %w", err)
	}
	return doc, status, nil
}

// getJSON performs a throttled GET and decodes the JSON body into v.
func (c *Client) getJSON(ctx context.Context, target string, header http.Header, v any) error {
	if header == nil {
		header = http.Header{}
	}
	header.Set("Accept", "application/json")

	body, _, err := c.do(ctx, target, header)
	if err != nil {
		return err
	}
	defer body.Close()

	if err := json.NewDecoder(body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	return nil
}

// do waits for the limiter, sends a GET and returns the size-limited body of
// a 200 response. The caller closes the body.
func (c *Client) do(ctx context.Context, target string, header http.Header) (io.ReadCloser, int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, 0, err
	}
	for k, vs := range header {
		req.Header[k] = vs
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request %s: %w", redact(target), err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, resp.StatusCode, fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	if c.opts.MaxBodyBytes > 0 && resp.ContentLength > c.opts.MaxBodyBytes {
		resp.Body.Close()
		return nil, resp.StatusCode, fmt.Errorf("content too large (%d bytes, limit %d)", resp.ContentLength, c.opts.MaxBodyBytes)
	}

	body := resp.Body
	if c.opts.MaxBodyBytes > 0 {
		body = limitedBody{Reader: io.LimitReader(resp.Body, c.opts.MaxBodyBytes), Closer: resp.Body}
	}
	return body, resp.StatusCode, nil
}

type limitedBody struct {
	io.Reader
	io.Closer
}

// redact drops the query string, which may carry API keys.
func redact(target string) string {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i]
	}
	return target
}

// visibleText appends every text node below n, separated by spaces.
func visibleText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		b.WriteByte(' ')
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		visibleText(c, b)
	}
}

func collapse(s string) string { return strings.Join(strings.Fields(s), " ") }

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

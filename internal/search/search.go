// Package search issues web searches through the shared gate.
package search

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/company-intel/internal/resilience"
	"github.com/sells-group/company-intel/pkg/jina"
)

const maxSnippet = 300

// Result is one ranked search hit reduced to metadata.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Date    string `json:"date,omitempty"`
}

// Searcher runs a single web search query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

// Client adapts a jina.Client to Searcher. Every attempt waits on the
// gate's search spacing; rate limits and 5xx are retried per the gate's
// search policy.
type Client struct {
	jina jina.Client
	gate resilience.Gate
}

// New creates a search Client.
func New(jc jina.Client, gate resilience.Gate) *Client {
	return &Client{jina: jc, gate: gate}
}

// Search returns results for query in rank order.
func (c *Client) Search(ctx context.Context, query string) ([]Result, error) {
	resp, err := resilience.Call(ctx, c.gate, resilience.ServiceSearch, "search",
		func(ctx context.Context) (*jina.SearchResponse, error) {
			return c.jina.Search(ctx, query)
		})
	if err != nil {
		return nil, eris.Wrapf(err, "search: query %q", query)
	}

	results := make([]Result, 0, len(resp.Data))
	for _, r := range resp.Data {
		if strings.TrimSpace(r.URL) == "" {
			continue
		}
		snippet := r.Description
		if snippet == "" {
			snippet = r.Content
		}
		results = append(results, Result{
			Title:   strings.TrimSpace(r.Title),
			URL:     strings.TrimSpace(r.URL),
			Snippet: clip(strings.Join(strings.Fields(snippet), " "), maxSnippet),
			Date:    r.Date,
		})
	}
	return results, nil
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

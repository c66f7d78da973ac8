// Package search implements the web search capability used by researchers:
// a Tavily provider, concurrent multi-query search, de-duplication by URL,
// optional summarization of raw page content, and the text rendering handed
// back to the model.
package search

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Topic filters search results by domain.
type Topic string

const (
	TopicGeneral Topic = "general"
	TopicNews    Topic = "news"
	TopicFinance Topic = "finance"
)

// Result is a single document returned for a query.
type Result struct {
	URL        string `json:"url"`
	Title      string `json:"title"`
	Content    string `json:"content"`
	RawContent string `json:"raw_content,omitempty"`
}

// Response groups the results returned for one query.
type Response struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Provider executes a single search query.
type Provider interface {
	Search(ctx context.Context, query string, maxResults int, topic Topic) (Response, error)
}

// SearchAll runs every query concurrently. Responses are returned in query
// order; the first failure cancels the remaining queries.
func SearchAll(ctx context.Context, p Provider, queries []string, maxResults int, topic Topic) ([]Response, error) {
	responses := make([]Response, len(queries))
	g, gctx := errgroup.WithContext(ctx)

	for i, q := range queries {
		g.Go(func() error {
			resp, err := p.Search(gctx, q, maxResults, topic)
			if err != nil {
				return fmt.Errorf("search %q: %w", q, err)
			}
			if resp.Query == "" {
				resp.Query = q
			}
			responses[i] = resp
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

// Document is a result tagged with the query that first produced it.
type Document struct {
	Result
	Query string
}

// Dedupe flattens responses keeping the first occurrence of each URL, in
// the order encountered.
func Dedupe(responses []Response) []Document {
	seen := make(map[string]bool)
	var out []Document
	for _, resp := range responses {
		for _, r := range resp.Results {
			if seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			out = append(out, Document{Result: r, Query: resp.Query})
		}
	}
	return out
}

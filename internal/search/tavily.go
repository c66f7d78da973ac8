package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Compile-time interface check.
var _ Provider = (*Tavily)(nil)

// DefaultTavilyURL is the Tavily search endpoint.
const DefaultTavilyURL = "https://api.tavily.com/search"

// ErrRateLimited is returned when Tavily keeps answering 429 after every
// attempt.
var ErrRateLimited = errors.New("tavily: rate limited")

// Tavily calls the Tavily search API.
type Tavily struct {
	apiKey   string
	endpoint string
	client   *http.Client

	// baseDelay is the first rate-limit pause; it doubles up to maxDelay.
	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int
}

// NewTavily constructs a Tavily provider. A nil client gets a 30 second
// timeout.
func NewTavily(apiKey string, client *http.Client) *Tavily {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Tavily{
		apiKey:    apiKey,
		endpoint:  DefaultTavilyURL,
		client:    client,
		baseDelay:   time.Second,
		maxDelay:    30 * time.Second,
		maxAttempts: 5,
	}
}

// WithEndpoint returns a copy of t that posts to endpoint.
func (t *Tavily) WithEndpoint(endpoint string) *Tavily {
	cp := *t
	cp.endpoint = endpoint
	return &cp
}

type tavilyRequest struct {
	Query             string `json:"query"`
	MaxResults        int    `json:"max_results,omitempty"`
	Topic             Topic  `json:"topic,omitempty"`
	IncludeRawContent bool   `json:"include_raw_content"`
}

type tavilyResponse struct {
	Query   string `json:"query"`
	Results []struct {
		URL        string  `json:"url"`
		Title      string  `json:"title"`
		Content    string  `json:"content"`
		RawContent *string `json:"raw_content"`
	} `json:"results"`
}

// Search posts one query to Tavily, requesting raw page content. Rate-limit
// responses are retried with doubling delay, at most maxAttempts requests in
// total, after which ErrRateLimited is returned.
func (t *Tavily) Search(ctx context.Context, query string, maxResults int, topic Topic) (Response, error) {
	if strings.TrimSpace(t.apiKey) == "" {
		return Response{}, errors.New("tavily: API key is missing")
	}
	if topic == "" {
		topic = TopicGeneral
	}

	payload, err := json.Marshal(tavilyRequest{
		Query:             query,
		MaxResults:        maxResults,
		Topic:             topic,
		IncludeRawContent: true,
	})
	if err != nil {
		return Response{}, fmt.Errorf("tavily: marshal request: %w", err)
	}

	var resp *http.Response
	delay := t.baseDelay
	for attempt := 1; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(payload))
		if err != nil {
			return Response{}, fmt.Errorf("tavily: create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+t.apiKey)

		resp, err = t.client.Do(req)
		if err != nil {
			return Response{}, fmt.Errorf("tavily: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()
		if attempt >= t.maxAttempts {
			return Response{}, fmt.Errorf("%w after %d attempts", ErrRateLimited, attempt)
		}

		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-time.After(delay):
		}
		if delay < t.maxDelay {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Response{}, fmt.Errorf("tavily: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Response{}, fmt.Errorf("tavily: decode response: %w", err)
	}

	out := Response{Query: decoded.Query}
	if out.Query == "" {
		out.Query = query
	}
	for _, r := range decoded.Results {
		res := Result{URL: r.URL, Title: r.Title, Content: r.Content}
		if r.RawContent != nil {
			res.RawContent = *r.RawContent
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}

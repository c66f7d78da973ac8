package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

const (
	// MaxSummarizedChars caps the raw content sent for summarization.
	MaxSummarizedChars = 50_000

	// SummarizeTimeout bounds each page summarization.
	SummarizeTimeout = 60 * time.Second

	// NoResultsMessage is returned when no query produced any document.
	NoResultsMessage = "No valid search results found. Please try different search queries or use a different search API."
)

// Service runs a batch of queries and renders the de-duplicated, optionally
// summarized documents as text for a model.
type Service struct {
	provider   Provider
	summarizer Summarizer
	maxResults int
	topic      Topic
	timeout    time.Duration
	logger     *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithSummarizer enables summarization of raw page content.
func WithSummarizer(s Summarizer) ServiceOption {
	return func(svc *Service) { svc.summarizer = s }
}

// WithMaxResults sets the per-query result cap.
func WithMaxResults(n int) ServiceOption {
	return func(svc *Service) {
		if n > 0 {
			svc.maxResults = n
		}
	}
}

// WithTopic sets the topic filter.
func WithTopic(t Topic) ServiceOption {
	return func(svc *Service) {
		if t != "" {
			svc.topic = t
		}
	}
}

// WithSummarizeTimeout overrides SummarizeTimeout.
func WithSummarizeTimeout(d time.Duration) ServiceOption {
	return func(svc *Service) { svc.timeout = d }
}

// WithLogger sets the logger used for summarization fallbacks.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(svc *Service) {
		if l != nil {
			svc.logger = l
		}
	}
}

// NewService creates a Service backed by provider.
func NewService(provider Provider, opts ...ServiceOption) *Service {
	svc := &Service{
		provider:   provider,
		maxResults: 5,
		topic:      TopicGeneral,
		timeout:    SummarizeTimeout,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Run searches all queries, de-duplicates by URL, summarizes documents that
// carry raw content and formats the result. A summarization that fails or
// times out falls back to the truncated raw content.
func (s *Service) Run(ctx context.Context, queries []string) (string, error) {
	responses, err := SearchAll(ctx, s.provider, queries, s.maxResults, s.topic)
	if err != nil {
		return "", err
	}

	docs := Dedupe(responses)
	if len(docs) == 0 {
		return NoResultsMessage, nil
	}

	bodies := make([]string, len(docs))
	g, gctx := errgroup.WithContext(ctx)
	for i, d := range docs {
		if d.RawContent == "" || s.summarizer == nil {
			bodies[i] = d.Content
			continue
		}
		g.Go(func() error {
			bodies[i] = s.summarize(gctx, d)
			return nil
		})
	}
	_ = g.Wait()

	return Format(docs, bodies), nil
}

func (s *Service) summarize(ctx context.Context, d Document) string {
	raw := TruncateRunes(d.RawContent, MaxSummarizedChars)

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	summary, err := s.summarizer.Summarize(sctx, raw)
	if err != nil {
		s.logger.Warn("search: failed to summarize webpage", "url", d.URL, "err", err)
		return raw
	}
	return summary
}

// Format renders documents with their bodies as numbered sources.
func Format(docs []Document, bodies []string) string {
	var b strings.Builder
	b.WriteString("Search results: \n\n")
	for i, d := range docs {
		fmt.Fprintf(&b, "\n\n--- SOURCE %d: %s ---\n", i+1, d.Title)
		fmt.Fprintf(&b, "URL: %s\n\n", d.URL)
		fmt.Fprintf(&b, "SUMMARY:\n%s\n\n", bodies[i])
		b.WriteString("\n\n" + strings.Repeat("-", 80) + "\n")
	}
	return b.String()
}

// TruncateRunes returns at most n characters of s. A negative n yields "".
func TruncateRunes(s string, n int) string {
	n = max(n, 0)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

package search

import (
	"context"
	"fmt"

	"github.com/dusk-indust/deepresearch/internal/llm"
	"github.com/dusk-indust/deepresearch/internal/prompts"
)

// Summarizer condenses raw page content.
type Summarizer interface {
	Summarize(ctx context.Context, content string) (string, error)
}

// Summary is the structured output requested from the summarization model.
type Summary struct {
	Summary     string `json:"summary" jsonschema:"concise summary of the page"`
	KeyExcerpts string `json:"key_excerpts" jsonschema:"important quotes and excerpts from the page"`
}

// ModelSummarizer summarizes pages with the summarization-tier model.
type ModelSummarizer struct {
	gateway llm.Gateway
	opts    llm.Options
}

// NewModelSummarizer returns a Summarizer invoking gateway with opts. The
// options name the model, output budget and structured-output retry budget.
func NewModelSummarizer(gateway llm.Gateway, opts llm.Options) *ModelSummarizer {
	return &ModelSummarizer{gateway: gateway, opts: opts}
}

// Summarize returns the page summary wrapped in <summary> and <key_excerpts>
// tags.
func (s *ModelSummarizer) Summarize(ctx context.Context, content string) (string, error) {
	prompt := prompts.SummarizeWebpage(content)
	out, err := llm.InvokeStructured[Summary](ctx, s.gateway, []llm.Message{llm.Human(prompt)}, s.opts)
	if err != nil {
		return "", fmt.Errorf("summarize webpage: %w", err)
	}
	return fmt.Sprintf("<summary>\n%s\n</summary>\n\n<key_excerpts>\n%s\n</key_excerpts>", out.Summary, out.KeyExcerpts), nil
}

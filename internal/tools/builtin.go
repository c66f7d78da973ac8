package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dusk-indust/deepresearch/internal/llm"
)

// Tool names the workflows recognise.
const (
	ResearchCompleteName = "ResearchComplete"
	ConductResearchName  = "ConductResearch"
	WebSearchName        = "web_search"
)

// Compile-time interface checks.
var (
	_ Tool = ResearchComplete{}
	_ Tool = ConductResearch{}
	_ Tool = (*WebSearch)(nil)
)

// ResearchComplete is the no-argument sentinel a model calls to signal that
// it needs no further tool calls.
type ResearchComplete struct{}

func (ResearchComplete) Name() string { return ResearchCompleteName }

func (ResearchComplete) Description() string {
	return "Call this tool to indicate that the research is complete."
}

func (ResearchComplete) Schema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}

func (ResearchComplete) Invoke(context.Context, json.RawMessage) (string, error) {
	return "Research marked complete.", nil
}

// ConductResearchArgs are the arguments of a ConductResearch call.
type ConductResearchArgs struct {
	ResearchTopic string `json:"research_topic" jsonschema:"The topic to research. Should be a single topic, described in high detail (at least a paragraph)."`
}

// ConductResearch delegates one topic to a researcher. The supervisor
// dispatches these calls itself; the tool exists to describe them to the
// model.
type ConductResearch struct{}

func (ConductResearch) Name() string { return ConductResearchName }

func (ConductResearch) Description() string {
	return "Call this tool to conduct research on a specific topic."
}

func (ConductResearch) Schema() json.RawMessage {
	return llm.SchemaJSON[ConductResearchArgs]()
}

func (ConductResearch) Invoke(context.Context, json.RawMessage) (string, error) {
	return "", errors.New("ConductResearch is dispatched by the supervisor")
}

// ParseConductResearch decodes and checks a ConductResearch argument payload.
func ParseConductResearch(args json.RawMessage) (string, error) {
	var a ConductResearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid ConductResearch arguments: %w", err)
	}
	topic := strings.TrimSpace(a.ResearchTopic)
	if topic == "" {
		return "", errors.New("invalid ConductResearch arguments: research_topic is empty")
	}
	return topic, nil
}

// Searcher runs a batch of queries and renders the results as text.
// *search.Service satisfies it.
type Searcher interface {
	Run(ctx context.Context, queries []string) (string, error)
}

// WebSearchArgs are the arguments of a web_search call.
type WebSearchArgs struct {
	Queries []string `json:"queries" jsonschema:"List of search queries to execute"`
}

// WebSearch exposes a Searcher to researchers.
type WebSearch struct {
	searcher Searcher
}

// NewWebSearch wraps s as the web_search tool.
func NewWebSearch(s Searcher) *WebSearch {
	return &WebSearch{searcher: s}
}

func (*WebSearch) Name() string { return WebSearchName }

func (*WebSearch) Description() string {
	return "A search engine optimized for comprehensive, accurate, and trusted results. " +
		"Useful for when you need to answer questions about current events. " +
		"Input should be a list of search queries."
}

func (*WebSearch) Schema() json.RawMessage {
	return llm.SchemaJSON[WebSearchArgs]()
}

func (w *WebSearch) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var a WebSearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("web_search: decode arguments: %w", err)
	}
	if len(a.Queries) == 0 {
		return "", errors.New("web_search: no queries given")
	}
	return w.searcher.Run(ctx, a.Queries)
}

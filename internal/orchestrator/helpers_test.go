package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/dusk-indust/deepresearch/internal/llm"
	"github.com/dusk-indust/deepresearch/internal/tools"
	"github.com/stretchr/testify/require"
)

// callKind identifies which workflow step issued a model call.
type callKind int

const (
	kindClarify callKind = iota
	kindBrief
	kindSupervise
	kindResearch
	kindCompress
	kindReport
	kindSummarize
)

func (k callKind) String() string {
	return [...]string{"clarify", "brief", "supervise", "research", "compress", "report", "summarize"}[k]
}

type recordedCall struct {
	kind     callKind
	messages []llm.Message
	opts     llm.Options
}

// stubGateway routes each call to respond by the step that issued it and
// records every call.
type stubGateway struct {
	t       *testing.T
	respond func(kind callKind, messages []llm.Message) (*llm.Response, error)

	mu    sync.Mutex
	calls []recordedCall
}

func newStubGateway(t *testing.T, respond func(kind callKind, messages []llm.Message) (*llm.Response, error)) *stubGateway {
	return &stubGateway{t: t, respond: respond}
}

func (g *stubGateway) Invoke(_ context.Context, messages []llm.Message, opts llm.Options) (*llm.Response, error) {
	kind := g.classify(messages, opts)
	g.mu.Lock()
	g.calls = append(g.calls, recordedCall{kind: kind, messages: slices.Clone(messages), opts: opts})
	g.mu.Unlock()
	return g.respond(kind, messages)
}

func (g *stubGateway) classify(messages []llm.Message, opts llm.Options) callKind {
	hasTool := func(name string) bool {
		return slices.ContainsFunc(opts.Tools, func(s llm.ToolSpec) bool { return s.Name == name })
	}
	switch {
	case opts.SchemaName == "ClarifyWithUser":
		return kindClarify
	case opts.SchemaName == "ResearchQuestion":
		return kindBrief
	case opts.SchemaName == "Summary":
		return kindSummarize
	case hasTool(tools.ConductResearchName):
		return kindSupervise
	case len(opts.Tools) > 0:
		return kindResearch
	case opts.Model == testConfig().Compression.Model:
		return kindCompress
	case strings.Contains(messages[0].Content, "<Findings>"):
		return kindReport
	}
	g.t.Fatalf("unclassified model call: %+v", opts)
	return 0
}

func (g *stubGateway) callsOf(kind callKind) []recordedCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []recordedCall
	for _, c := range g.calls {
		if c.kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// testConfig uses provider prefixes outside the token-limit table so that
// report overflow cannot be truncated unless a test opts in.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AllowClarification = false
	cfg.MaxStructuredOutputRetries = 1
	cfg.RetryBackoff = 0
	cfg.Summarization.Model = "test:summarize"
	cfg.Research.Model = "test:research"
	cfg.Compression.Model = "test:compress"
	cfg.FinalReport.Model = "test:final"
	return cfg
}

func text(s string) *llm.Response { return &llm.Response{Text: s} }

func structured(t *testing.T, v any) *llm.Response {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return &llm.Response{Text: string(data)}
}

func toolCalls(calls ...llm.ToolCall) *llm.Response { return &llm.Response{ToolCalls: calls} }

func call(id, name, args string) llm.ToolCall {
	return llm.ToolCall{ID: id, Name: name, Args: json.RawMessage(args)}
}

func conduct(id, topic string) llm.ToolCall {
	return call(id, tools.ConductResearchName, fmt.Sprintf(`{"research_topic":%q}`, topic))
}

func tokenLimitErr() error {
	return &llm.ProviderError{
		Provider:   "openai",
		StatusCode: 400,
		Code:       "context_length_exceeded",
		Message:    "This model's maximum context length is 128000 tokens.",
	}
}

// topicOf returns the human topic that seeds a researcher history.
func topicOf(messages []llm.Message) string {
	for _, m := range messages {
		if m.Role == llm.RoleHuman {
			return m.Content
		}
	}
	return ""
}

// fakeSearchTool stands in for web_search.
type fakeSearchTool struct {
	invoke func(ctx context.Context, args json.RawMessage) (string, error)
}

func (f *fakeSearchTool) Name() string            { return tools.WebSearchName }
func (f *fakeSearchTool) Description() string     { return "search the web" }
func (f *fakeSearchTool) Schema() json.RawMessage { return nil }
func (f *fakeSearchTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	if f.invoke == nil {
		return "results for " + string(args), nil
	}
	return f.invoke(ctx, args)
}

func newTestRegistry(t *testing.T, extra ...tools.Tool) *tools.Registry {
	t.Helper()
	all := append([]tools.Tool{&fakeSearchTool{}, tools.ResearchComplete{}}, extra...)
	reg, err := tools.NewRegistry(all...)
	require.NoError(t, err)
	return reg
}

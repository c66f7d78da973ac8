package orchestrator

import (
	"time"

	"github.com/dusk-indust/deepresearch/internal/llm"
	"github.com/dusk-indust/deepresearch/internal/search"
)

// CapabilityLevel describes which research tools a run has available.
type CapabilityLevel int

const (
	// CapNone has no search or MCP tools; a run cannot gather information.
	CapNone CapabilityLevel = iota

	// CapMCPOnly has MCP-provided tools but no web search.
	CapMCPOnly

	// CapSearch has web search but no MCP tools.
	CapSearch

	// CapFull has web search and MCP tools.
	CapFull
)

func (c CapabilityLevel) String() string {
	switch c {
	case CapNone:
		return "none"
	case CapMCPOnly:
		return "mcp-only"
	case CapSearch:
		return "search"
	case CapFull:
		return "search+mcp"
	default:
		return "unknown"
	}
}

// ModelConfig selects the model for one tier.
type ModelConfig struct {
	// Model is provider-qualified, e.g. "openai:gpt-4.1".
	Model     string
	MaxTokens int
}

// Config holds the caps and model choices for a research run.
type Config struct {
	// AllowClarification enables the clarifying question gate.
	AllowClarification bool

	// MaxStructuredOutputRetries is the attempt budget for every model call.
	MaxStructuredOutputRetries int

	// MaxConcurrentResearchUnits bounds researchers dispatched per
	// supervisor iteration. Further ConductResearch calls are rejected.
	MaxConcurrentResearchUnits int

	// MaxResearcherIterations bounds supervisor reflection cycles.
	MaxResearcherIterations int

	// MaxReactToolCalls bounds tool-calling iterations per researcher.
	MaxReactToolCalls int

	Summarization ModelConfig
	Research      ModelConfig
	Compression   ModelConfig
	FinalReport   ModelConfig

	SearchMaxResults int
	SearchTopic      search.Topic

	// RetryBackoff is the pause before the second attempt of a model call.
	RetryBackoff time.Duration
}

// DefaultConfig returns the default caps and model tiers.
func DefaultConfig() Config {
	return Config{
		AllowClarification:         true,
		MaxStructuredOutputRetries: 3,
		MaxConcurrentResearchUnits: 5,
		MaxResearcherIterations:    3,
		MaxReactToolCalls:          5,
		Summarization:              ModelConfig{Model: "openai:gpt-4.1-nano", MaxTokens: 8192},
		Research:                   ModelConfig{Model: "openai:gpt-4.1", MaxTokens: 10000},
		Compression:                ModelConfig{Model: "openai:gpt-4.1-mini", MaxTokens: 8192},
		FinalReport:                ModelConfig{Model: "openai:gpt-4.1", MaxTokens: 10000},
		SearchMaxResults:           5,
		SearchTopic:                search.TopicGeneral,
		RetryBackoff:               time.Second,
	}
}

// Model returns the model configured for tier.
func (c Config) Model(tier llm.Tier) ModelConfig {
	switch tier {
	case llm.TierSummarization:
		return c.Summarization
	case llm.TierCompression:
		return c.Compression
	case llm.TierFinalReport:
		return c.FinalReport
	default:
		return c.Research
	}
}

// CallOptions returns gateway options for tier with the configured retry
// budget.
func (c Config) CallOptions(tier llm.Tier) llm.Options {
	m := c.Model(tier)
	return llm.Options{
		Model:       m.Model,
		MaxTokens:   m.MaxTokens,
		RetryBudget: c.MaxStructuredOutputRetries,
		Backoff:     c.RetryBackoff,
	}
}

// Package config loads run configuration. Values are layered, lowest first:
// built-in defaults, deepresearch.yml in the config directory, environment
// variables named after the upper-cased key (MAX_REACT_TOOL_CALLS,
// MCP_URL, ...), and per-run overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dusk-indust/deepresearch/internal/orchestrator"
	"github.com/dusk-indust/deepresearch/internal/search"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Search API selections.
const (
	SearchAPITavily = "tavily"
	SearchAPINone   = "none"
)

// FileNames are the config file names looked up in the config directory.
var FileNames = []string{"deepresearch.yml", "deepresearch.yaml"}

// Config holds every setting of a research run.
type Config struct {
	MaxStructuredOutputRetries int  `mapstructure:"max_structured_output_retries" yaml:"max_structured_output_retries"`
	AllowClarification         bool `mapstructure:"allow_clarification" yaml:"allow_clarification"`
	MaxConcurrentResearchUnits int  `mapstructure:"max_concurrent_research_units" yaml:"max_concurrent_research_units"`
	MaxResearcherIterations    int  `mapstructure:"max_researcher_iterations" yaml:"max_researcher_iterations"`
	MaxReactToolCalls          int  `mapstructure:"max_react_tool_calls" yaml:"max_react_tool_calls"`

	SummarizationModel          string `mapstructure:"summarization_model" yaml:"summarization_model"`
	SummarizationModelMaxTokens int    `mapstructure:"summarization_model_max_tokens" yaml:"summarization_model_max_tokens"`
	ResearchModel               string `mapstructure:"research_model" yaml:"research_model"`
	ResearchModelMaxTokens      int    `mapstructure:"research_model_max_tokens" yaml:"research_model_max_tokens"`
	CompressionModel            string `mapstructure:"compression_model" yaml:"compression_model"`
	CompressionModelMaxTokens   int    `mapstructure:"compression_model_max_tokens" yaml:"compression_model_max_tokens"`
	FinalReportModel            string `mapstructure:"final_report_model" yaml:"final_report_model"`
	FinalReportModelMaxTokens   int    `mapstructure:"final_report_model_max_tokens" yaml:"final_report_model_max_tokens"`

	SearchAPI        string `mapstructure:"search_api" yaml:"search_api"`
	SearchMaxResults int    `mapstructure:"search_max_results" yaml:"search_max_results"`
	SearchTopic      string `mapstructure:"search_topic" yaml:"search_topic"`
	TavilyAPIKey     string `mapstructure:"tavily_api_key" yaml:"tavily_api_key"`

	MCP MCPConfig `mapstructure:"mcp" yaml:"mcp"`
	LLM LLMConfig `mapstructure:"llm" yaml:"llm"`

	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// MCPConfig selects tools from an MCP server.
type MCPConfig struct {
	// URL is the server base URL; "/mcp" is appended when connecting.
	URL string `mapstructure:"url" yaml:"url"`
	// Tools is the allow-list of tool names to load.
	Tools []string `mapstructure:"tools" yaml:"tools"`
	// AuthRequired marks servers needing credentials this program cannot
	// supply; their tools are not loaded.
	AuthRequired bool `mapstructure:"auth_required" yaml:"auth_required"`
}

// LLMConfig configures the OpenAI-compatible model endpoints. BaseURL and
// APIKey form the default endpoint; Providers gives models with a matching
// provider prefix ("anthropic:claude-sonnet-4") their own endpoint.
type LLMConfig struct {
	BaseURL        string                    `mapstructure:"base_url" yaml:"base_url"`
	APIKey         string                    `mapstructure:"api_key" yaml:"api_key"`
	TimeoutSeconds int                       `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	RetryBackoffMs int                       `mapstructure:"retry_backoff_ms" yaml:"retry_backoff_ms"`
	Providers      map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
}

// ProviderConfig is the endpoint for one model provider. A provider without
// an API key is not routed; its models use the default endpoint.
type ProviderConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	APIKey  string `mapstructure:"api_key" yaml:"api_key"`
}

// providerDefaults are the OpenAI-compatible endpoints of the built-in
// providers and the environment variables holding their keys.
var providerDefaults = map[string]struct {
	baseURL string
	envKeys []string
}{
	"openai":    {"https://api.openai.com/v1", []string{"OPENAI_API_KEY"}},
	"anthropic": {"https://api.anthropic.com/v1", []string{"ANTHROPIC_API_KEY"}},
	"google":    {"https://generativelanguage.googleapis.com/v1beta/openai", []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}},
}

// Default returns the built-in configuration.
func Default() *Config {
	wf := orchestrator.DefaultConfig()
	return &Config{
		MaxStructuredOutputRetries:  wf.MaxStructuredOutputRetries,
		AllowClarification:          wf.AllowClarification,
		MaxConcurrentResearchUnits:  wf.MaxConcurrentResearchUnits,
		MaxResearcherIterations:     wf.MaxResearcherIterations,
		MaxReactToolCalls:           wf.MaxReactToolCalls,
		SummarizationModel:          wf.Summarization.Model,
		SummarizationModelMaxTokens: wf.Summarization.MaxTokens,
		ResearchModel:               wf.Research.Model,
		ResearchModelMaxTokens:      wf.Research.MaxTokens,
		CompressionModel:            wf.Compression.Model,
		CompressionModelMaxTokens:   wf.Compression.MaxTokens,
		FinalReportModel:            wf.FinalReport.Model,
		FinalReportModelMaxTokens:   wf.FinalReport.MaxTokens,
		SearchAPI:                   SearchAPITavily,
		SearchMaxResults:            wf.SearchMaxResults,
		SearchTopic:                 string(wf.SearchTopic),
		MCP: MCPConfig{
			Tools: []string{},
		},
		LLM: LLMConfig{
			BaseURL:        providerDefaults["openai"].baseURL,
			TimeoutSeconds: 300,
			RetryBackoffMs: int(wf.RetryBackoff / time.Millisecond),
			Providers:      defaultProviders(),
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

func defaultProviders() map[string]ProviderConfig {
	out := make(map[string]ProviderConfig, len(providerDefaults))
	for name, p := range providerDefaults {
		out[name] = ProviderConfig{BaseURL: p.baseURL}
	}
	return out
}

// setDefaults registers every key so that environment variables and
// overrides are honoured by Unmarshal.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("max_structured_output_retries", d.MaxStructuredOutputRetries)
	v.SetDefault("allow_clarification", d.AllowClarification)
	v.SetDefault("max_concurrent_research_units", d.MaxConcurrentResearchUnits)
	v.SetDefault("max_researcher_iterations", d.MaxResearcherIterations)
	v.SetDefault("max_react_tool_calls", d.MaxReactToolCalls)

	v.SetDefault("summarization_model", d.SummarizationModel)
	v.SetDefault("summarization_model_max_tokens", d.SummarizationModelMaxTokens)
	v.SetDefault("research_model", d.ResearchModel)
	v.SetDefault("research_model_max_tokens", d.ResearchModelMaxTokens)
	v.SetDefault("compression_model", d.CompressionModel)
	v.SetDefault("compression_model_max_tokens", d.CompressionModelMaxTokens)
	v.SetDefault("final_report_model", d.FinalReportModel)
	v.SetDefault("final_report_model_max_tokens", d.FinalReportModelMaxTokens)

	v.SetDefault("search_api", d.SearchAPI)
	v.SetDefault("search_max_results", d.SearchMaxResults)
	v.SetDefault("search_topic", d.SearchTopic)
	v.SetDefault("tavily_api_key", d.TavilyAPIKey)

	v.SetDefault("mcp.url", d.MCP.URL)
	v.SetDefault("mcp.tools", d.MCP.Tools)
	v.SetDefault("mcp.auth_required", d.MCP.AuthRequired)

	v.SetDefault("llm.base_url", d.LLM.BaseURL)
	v.SetDefault("llm.api_key", d.LLM.APIKey)
	v.SetDefault("llm.timeout_seconds", d.LLM.TimeoutSeconds)
	v.SetDefault("llm.retry_backoff_ms", d.LLM.RetryBackoffMs)
	for name, p := range d.LLM.Providers {
		v.SetDefault("llm.providers."+name+".base_url", p.BaseURL)
		v.SetDefault("llm.providers."+name+".api_key", p.APIKey)
	}

	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}

// Load builds the configuration for dir. A missing config file is not an
// error. overrides are keyed like the YAML file, with "." separating nested
// keys (e.g. "mcp.url").
func Load(dir string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("llm.api_key", "LLM_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}
	for name, p := range providerDefaults {
		if err := v.BindEnv(append([]string{"llm.providers." + name + ".api_key"}, p.envKeys...)...); err != nil {
			return nil, err
		}
	}

	if dir != "" {
		if err := readFile(v, dir); err != nil {
			return nil, err
		}
	}

	for k, val := range overrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

func readFile(v *viper.Viper, dir string) error {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: %w", err)
		}
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
		return nil
	}
	return nil
}

// Workflow converts c into the orchestrator's run configuration.
func (c *Config) Workflow() orchestrator.Config {
	return orchestrator.Config{
		AllowClarification:         c.AllowClarification,
		MaxStructuredOutputRetries: c.MaxStructuredOutputRetries,
		MaxConcurrentResearchUnits: c.MaxConcurrentResearchUnits,
		MaxResearcherIterations:    c.MaxResearcherIterations,
		MaxReactToolCalls:          c.MaxReactToolCalls,
		Summarization:              orchestrator.ModelConfig{Model: c.SummarizationModel, MaxTokens: c.SummarizationModelMaxTokens},
		Research:                   orchestrator.ModelConfig{Model: c.ResearchModel, MaxTokens: c.ResearchModelMaxTokens},
		Compression:                orchestrator.ModelConfig{Model: c.CompressionModel, MaxTokens: c.CompressionModelMaxTokens},
		FinalReport:                orchestrator.ModelConfig{Model: c.FinalReportModel, MaxTokens: c.FinalReportModelMaxTokens},
		SearchMaxResults:           c.SearchMaxResults,
		SearchTopic:                search.Topic(c.SearchTopic),
		RetryBackoff:               time.Duration(c.LLM.RetryBackoffMs) * time.Millisecond,
	}
}

// Models returns the model of every tier.
func (c *Config) Models() []string {
	return []string{c.SummarizationModel, c.ResearchModel, c.CompressionModel, c.FinalReportModel}
}

// LLMTimeout returns the per-request model timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

// MCPEnabled reports whether MCP tools should be loaded.
func (c *Config) MCPEnabled() bool {
	return c.MCP.URL != "" && len(c.MCP.Tools) > 0 && !c.MCP.AuthRequired
}

const redacted = "<redacted>"

// Dump writes c as YAML with secrets redacted.
func Dump(w io.Writer, c *Config) error {
	cp := *c
	if cp.TavilyAPIKey != "" {
		cp.TavilyAPIKey = redacted
	}
	if cp.LLM.APIKey != "" {
		cp.LLM.APIKey = redacted
	}
	if cp.LLM.Providers != nil {
		providers := make(map[string]ProviderConfig, len(cp.LLM.Providers))
		for name, p := range cp.LLM.Providers {
			if p.APIKey != "" {
				p.APIKey = redacted
			}
			providers[name] = p
		}
		cp.LLM.Providers = providers
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&cp); err != nil {
		return fmt.Errorf("config: encode: %w", err)
	}
	return enc.Close()
}

package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDefaultIsValid(t *testing.T) {
	assert.Empty(t, Default().Validate())
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir(), nil)
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.MaxReactToolCalls, cfg.MaxReactToolCalls)
	assert.Equal(t, d.ResearchModel, cfg.ResearchModel)
	assert.Equal(t, "tavily", cfg.SearchAPI)
	assert.Equal(t, "general", cfg.SearchTopic)
}

func TestLoad_Layering(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deepresearch.yml", `
max_react_tool_calls: 8
max_concurrent_research_units: 4
research_model: openai:gpt-4o
mcp:
  url: http://localhost:8000
  tools: [read_file, list_files]
`)
	t.Setenv("MAX_CONCURRENT_RESEARCH_UNITS", "6")
	t.Setenv("TAVILY_API_KEY", "tvly-test")

	cfg, err := Load(dir, map[string]any{"max_react_tool_calls": 2})
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.MaxReactToolCalls, "override beats file")
	assert.Equal(t, 6, cfg.MaxConcurrentResearchUnits, "env beats file")
	assert.Equal(t, "openai:gpt-4o", cfg.ResearchModel)
	assert.Equal(t, "tvly-test", cfg.TavilyAPIKey)
	assert.Equal(t, "http://localhost:8000", cfg.MCP.URL)
	assert.Equal(t, []string{"read_file", "list_files"}, cfg.MCP.Tools)
	assert.True(t, cfg.MCPEnabled())
}

func TestLoad_YAMLExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deepresearch.yaml", "search_topic: news\n")

	cfg, err := Load(dir, nil)
	require.NoError(t, err)
	assert.Equal(t, "news", cfg.SearchTopic)
}

func TestLoad_APIKeyFallbackEnv(t *testing.T) {
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "sk-fallback")

	cfg, err := Load(t.TempDir(), nil)
	require.NoError(t, err)
	assert.Equal(t, "sk-fallback", cfg.LLM.APIKey)
	assert.Equal(t, "sk-fallback", cfg.LLM.Providers["openai"].APIKey)
}

func TestLoad_ProviderEndpoints(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "gm-key")

	dir := t.TempDir()
	writeFile(t, dir, "deepresearch.yml", `
research_model: anthropic:claude-sonnet-4
llm:
  providers:
    ollama:
      base_url: http://localhost:11434/v1
      api_key: ollama
`)

	cfg, err := Load(dir, nil)
	require.NoError(t, err)

	p := cfg.LLM.Providers
	assert.Equal(t, ProviderConfig{BaseURL: "https://api.anthropic.com/v1", APIKey: "sk-ant"}, p["anthropic"])
	assert.Equal(t, "gm-key", p["google"].APIKey)
	assert.Equal(t, "https://api.openai.com/v1", p["openai"].BaseURL)
	assert.Equal(t, ProviderConfig{BaseURL: "http://localhost:11434/v1", APIKey: "ollama"}, p["ollama"])
	assert.Contains(t, cfg.Models(), "anthropic:claude-sonnet-4")
}

func TestValidate_ProviderWithoutBaseURL(t *testing.T) {
	cfg := Default()
	cfg.LLM.Providers["mistral"] = ProviderConfig{APIKey: "k"}

	errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Equal(t, "llm.providers.mistral.base_url", errs[0].Field)
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deepresearch.yml", `
max_react_tool_calls: 0
search_topic: sports
log_level: loud
`)

	_, err := Load(dir, nil)
	require.Error(t, err)

	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	require.Len(t, verrs, 3)
	assert.Equal(t, "log_level", verrs[0].Field)
	assert.Equal(t, "max_react_tool_calls", verrs[1].Field)
	assert.Equal(t, "search_topic", verrs[2].Field)
	assert.Contains(t, err.Error(), "3 validation errors")
}

func TestLoad_MalformedFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "deepresearch.yml", "max_react_tool_calls: [unclosed\n")

	_, err := Load(dir, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deepresearch.yml")
}

func TestValidate_Models(t *testing.T) {
	cfg := Default()
	cfg.CompressionModel = " "
	cfg.FinalReportModelMaxTokens = 0

	errs := cfg.Validate()
	require.Len(t, errs, 2)
	assert.Equal(t, "compression_model", errs[0].Field)
	assert.Equal(t, "final_report_model_max_tokens", errs[1].Field)
}

func TestValidationError_Format(t *testing.T) {
	e := ValidationError{Field: "search_api", Value: "bing", Message: "must be one of tavily, none"}
	assert.Equal(t, "search_api: must be one of tavily, none (got: bing)", e.Error())
	assert.Equal(t, e.Error(), ValidationErrors{e}.Error())
}

func TestWorkflow(t *testing.T) {
	cfg := Default()
	cfg.MaxResearcherIterations = 2
	cfg.CompressionModel = "openai:gpt-4o-mini"
	cfg.LLM.RetryBackoffMs = 250

	wf := cfg.Workflow()
	assert.Equal(t, 2, wf.MaxResearcherIterations)
	assert.Equal(t, "openai:gpt-4o-mini", wf.Compression.Model)
	assert.Equal(t, cfg.CompressionModelMaxTokens, wf.Compression.MaxTokens)
	assert.Equal(t, 250*time.Millisecond, wf.RetryBackoff)
	assert.EqualValues(t, "general", wf.SearchTopic)
}

func TestMCPEnabled(t *testing.T) {
	cfg := Default()
	assert.False(t, cfg.MCPEnabled())

	cfg.MCP.URL = "http://localhost:8000"
	cfg.MCP.Tools = []string{"read_file"}
	assert.True(t, cfg.MCPEnabled())

	cfg.MCP.AuthRequired = true
	assert.False(t, cfg.MCPEnabled())
}

func TestDump_RedactsSecrets(t *testing.T) {
	cfg := Default()
	cfg.TavilyAPIKey = "tvly-secret"
	cfg.LLM.APIKey = "sk-secret"
	cfg.LLM.Providers["anthropic"] = ProviderConfig{BaseURL: "https://api.anthropic.com/v1", APIKey: "sk-ant-secret"}

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, cfg))

	out := buf.String()
	assert.NotContains(t, out, "secret")
	assert.Contains(t, out, "tavily_api_key: <redacted>")
	assert.Contains(t, out, "max_react_tool_calls: 5")
	assert.Contains(t, out, "anthropic:")
	assert.Equal(t, "tvly-secret", cfg.TavilyAPIKey, "Dump must not modify its argument")
	assert.Equal(t, "sk-ant-secret", cfg.LLM.Providers["anthropic"].APIKey)
}

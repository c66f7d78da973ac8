package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/dusk-indust/deepresearch/internal/search"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string // config key, e.g. "max_react_tool_calls"
	Value   any
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d validation errors:\n", len(e))
	for i, err := range e {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidLogLevels returns the accepted log levels.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks c and returns every problem found.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	checkRange := func(field string, v, lo, hi int) {
		if v < lo || v > hi {
			errs = append(errs, ValidationError{field, v, fmt.Sprintf("must be between %d and %d", lo, hi)})
		}
	}
	checkRange("max_structured_output_retries", c.MaxStructuredOutputRetries, 1, 10)
	checkRange("max_concurrent_research_units", c.MaxConcurrentResearchUnits, 1, 20)
	checkRange("max_researcher_iterations", c.MaxResearcherIterations, 1, 10)
	checkRange("max_react_tool_calls", c.MaxReactToolCalls, 1, 30)
	checkRange("search_max_results", c.SearchMaxResults, 1, 20)

	for field, m := range map[string]struct {
		model  string
		tokens int
	}{
		"summarization_model": {c.SummarizationModel, c.SummarizationModelMaxTokens},
		"research_model":      {c.ResearchModel, c.ResearchModelMaxTokens},
		"compression_model":   {c.CompressionModel, c.CompressionModelMaxTokens},
		"final_report_model":  {c.FinalReportModel, c.FinalReportModelMaxTokens},
	} {
		if strings.TrimSpace(m.model) == "" {
			errs = append(errs, ValidationError{field, m.model, "must not be empty"})
		}
		if m.tokens <= 0 {
			errs = append(errs, ValidationError{field + "_max_tokens", m.tokens, "must be positive"})
		}
	}

	if !slices.Contains([]string{SearchAPITavily, SearchAPINone}, c.SearchAPI) {
		errs = append(errs, ValidationError{"search_api", c.SearchAPI, "must be one of tavily, none"})
	}
	topics := []string{string(search.TopicGeneral), string(search.TopicNews), string(search.TopicFinance)}
	if !slices.Contains(topics, c.SearchTopic) {
		errs = append(errs, ValidationError{"search_topic", c.SearchTopic, "must be one of " + strings.Join(topics, ", ")})
	}
	if c.LLM.TimeoutSeconds <= 0 {
		errs = append(errs, ValidationError{"llm.timeout_seconds", c.LLM.TimeoutSeconds, "must be positive"})
	}
	for name, p := range c.LLM.Providers {
		if p.APIKey != "" && strings.TrimSpace(p.BaseURL) == "" {
			errs = append(errs, ValidationError{"llm.providers." + name + ".base_url", p.BaseURL, "must not be empty when api_key is set"})
		}
	}
	if c.LLM.RetryBackoffMs < 0 {
		errs = append(errs, ValidationError{"llm.retry_backoff_ms", c.LLM.RetryBackoffMs, "must not be negative"})
	}
	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.LogLevel)) {
		errs = append(errs, ValidationError{"log_level", c.LogLevel, "must be one of " + strings.Join(ValidLogLevels(), ", ")})
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, ValidationError{"log_format", c.LogFormat, "must be text or json"})
	}

	slices.SortFunc(errs, func(a, b ValidationError) int { return strings.Compare(a.Field, b.Field) })
	return errs
}

package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Category classifies a provider failure for recovery decisions.
type Category string

const (
	CategoryTokenLimit Category = "token-limit-exceeded"
	CategoryRateLimit  Category = "rate-limited"
	CategoryOther      Category = "other"
)

// ProviderError is a failure reported by a model provider.
type ProviderError struct {
	Provider   string // "openai", "anthropic", "google", ...
	Model      string
	StatusCode int
	Code       string // provider error code, e.g. "context_length_exceeded"
	Type       string // provider error type, e.g. "invalid_request_error"
	Message    string
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "llm: %s", e.Provider)
	if e.Model != "" {
		fmt.Fprintf(&b, " (%s)", e.Model)
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if e.Code != "" {
		fmt.Fprintf(&b, ": %s", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

// Category returns the classification of e.
func (e *ProviderError) Category() Category {
	return Classify(e, e.Model)
}

// ProviderOf returns the provider prefix of a model identifier such as
// "anthropic:claude-sonnet-4", or "" when the identifier has none.
func ProviderOf(model string) string {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "openai:"):
		return "openai"
	case strings.HasPrefix(m, "anthropic:"):
		return "anthropic"
	case strings.HasPrefix(m, "gemini:"), strings.HasPrefix(m, "google:"):
		return "google"
	}
	if i := strings.Index(m, ":"); i > 0 {
		return m[:i]
	}
	return ""
}

// Classify returns the recovery category of err for the given model.
func Classify(err error, model string) Category {
	if err == nil {
		return CategoryOther
	}
	if IsTokenLimitExceeded(err, model) {
		return CategoryTokenLimit
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.StatusCode == http.StatusTooManyRequests {
		return CategoryRateLimit
	}
	return CategoryOther
}

// IsTokenLimitExceeded reports whether err means the prompt overflowed the
// model's context window. The model's provider prefix selects the heuristic;
// without one every heuristic is tried.
func IsTokenLimitExceeded(err error, model string) bool {
	if err == nil {
		return false
	}
	var pe *ProviderError
	if !errors.As(err, &pe) {
		pe = &ProviderError{Message: err.Error()}
	}

	provider := ProviderOf(model)
	if provider == "" {
		provider = pe.Provider
	}
	switch provider {
	case "openai":
		return openAITokenLimit(pe)
	case "anthropic":
		return anthropicTokenLimit(pe)
	case "google":
		return googleTokenLimit(pe)
	default:
		return openAITokenLimit(pe) || anthropicTokenLimit(pe) || googleTokenLimit(pe)
	}
}

var openAITokenKeywords = []string{"token", "context", "length", "maximum context", "reduce"}

func openAITokenLimit(pe *ProviderError) bool {
	if pe.Code == "context_length_exceeded" {
		return true
	}
	msg := strings.ToLower(pe.Message)
	if pe.StatusCode == http.StatusBadRequest || pe.Type == "invalid_request_error" {
		for _, kw := range openAITokenKeywords {
			if strings.Contains(msg, kw) {
				return true
			}
		}
	}
	return strings.Contains(msg, "context_length_exceeded")
}

func anthropicTokenLimit(pe *ProviderError) bool {
	return strings.Contains(strings.ToLower(pe.Message), "prompt is too long")
}

func googleTokenLimit(pe *ProviderError) bool {
	msg := strings.ToLower(pe.Message)
	if strings.Contains(msg, "resource_exhausted") || strings.Contains(msg, "resourceexhausted") {
		return true
	}
	return pe.Provider == "google" && pe.StatusCode == http.StatusTooManyRequests
}

package llm

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tier names one of the independently configurable model roles.
type Tier string

const (
	TierSummarization Tier = "summarization"
	TierResearch      Tier = "research"
	TierCompression   Tier = "compression"
	TierFinalReport   Tier = "final-report"
)

// ToolSpec describes a callable tool to bind to a model invocation.
type ToolSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// Options controls a single gateway invocation.
type Options struct {
	// Model is the provider-qualified model identifier, e.g. "openai:gpt-4.1".
	Model     string
	MaxTokens int

	// Tools are bound to the call; the model may answer with tool calls.
	Tools []ToolSpec

	// Schema requests structured output. SchemaName labels it for providers
	// that require a name.
	Schema     *jsonschema.Schema
	SchemaName string

	// RetryBudget is the number of attempts Call makes. Values below 1 mean 1.
	RetryBudget int

	// Backoff is the pause before the second attempt; it doubles for each
	// further attempt. Zero disables backoff.
	Backoff time.Duration
}

// Response is a model reply: free text plus any requested tool calls.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// Message converts the response into an AI message for a history.
func (r *Response) Message() Message {
	return AI(r.Text, r.ToolCalls...)
}

// Gateway is the model capability boundary. Implementations perform exactly
// one attempt per Invoke; failures surface as *ProviderError where the
// provider reported one.
type Gateway interface {
	Invoke(ctx context.Context, messages []Message, opts Options) (*Response, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, messages []Message, opts Options) (*Response, error)

// Invoke calls f.
func (f GatewayFunc) Invoke(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	return f(ctx, messages, opts)
}

// Call invokes g up to opts.RetryBudget times. Token-limit failures and
// context cancellation are returned immediately since repeating the same
// prompt cannot succeed.
func Call(ctx context.Context, g Gateway, messages []Message, opts Options) (*Response, error) {
	var resp *Response
	err := retry(ctx, opts, func() error {
		var err error
		resp, err = g.Invoke(ctx, messages, opts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func retry(ctx context.Context, opts Options, fn func() error) error {
	attempts := opts.RetryBudget
	if attempts < 1 {
		attempts = 1
	}
	delay := opts.Backoff

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		err = fn()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || IsTokenLimitExceeded(err, opts.Model) {
			return err
		}
	}
	return err
}

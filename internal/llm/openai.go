package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Compile-time interface check.
var _ Gateway = (*HTTPClient)(nil)

// DefaultBaseURL is the OpenAI API root used when none is configured.
const DefaultBaseURL = "https://api.openai.com/v1"

// HTTPClient is a Gateway speaking the OpenAI-compatible chat completions
// protocol. Any provider exposing that protocol can sit behind it; the
// provider prefix of the model identifier is stripped before sending.
type HTTPClient struct {
	http    *http.Client
	baseURL string
	apiKey  string
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.http = hc
	}
}

// WithBaseURL sets the API root, e.g. "http://localhost:1234/v1".
func WithBaseURL(u string) ClientOption {
	return func(c *HTTPClient) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// NewHTTPClient creates a chat completions client authenticating with apiKey.
func NewHTTPClient(apiKey string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		http: &http.Client{
			Timeout: 120 * time.Second,
		},
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
	Name       string         `json:"name,omitempty"`
}

type chatToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type chatTool struct {
	Type     string   `json:"type"`
	Function ToolSpec `json:"function"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	MaxTokens      int           `json:"max_tokens,omitempty"`
	Tools          []chatTool    `json:"tools,omitempty"`
	ResponseFormat any           `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    any    `json:"code"`
	} `json:"error"`
}

// Invoke performs one chat completion.
func (c *HTTPClient) Invoke(ctx context.Context, messages []Message, opts Options) (*Response, error) {
	if len(messages) == 0 {
		return nil, fmt.Errorf("llm: invoke requires at least one message")
	}

	req, err := buildChatRequest(messages, opts)
	if err != nil {
		return nil, err
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("llm: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("llm: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, providerError(opts.Model, resp.StatusCode, body)
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, &ProviderError{
			Provider:   providerName(opts.Model),
			Model:      opts.Model,
			StatusCode: resp.StatusCode,
			Message:    "response missing choices",
		}
	}

	msg := decoded.Choices[0].Message
	out := &Response{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		args := json.RawMessage(tc.Function.Arguments)
		if len(strings.TrimSpace(tc.Function.Arguments)) == 0 {
			args = json.RawMessage("{}")
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{ID: id, Name: tc.Function.Name, Args: args})
	}
	return out, nil
}

func buildChatRequest(messages []Message, opts Options) (chatRequest, error) {
	req := chatRequest{
		Model:     wireModel(opts.Model),
		MaxTokens: opts.MaxTokens,
	}
	for _, m := range messages {
		cm := chatMessage{Content: m.Content, ToolCallID: m.ToolCallID}
		switch m.Role {
		case RoleHuman:
			cm.Role = "user"
		case RoleSystem:
			cm.Role = "system"
		case RoleAI:
			cm.Role = "assistant"
			for _, tc := range m.ToolCalls {
				var wire chatToolCall
				wire.ID = tc.ID
				wire.Type = "function"
				wire.Function.Name = tc.Name
				wire.Function.Arguments = string(tc.Args)
				if wire.Function.Arguments == "" {
					wire.Function.Arguments = "{}"
				}
				cm.ToolCalls = append(cm.ToolCalls, wire)
			}
		case RoleTool:
			cm.Role = "tool"
		default:
			return chatRequest{}, fmt.Errorf("llm: unsupported message role %q", m.Role)
		}
		req.Messages = append(req.Messages, cm)
	}
	for _, t := range opts.Tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		req.Tools = append(req.Tools, chatTool{
			Type:     "function",
			Function: ToolSpec{Name: t.Name, Description: t.Description, Parameters: params},
		})
	}
	if opts.Schema != nil {
		name := opts.SchemaName
		if name == "" {
			name = "output"
		}
		req.ResponseFormat = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   name,
				"schema": opts.Schema,
			},
		}
	}
	return req, nil
}

// providerError decodes an OpenAI-style error body. Bodies in other shapes
// are kept verbatim as the message.
func providerError(model string, status int, body []byte) *ProviderError {
	pe := &ProviderError{
		Provider:   providerName(model),
		Model:      model,
		StatusCode: status,
	}
	var ce chatError
	if err := json.Unmarshal(body, &ce); err == nil && ce.Error.Message != "" {
		pe.Message = ce.Error.Message
		pe.Type = ce.Error.Type
		if ce.Error.Code != nil {
			pe.Code = fmt.Sprint(ce.Error.Code)
		}
		return pe
	}
	pe.Message = strings.TrimSpace(string(body))
	return pe
}

func providerName(model string) string {
	if p := ProviderOf(model); p != "" {
		return p
	}
	return "openai"
}

func wireModel(model string) string {
	if i := strings.Index(model, ":"); i > 0 && ProviderOf(model) != "" {
		return model[i+1:]
	}
	return model
}

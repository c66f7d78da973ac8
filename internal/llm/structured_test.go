package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type verdict struct {
	NeedClarification bool   `json:"need_clarification"`
	Question          string `json:"question"`
}

func TestInvokeStructured_RetriesInvalidOutput(t *testing.T) {
	var calls atomic.Int32
	g := GatewayFunc(func(ctx context.Context, msgs []Message, opts Options) (*Response, error) {
		require.NotNil(t, opts.Schema)
		switch calls.Add(1) {
		case 1:
			return &Response{Text: "not json"}, nil
		case 2:
			return &Response{Text: `{"question":"missing the bool"}`}, nil
		default:
			return &Response{Text: "```json\n{\"need_clarification\":true,\"question\":\"Which B?\"}\n```"}, nil
		}
	})

	out, err := InvokeStructured[verdict](context.Background(), g, []Message{Human("q")}, Options{RetryBudget: 3})
	require.NoError(t, err)
	assert.True(t, out.NeedClarification)
	assert.Equal(t, "Which B?", out.Question)
	assert.Equal(t, int32(3), calls.Load())
}

func TestInvokeStructured_BudgetExhausted(t *testing.T) {
	g := GatewayFunc(func(ctx context.Context, msgs []Message, opts Options) (*Response, error) {
		return &Response{Text: "{}"}, nil
	})

	_, err := InvokeStructured[verdict](context.Background(), g, []Message{Human("q")}, Options{RetryBudget: 2})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaValidation)
}

func TestCall_StopsOnTokenLimit(t *testing.T) {
	var calls atomic.Int32
	g := GatewayFunc(func(ctx context.Context, msgs []Message, opts Options) (*Response, error) {
		calls.Add(1)
		return nil, &ProviderError{Provider: "openai", Code: "context_length_exceeded"}
	})

	_, err := Call(context.Background(), g, []Message{Human("q")}, Options{Model: "openai:gpt-4.1", RetryBudget: 5})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCall_RetriesOtherFailures(t *testing.T) {
	var calls atomic.Int32
	g := GatewayFunc(func(ctx context.Context, msgs []Message, opts Options) (*Response, error) {
		if calls.Add(1) < 3 {
			return nil, errors.New("temporary")
		}
		return &Response{Text: "ok"}, nil
	})

	resp, err := Call(context.Background(), g, []Message{Human("q")}, Options{RetryBudget: 3, Backoff: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, int32(3), calls.Load())
}

func TestCall_ContextCanceledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := GatewayFunc(func(ctx context.Context, msgs []Message, opts Options) (*Response, error) {
		cancel()
		return nil, errors.New("fail")
	})

	_, err := Call(ctx, g, []Message{Human("q")}, Options{RetryBudget: 3, Backoff: time.Hour})
	require.Error(t, err)
}

func TestSchemaJSON(t *testing.T) {
	raw := SchemaJSON[verdict]()
	assert.Contains(t, string(raw), `"need_clarification"`)
	assert.Contains(t, string(raw), `"required"`)
}

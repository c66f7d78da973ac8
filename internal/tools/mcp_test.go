package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/dusk-indust/deepresearch/internal/llm"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupInput struct {
	Term string `json:"term" jsonschema:"term to look up"`
}

type lookupOutput struct {
	Definition string `json:"definition"`
}

// connectTestServer serves three tools over in-memory transports and returns
// the client session.
func connectTestServer(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()

	server := mcp.NewServer(&mcp.Implementation{Name: "glossary", Version: "1.0.0"}, nil)
	mcp.AddTool(server, &mcp.Tool{Name: "lookup", Description: "Look up a term"},
		func(_ context.Context, _ *mcp.CallToolRequest, in lookupInput) (*mcp.CallToolResult, lookupOutput, error) {
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: "definition of " + in.Term}},
			}, lookupOutput{Definition: "definition of " + in.Term}, nil
		})
	mcp.AddTool(server, &mcp.Tool{Name: "broken", Description: "Always fails"},
		func(context.Context, *mcp.CallToolRequest, lookupInput) (*mcp.CallToolResult, lookupOutput, error) {
			return &mcp.CallToolResult{
				IsError: true,
				Content: []mcp.Content{&mcp.TextContent{Text: "index unavailable"}},
			}, lookupOutput{}, nil
		})
	mcp.AddTool(server, &mcp.Tool{Name: WebSearchName, Description: "Conflicting name"},
		func(context.Context, *mcp.CallToolRequest, lookupInput) (*mcp.CallToolResult, lookupOutput, error) {
			return nil, lookupOutput{}, nil
		})

	st, ct := mcp.NewInMemoryTransports()
	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func TestLoadMCPTools(t *testing.T) {
	session := connectTestServer(t)
	ctx := context.Background()

	reg, err := NewRegistry(NewWebSearch(&fakeSearcher{}))
	require.NoError(t, err)

	loaded, err := LoadMCPTools(ctx, session, []string{"lookup", "broken", WebSearchName}, reg, nil)
	require.NoError(t, err)

	names := make([]string, len(loaded))
	for i, tl := range loaded {
		names[i] = tl.Name()
	}
	assert.ElementsMatch(t, []string{"lookup", "broken"}, names, "conflicting names are skipped")
	assert.Equal(t, 3, reg.Len())

	out := reg.RunSafely(ctx, llm.ToolCall{Name: "lookup", Args: json.RawMessage(`{"term":"fan-out"}`)})
	assert.Equal(t, "definition of fan-out", out)

	out = reg.RunSafely(ctx, llm.ToolCall{Name: "broken", Args: json.RawMessage(`{"term":"x"}`)})
	assert.Equal(t, ErrorPrefix+"index unavailable", out)
}

func TestLoadMCPTools_AllowList(t *testing.T) {
	session := connectTestServer(t)
	reg, err := NewRegistry()
	require.NoError(t, err)

	loaded, err := LoadMCPTools(context.Background(), session, nil, reg, nil)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	loaded, err = LoadMCPTools(context.Background(), session, []string{"lookup"}, reg, nil)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "lookup", loaded[0].Name())
	assert.NotEmpty(t, loaded[0].Schema())
}

func TestMCPTool_InteractionRequired(t *testing.T) {
	ctx := context.Background()
	server := mcp.NewServer(&mcp.Implementation{Name: "drive", Version: "1.0.0"}, nil)
	mcp.AddTool(server, &mcp.Tool{Name: "files", Description: "Search files"},
		func(context.Context, *mcp.CallToolRequest, lookupInput) (*mcp.CallToolResult, lookupOutput, error) {
			return nil, lookupOutput{}, &jsonrpc.Error{
				Code:    CodeInteractionRequired,
				Message: "interaction required",
				Data:    json.RawMessage(`{"message":{"text":"Sign in to Drive"},"url":"https://auth.example.com/login"}`),
			}
		})

	st, ct := mcp.NewInMemoryTransports()
	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)
	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })

	reg, err := NewRegistry()
	require.NoError(t, err)
	_, err = LoadMCPTools(ctx, session, []string{"files"}, reg, nil)
	require.NoError(t, err)

	out := reg.RunSafely(ctx, llm.ToolCall{Name: "files", Args: json.RawMessage(`{"term":"q3"}`)})
	assert.Equal(t, ErrorPrefix+"mcp files: Sign in to Drive https://auth.example.com/login", out)
}

func TestInteractionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "url only",
			err:  &jsonrpc.Error{Code: CodeInteractionRequired, Data: json.RawMessage(`{"url":"https://x.test/auth"}`)},
			want: "Required interaction https://x.test/auth",
		},
		{
			name: "no data",
			err:  &jsonrpc.Error{Code: CodeInteractionRequired, Message: "interaction required"},
			want: "Required interaction",
		},
		{
			name: "malformed data",
			err:  &jsonrpc.Error{Code: CodeInteractionRequired, Data: json.RawMessage(`"oops"`)},
			want: "Required interaction",
		},
		{
			name: "other code untouched",
			err:  &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: "boom"},
			want: "boom",
		},
		{
			name: "plain error untouched",
			err:  errors.New("connection reset"),
			want: "connection reset",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, interactionError(tt.err), tt.want)
		})
	}
}

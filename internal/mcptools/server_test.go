package mcptools

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupServerClient wires an MCP server and client together using in-memory
// transports.
func setupServerClient(t *testing.T, factory Factory) *mcp.ClientSession {
	t.Helper()

	server := NewResearchMCPServer(NewResearchService(factory, nil))
	st, ct := mcp.NewInMemoryTransports()

	ctx := t.Context()
	_, err := server.Connect(ctx, st, nil)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}, nil)

	session, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		session.Close()
	})
	return session
}

func decodeOutput[T any](t *testing.T, res *mcp.CallToolResult) T {
	t.Helper()
	require.NotNil(t, res.StructuredContent, "expected structured content")

	raw, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)

	var out T
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestMCPListTools(t *testing.T) {
	session := setupServerClient(t, factoryFor(newMockOrchestrator(), nil))

	result, err := session.ListTools(t.Context(), &mcp.ListToolsParams{})
	require.NoError(t, err)

	names := make([]string, len(result.Tools))
	for i, tool := range result.Tools {
		names[i] = tool.Name
	}
	sort.Strings(names)
	assert.Equal(t, []string{"list_pending", "resume_research", "run_research"}, names)
}

func TestMCPRunResearch(t *testing.T) {
	mock := newMockOrchestrator()
	mock.runState = completedState()
	session := setupServerClient(t, factoryFor(mock, nil))

	res, err := session.CallTool(t.Context(), &mcp.CallToolParams{
		Name:      "run_research",
		Arguments: map[string]any{"query": "compare A and B"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)

	out := decodeOutput[ResearchOutput](t, res)
	assert.Equal(t, StatusCompleted, out.Status)
	assert.Equal(t, "# Report", out.FinalReport)
	assert.Equal(t, 2, out.NotesCount)
}

func TestMCPRunResearch_MissingQuery(t *testing.T) {
	session := setupServerClient(t, factoryFor(newMockOrchestrator(), nil))

	res, err := session.CallTool(t.Context(), &mcp.CallToolParams{
		Name:      "run_research",
		Arguments: map[string]any{"query": ""},
	})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestMCPClarificationRoundTrip(t *testing.T) {
	mock := newMockOrchestrator()
	mock.runState = clarifyingState()
	session := setupServerClient(t, factoryFor(mock, nil))

	res, err := session.CallTool(t.Context(), &mcp.CallToolParams{
		Name:      "run_research",
		Arguments: map[string]any{"query": "tell me about it"},
	})
	require.NoError(t, err)
	out := decodeOutput[ResearchOutput](t, res)
	assert.Equal(t, StatusNeedsClarification, out.Status)

	res, err = session.CallTool(t.Context(), &mcp.CallToolParams{
		Name:      "list_pending",
		Arguments: map[string]any{},
	})
	require.NoError(t, err)
	pending := decodeOutput[ListPendingOutput](t, res)
	require.Len(t, pending.Runs, 1)
	assert.Equal(t, out.RunID, pending.Runs[0].RunID)
}

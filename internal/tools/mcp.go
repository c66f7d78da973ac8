package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var _ Tool = (*MCPTool)(nil)

// ClientName identifies this program to MCP servers.
const ClientName = "deepresearch"

// CodeInteractionRequired is the JSON-RPC error code MCP servers use when the
// user must act (typically sign in) before the tool can run.
const CodeInteractionRequired = -32003

// MCPTool forwards calls to a tool hosted by a connected MCP server.
type MCPTool struct {
	session     *mcp.ClientSession
	name        string
	description string
	schema      json.RawMessage
}

func (t *MCPTool) Name() string            { return t.name }
func (t *MCPTool) Description() string     { return t.description }
func (t *MCPTool) Schema() json.RawMessage { return t.schema }

// Invoke calls the remote tool and joins its text content. A result flagged
// as an error is returned as an error so RunSafely reports it uniformly.
func (t *MCPTool) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	res, err := t.session.CallTool(ctx, &mcp.CallToolParams{
		Name:      t.name,
		Arguments: args,
	})
	if err != nil {
		return "", fmt.Errorf("mcp %s: %w", t.name, interactionError(err))
	}

	var parts []string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	text := strings.Join(parts, "\n")
	if res.IsError {
		if text == "" {
			text = "remote tool reported an error"
		}
		return "", errors.New(text)
	}
	return text, nil
}

// interactionError rewrites an interaction-required error into a message the
// model can relay to the user, including the URL to visit. Other errors are
// returned unchanged.
func interactionError(err error) error {
	var wireErr *jsonrpc.Error
	if !errors.As(err, &wireErr) || wireErr.Code != CodeInteractionRequired {
		return err
	}

	var data struct {
		Message struct {
			Text string `json:"text"`
		} `json:"message"`
		URL string `json:"url"`
	}
	if len(wireErr.Data) > 0 {
		// Data that does not match the shape still yields the generic text.
		_ = json.Unmarshal(wireErr.Data, &data)
	}

	text := "Required interaction"
	if data.Message.Text != "" {
		text = data.Message.Text
	}
	if data.URL != "" {
		text += " " + data.URL
	}
	return errors.New(text)
}

// ConnectMCP opens a streamable HTTP session to the server at baseURL. The
// "/mcp" path is appended to the configured URL.
func ConnectMCP(ctx context.Context, baseURL string, httpClient *http.Client) (*mcp.ClientSession, error) {
	endpoint := strings.TrimRight(baseURL, "/") + "/mcp"
	client := mcp.NewClient(&mcp.Implementation{Name: ClientName, Version: "dev"}, nil)
	session, err := client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   endpoint,
		HTTPClient: httpClient,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp: connect %s: %w", endpoint, err)
	}
	return session, nil
}

// LoadMCPTools lists the tools offered over session and registers those
// named in allowed. An empty allow-list loads nothing. Tools whose names
// collide with an existing registration are skipped with a warning, as are
// tools whose schema cannot be resolved. It returns the registered tools.
func LoadMCPTools(ctx context.Context, session *mcp.ClientSession, allowed []string, reg *Registry, logger *slog.Logger) ([]Tool, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if len(allowed) == 0 {
		return nil, nil
	}

	listed, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		return nil, fmt.Errorf("mcp: list tools: %w", err)
	}

	var loaded []Tool
	for _, remote := range listed.Tools {
		if !slices.Contains(allowed, remote.Name) {
			continue
		}
		if reg.Has(remote.Name) {
			logger.Warn("tools: skipping MCP tool with conflicting name", "tool", remote.Name)
			continue
		}

		var schema json.RawMessage
		if remote.InputSchema != nil {
			schema, err = json.Marshal(remote.InputSchema)
			if err != nil {
				logger.Warn("tools: skipping MCP tool with unencodable schema", "tool", remote.Name, "err", err)
				continue
			}
		}

		t := &MCPTool{
			session:     session,
			name:        remote.Name,
			description: remote.Description,
			schema:      schema,
		}
		if err := reg.Register(t); err != nil {
			logger.Warn("tools: skipping MCP tool", "tool", remote.Name, "err", err)
			continue
		}
		loaded = append(loaded, t)
	}
	return loaded, nil
}

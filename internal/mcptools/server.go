package mcptools

import (
	"context"
	"errors"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// version is set by the linker at build time.
var version = "dev"

// NewResearchMCPServer creates an MCP server with the research tools
// registered: run_research, resume_research, and list_pending.
func NewResearchMCPServer(svc *ResearchService) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "deepresearch",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "run_research",
		Description: "Research a question on the web and return a cited markdown report. The run may instead stop with a clarification question; answer it with resume_research.",
	}, svc.RunResearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resume_research",
		Description: "Answer the clarification question of a pending run and continue the research.",
	}, svc.ResumeResearch)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_pending",
		Description: "List runs waiting for a clarification reply.",
	}, svc.ListPending)

	return server
}

// RunStdio runs server on stdio, blocking until stdin is closed or the
// context is cancelled.
func RunStdio(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves server over streamable HTTP on addr until ctx is cancelled.
func RunHTTP(ctx context.Context, server *mcp.Server, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return server },
		nil,
	)

	httpServer := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	// Shutdown gracefully when context is cancelled.
	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background())
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

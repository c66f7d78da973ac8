package main

import (
	"context"
	"log/slog"

	"github.com/dusk-indust/deepresearch/internal/config"
	"github.com/dusk-indust/deepresearch/internal/llm"
	"github.com/dusk-indust/deepresearch/internal/orchestrator"
	"github.com/dusk-indust/deepresearch/internal/search"
	"github.com/dusk-indust/deepresearch/internal/tools"
)

// workflow is an orchestrator.Workflow that also owns its MCP session.
type workflow struct {
	*orchestrator.Workflow
	cleanup func()
}

// Close releases the progress channel and the MCP session.
func (w *workflow) Close() {
	w.Workflow.Close()
	w.cleanup()
}

// newGateway routes each model to its provider's endpoint. Providers without
// an API key fall back to the default llm.base_url endpoint.
func newGateway(cfg *config.Config, logger *slog.Logger) *llm.Router {
	client := func(baseURL, apiKey string) *llm.HTTPClient {
		return llm.NewHTTPClient(apiKey, llm.WithBaseURL(baseURL), llm.WithTimeout(cfg.LLMTimeout()))
	}

	router := llm.NewRouter(client(cfg.LLM.BaseURL, cfg.LLM.APIKey))
	for name, p := range cfg.LLM.Providers {
		if p.APIKey == "" {
			continue
		}
		router.Route(name, client(p.BaseURL, p.APIKey))
	}

	for _, model := range cfg.Models() {
		if router.Routed(llm.ProviderOf(model)) {
			continue
		}
		if cfg.LLM.APIKey == "" {
			logger.Warn("no LLM API key for model; set its provider key or LLM_API_KEY", "model", model)
		}
	}
	return router
}

// buildWorkflow wires the model gateway, search provider, and MCP tools
// selected by cfg into a workflow.
func buildWorkflow(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*workflow, error) {
	gateway := newGateway(cfg, logger)

	var provider search.Provider
	switch {
	case cfg.SearchAPI != config.SearchAPITavily:
	case cfg.TavilyAPIKey == "":
		logger.Warn("web search disabled: TAVILY_API_KEY is not set")
	default:
		provider = search.NewTavily(cfg.TavilyAPIKey, nil)
	}

	wf := cfg.Workflow()
	reg, err := orchestrator.BuildRegistry(wf, gateway, provider, logger)
	if err != nil {
		return nil, err
	}

	cleanup := func() {}
	switch {
	case cfg.MCP.AuthRequired:
		logger.Warn("MCP tools skipped: servers requiring authentication are not supported", "url", cfg.MCP.URL)
	case cfg.MCPEnabled():
		session, err := tools.ConnectMCP(ctx, cfg.MCP.URL, nil)
		if err != nil {
			logger.Warn("MCP tools unavailable", "err", err)
			break
		}
		cleanup = func() { session.Close() }

		loaded, err := tools.LoadMCPTools(ctx, session, cfg.MCP.Tools, reg, logger)
		if err != nil {
			logger.Warn("MCP tools unavailable", "err", err)
			break
		}
		logger.Debug("MCP tools loaded", "count", len(loaded))
	}

	w, err := orchestrator.NewWorkflow(wf, gateway, reg, orchestrator.WithLogger(logger))
	if err != nil {
		cleanup()
		return nil, err
	}
	return &workflow{Workflow: w, cleanup: cleanup}, nil
}

package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dusk-indust/deepresearch/internal/llm"
	"github.com/dusk-indust/deepresearch/internal/search"
	"github.com/dusk-indust/deepresearch/internal/tools"
)

// Options configures RunResearch.
type Options struct {
	Config  Config
	Gateway llm.Gateway

	// Search backs the web_search tool. Nil disables web search.
	Search search.Provider

	// Tools are extra researcher tools, typically loaded from MCP.
	Tools []tools.Tool

	Logger *slog.Logger

	// Progress receives progress events. It is called from a single
	// goroutine and must not block for long.
	Progress func(ProgressEvent)
}

// BuildRegistry assembles the researcher tool set: web_search over provider
// when it is non-nil, ResearchComplete, then extra in order.
func BuildRegistry(cfg Config, gateway llm.Gateway, provider search.Provider, logger *slog.Logger, extra ...tools.Tool) (*tools.Registry, error) {
	reg, err := tools.NewRegistry()
	if err != nil {
		return nil, err
	}

	if provider != nil {
		var summarizer search.Summarizer
		if gateway != nil {
			summarizer = search.NewModelSummarizer(gateway, cfg.CallOptions(llm.TierSummarization))
		}
		svc := search.NewService(provider,
			search.WithSummarizer(summarizer),
			search.WithMaxResults(cfg.SearchMaxResults),
			search.WithTopic(cfg.SearchTopic),
			search.WithLogger(logger),
		)
		if err := reg.Register(tools.NewWebSearch(svc)); err != nil {
			return nil, err
		}
	}
	if err := reg.Register(tools.ResearchComplete{}); err != nil {
		return nil, err
	}
	for _, t := range extra {
		if err := reg.Register(t); err != nil {
			return nil, fmt.Errorf("orchestrator: register %s: %w", t.Name(), err)
		}
	}
	return reg, nil
}

// RunResearch runs one research query end to end. Model and tool failures
// degrade into the returned state; the error is non-nil only for
// ErrMissingCapability or when ctx ends.
func RunResearch(ctx context.Context, query string, opts Options) (*AgentState, error) {
	reg, err := BuildRegistry(opts.Config, opts.Gateway, opts.Search, opts.Logger, opts.Tools...)
	if err != nil {
		return nil, err
	}

	w, err := NewWorkflow(opts.Config, opts.Gateway, reg, WithLogger(opts.Logger))
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range w.Progress() {
			if opts.Progress != nil {
				opts.Progress(ev)
			}
		}
	}()

	state, err := w.Run(ctx, query)
	w.Close()
	<-done
	return state, err
}

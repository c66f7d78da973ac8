package orchestrator

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/dusk-indust/deepresearch/internal/llm"
	"github.com/dusk-indust/deepresearch/internal/prompts"
	"github.com/dusk-indust/deepresearch/internal/search"
	"github.com/dusk-indust/deepresearch/internal/tools"
)

// CompressionFailedMessage replaces a researcher's compressed result when
// every synthesis attempt failed.
const CompressionFailedMessage = "Error synthesizing research report: Maximum retries exceeded"

const maxCompressionAttempts = 3

type researcherStep int

const (
	stepResearching researcherStep = iota
	stepExecutingTools
	stepCompressing
	stepResearcherDone
)

// Researcher investigates a single topic in a tool-calling loop and
// compresses what it found.
type Researcher struct {
	gateway  llm.Gateway
	registry *tools.Registry
	cfg      Config
	logger   *slog.Logger
	emit     func(ProgressEvent)
}

// NewResearcher creates a Researcher calling the tools in registry. logger
// and emit may be nil.
func NewResearcher(gateway llm.Gateway, registry *tools.Registry, cfg Config, logger *slog.Logger, emit func(ProgressEvent)) *Researcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if emit == nil {
		emit = func(ProgressEvent) {}
	}
	return &Researcher{gateway: gateway, registry: registry, cfg: cfg, logger: logger, emit: emit}
}

// Run researches topic from a fresh history. Model and tool failures during
// compression degrade into the result; an error is returned only when a
// research step cannot reach the model or ctx ends.
func (r *Researcher) Run(ctx context.Context, topic string) (*ResearcherState, error) {
	state := &ResearcherState{}
	state.Apply(ResearcherUpdate{
		Messages:           Override(llm.Human(topic)),
		Topic:              &topic,
		ToolCallIterations: ptr(0),
		RawNotes:           Override[string](),
	})

	logger := r.logger.With("topic", search.TruncateRunes(topic, 80))
	r.emit(ProgressEvent{Phase: PhaseResearching, Topic: topic, Status: ProgressWorking})

	step := stepResearching
	for step != stepResearcherDone {
		var (
			u   ResearcherUpdate
			err error
		)
		switch step {
		case stepResearching:
			u, step, err = r.research(ctx, state)
		case stepExecutingTools:
			u, step = r.executeTools(ctx, state, logger)
		case stepCompressing:
			u, step, err = r.compress(ctx, state, logger)
		}
		if err != nil {
			r.emit(ProgressEvent{Phase: PhaseResearching, Topic: topic, Status: ProgressFailed, Message: err.Error()})
			return state, err
		}
		state.Apply(u)
	}

	r.emit(ProgressEvent{Phase: PhaseResearching, Topic: topic, Status: ProgressComplete})
	return state, nil
}

func (r *Researcher) research(ctx context.Context, state *ResearcherState) (ResearcherUpdate, researcherStep, error) {
	opts := r.cfg.CallOptions(llm.TierResearch)
	opts.Tools = r.registry.Specs()

	system := llm.System(prompts.Researcher(r.registry.Describe(), r.cfg.MaxReactToolCalls))
	resp, err := llm.Call(ctx, r.gateway, append([]llm.Message{system}, state.Messages...), opts)
	if err != nil {
		return ResearcherUpdate{}, stepResearcherDone, err
	}

	return ResearcherUpdate{
		Messages:           Append(resp.Message()),
		ToolCallIterations: ptr(state.ToolCallIterations + 1),
	}, stepExecutingTools, nil
}

func (r *Researcher) executeTools(ctx context.Context, state *ResearcherState, logger *slog.Logger) (ResearcherUpdate, researcherStep) {
	last := state.Messages[len(state.Messages)-1]
	if !last.HasToolCalls() {
		return ResearcherUpdate{}, stepCompressing
	}

	// RunSafely never fails, so FanOut cannot return an error here.
	outputs, _ := FanOut(ctx, last.ToolCalls, func(ctx context.Context, call llm.ToolCall) (string, error) {
		return r.registry.RunSafely(ctx, call), nil
	})

	results := make([]llm.Message, len(last.ToolCalls))
	for i, call := range last.ToolCalls {
		results[i] = llm.ToolResult(call.ID, call.Name, outputs[i])
	}
	u := ResearcherUpdate{Messages: Append(results...)}

	completed := slices.ContainsFunc(last.ToolCalls, func(c llm.ToolCall) bool {
		return c.Name == tools.ResearchCompleteName
	})
	if completed || state.ToolCallIterations >= r.cfg.MaxReactToolCalls {
		logger.Debug("researcher: tool loop finished",
			"iterations", state.ToolCallIterations,
			"research_complete", completed)
		return u, stepCompressing
	}
	return u, stepResearching
}

// compress synthesizes the findings. Token-limit failures prune the history
// back to before the latest AI message; other failures are retried as is.
func (r *Researcher) compress(ctx context.Context, state *ResearcherState, logger *slog.Logger) (ResearcherUpdate, researcherStep, error) {
	r.emit(ProgressEvent{Phase: PhaseCompressing, Topic: state.Topic, Status: ProgressWorking})

	messages := Merge(state.Messages, Append(llm.Human(prompts.CompressInstruction())))
	opts := r.cfg.CallOptions(llm.TierCompression)
	system := llm.System(prompts.Compress())

	compressed, ok := CompressionFailedMessage, false
	for attempt := 1; attempt <= maxCompressionAttempts; attempt++ {
		resp, err := llm.Call(ctx, r.gateway, append([]llm.Message{system}, messages...), opts)
		if err == nil {
			compressed, ok = resp.Text, true
			break
		}
		if ctx.Err() != nil {
			return ResearcherUpdate{}, stepResearcherDone, ctx.Err()
		}
		if llm.IsTokenLimitExceeded(err, opts.Model) {
			messages = llm.RemoveUpToLastAIMessage(messages)
			logger.Warn("researcher: compression exceeded token limit, pruning history",
				"attempt", attempt, "messages", len(messages), "err", err)
			continue
		}
		logger.Warn("researcher: compression attempt failed", "attempt", attempt, "err", err)
	}
	if !ok {
		r.emit(ProgressEvent{Phase: PhaseCompressing, Topic: state.Topic, Status: ProgressFailed, Message: compressed})
	}

	raw := strings.Join(llm.Contents(messages, llm.RoleTool, llm.RoleAI), "\n")
	return ResearcherUpdate{
		Messages:           Override(messages...),
		CompressedResearch: &compressed,
		RawNotes:           Override(raw),
	}, stepResearcherDone, nil
}

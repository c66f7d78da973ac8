package mcptools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/dusk-indust/deepresearch/internal/orchestrator"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Factory builds an orchestrator for one run, applying overrides on top of
// the server's configuration.
type Factory func(ctx context.Context, overrides map[string]any) (orchestrator.Orchestrator, error)

// ResearchService handles MCP tool calls for serve-mcp mode. Runs that stop
// for clarification are kept in memory until resumed.
type ResearchService struct {
	factory Factory
	logger  *slog.Logger

	mu      sync.Mutex
	pending map[string]*orchestrator.AgentState
}

// NewResearchService creates a ResearchService. A nil logger discards.
func NewResearchService(factory Factory, logger *slog.Logger) *ResearchService {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ResearchService{
		factory: factory,
		logger:  logger,
		pending: make(map[string]*orchestrator.AgentState),
	}
}

// RunResearch runs a research query from a fresh conversation.
func (s *ResearchService) RunResearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunResearchInput,
) (*mcp.CallToolResult, ResearchOutput, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, ResearchOutput{}, errors.New("query is required")
	}

	state, err := s.execute(ctx, input.Overrides, func(o orchestrator.Orchestrator) (*orchestrator.AgentState, error) {
		return o.Run(ctx, query)
	})
	return nil, s.output(state, err), nil
}

// ResumeResearch answers the clarification question of a pending run.
func (s *ResearchService) ResumeResearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResumeResearchInput,
) (*mcp.CallToolResult, ResearchOutput, error) {
	reply := strings.TrimSpace(input.Reply)
	if reply == "" {
		return nil, ResearchOutput{}, errors.New("reply is required")
	}

	s.mu.Lock()
	prev, ok := s.pending[input.RunID]
	s.mu.Unlock()
	if !ok {
		return nil, ResearchOutput{}, fmt.Errorf("no pending run %q", input.RunID)
	}

	state, err := s.execute(ctx, input.Overrides, func(o orchestrator.Orchestrator) (*orchestrator.AgentState, error) {
		return o.Resume(ctx, prev, reply)
	})
	return nil, s.output(state, err), nil
}

// ListPending reports the runs waiting for a clarification reply.
func (s *ResearchService) ListPending(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ ListPendingInput,
) (*mcp.CallToolResult, ListPendingOutput, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs := make([]PendingRun, 0, len(s.pending))
	for id, st := range s.pending {
		runs = append(runs, PendingRun{RunID: id, Question: st.PendingQuestion})
	}
	slices.SortFunc(runs, func(a, b PendingRun) int { return strings.Compare(a.RunID, b.RunID) })
	return nil, ListPendingOutput{Runs: runs}, nil
}

func (s *ResearchService) execute(
	ctx context.Context,
	overrides map[string]any,
	run func(orchestrator.Orchestrator) (*orchestrator.AgentState, error),
) (*orchestrator.AgentState, error) {
	orch, err := s.factory(ctx, overrides)
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range orch.Progress() {
			s.logger.Debug("mcptools: progress", "event", orchestrator.FormatProgress(ev))
		}
	}()

	state, err := run(orch)
	orch.Close()
	<-done

	if state != nil && state.RunID != "" {
		s.mu.Lock()
		if err == nil && state.NeedsClarification() {
			s.pending[state.RunID] = state
		} else {
			delete(s.pending, state.RunID)
		}
		s.mu.Unlock()
	}
	return state, err
}

// output converts a finished run into the tool result. Run failures are
// reported in the output rather than as tool errors.
func (s *ResearchService) output(state *orchestrator.AgentState, err error) ResearchOutput {
	var out ResearchOutput
	if state != nil {
		out.RunID = state.RunID
		out.ResearchBrief = state.ResearchBrief
		out.NotesCount = len(state.Notes)
	}

	switch {
	case err != nil:
		s.logger.Warn("mcptools: research run failed", "run", out.RunID, "err", err)
		out.Status = StatusFailed
		out.Message = err.Error()
	case state == nil:
		out.Status = StatusFailed
		out.Message = "run produced no state"
	case state.NeedsClarification():
		out.Status = StatusNeedsClarification
		out.ClarificationQuestion = state.PendingQuestion
	default:
		out.Status = StatusCompleted
		out.FinalReport = state.FinalReport
	}
	return out
}

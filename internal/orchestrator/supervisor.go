package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/dusk-indust/deepresearch/internal/llm"
	"github.com/dusk-indust/deepresearch/internal/tools"
)

// overflowMessageFormat rejects ConductResearch calls beyond the
// concurrency cap.
const overflowMessageFormat = "Error: Did not run this research as you have already exceeded the maximum number of concurrent research units. Please try again with %d or fewer research units."

type supervisorStep int

const (
	stepSupervising supervisorStep = iota
	stepDispatching
	stepSupervisorDone
)

// Supervisor delegates research topics to concurrent researchers over
// bounded reflection cycles.
type Supervisor struct {
	gateway    llm.Gateway
	researcher *Researcher
	cfg        Config
	tools      []llm.ToolSpec
	logger     *slog.Logger
	emit       func(ProgressEvent)
}

// NewSupervisor creates a Supervisor that dispatches topics to researcher.
func NewSupervisor(gateway llm.Gateway, researcher *Researcher, cfg Config, logger *slog.Logger, emit func(ProgressEvent)) *Supervisor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if emit == nil {
		emit = func(ProgressEvent) {}
	}
	return &Supervisor{
		gateway:    gateway,
		researcher: researcher,
		cfg:        cfg,
		tools:      []llm.ToolSpec{tools.Spec(tools.ConductResearch{}), tools.Spec(tools.ResearchComplete{})},
		logger:     logger,
		emit:       emit,
	}
}

// Run drives the supervisor from a seeded state until it decides research is
// complete, hits the iteration cap, or fails. Failures end the run early with
// the notes gathered so far; the only error returned is ctx's.
func (s *Supervisor) Run(ctx context.Context, state SupervisorState) (*SupervisorState, error) {
	st := &state
	step := stepSupervising
	for step != stepSupervisorDone {
		var u SupervisorUpdate
		switch step {
		case stepSupervising:
			u, step = s.supervise(ctx, st)
		case stepDispatching:
			u, step = s.dispatch(ctx, st)
		}
		st.Apply(u)
	}
	if err := ctx.Err(); err != nil {
		return st, err
	}

	// Terminal: snapshot every tool result as notes.
	st.Apply(SupervisorUpdate{Notes: Override(llm.Contents(st.Messages, llm.RoleTool)...)})
	s.emit(ProgressEvent{Phase: PhaseSupervising, Status: ProgressComplete,
		Message: fmt.Sprintf("%d notes after %d iterations", len(st.Notes), st.ResearchIterations)})
	return st, nil
}

func (s *Supervisor) supervise(ctx context.Context, st *SupervisorState) (SupervisorUpdate, supervisorStep) {
	s.emit(ProgressEvent{Phase: PhaseSupervising, Status: ProgressWorking,
		Message: fmt.Sprintf("iteration %d", st.ResearchIterations+1)})

	opts := s.cfg.CallOptions(llm.TierResearch)
	opts.Tools = s.tools

	resp, err := llm.Call(ctx, s.gateway, st.Messages, opts)
	if err != nil {
		s.logger.Warn("supervisor: model call failed, ending research",
			"iteration", st.ResearchIterations+1, "err", err)
		return SupervisorUpdate{}, stepSupervisorDone
	}

	return SupervisorUpdate{
		Messages:           Append(resp.Message()),
		ResearchIterations: ptr(st.ResearchIterations + 1),
	}, stepDispatching
}

// admittedCall is a ConductResearch call that passed admission.
type admittedCall struct {
	index int
	topic string
}

func (s *Supervisor) dispatch(ctx context.Context, st *SupervisorState) (SupervisorUpdate, supervisorStep) {
	last := st.Messages[len(st.Messages)-1]

	completed := slices.ContainsFunc(last.ToolCalls, func(c llm.ToolCall) bool {
		return c.Name == tools.ResearchCompleteName
	})
	if !last.HasToolCalls() || completed {
		s.logger.Debug("supervisor: research finished",
			"iterations", st.ResearchIterations,
			"tool_calls", len(last.ToolCalls),
			"research_complete", completed)
		return SupervisorUpdate{}, stepSupervisorDone
	}

	// One tool message per call, in response order.
	contents := make([]string, len(last.ToolCalls))
	var (
		admitted []admittedCall
		overflow int
	)
	for i, call := range last.ToolCalls {
		if call.Name != tools.ConductResearchName {
			contents[i] = fmt.Sprintf("%sunknown tool %q", tools.ErrorPrefix, call.Name)
			continue
		}
		topic, err := tools.ParseConductResearch(call.Args)
		if err != nil {
			contents[i] = tools.ErrorPrefix + err.Error()
			continue
		}
		if len(admitted) >= s.cfg.MaxConcurrentResearchUnits {
			contents[i] = fmt.Sprintf(overflowMessageFormat, s.cfg.MaxConcurrentResearchUnits)
			overflow++
			continue
		}
		admitted = append(admitted, admittedCall{index: i, topic: topic})
	}

	if overflow > 0 {
		s.logger.Info("supervisor: rejected research units over the concurrency cap",
			"admitted", len(admitted), "rejected", overflow, "cap", s.cfg.MaxConcurrentResearchUnits)
	}

	results, err := FanOut(ctx, admitted, func(ctx context.Context, c admittedCall) (*ResearcherState, error) {
		return s.researcher.Run(ctx, c.topic)
	})
	if err != nil {
		s.logger.Warn("supervisor: research dispatch failed, ending research",
			"iteration", st.ResearchIterations, "err", err)
		return SupervisorUpdate{}, stepSupervisorDone
	}

	var raw []string
	for j, c := range admitted {
		res := results[j]
		if res.CompressedResearch == "" {
			contents[c.index] = CompressionFailedMessage
		} else {
			contents[c.index] = res.CompressedResearch
		}
		raw = append(raw, res.RawNotes...)
	}

	msgs := make([]llm.Message, len(last.ToolCalls))
	for i, call := range last.ToolCalls {
		msgs[i] = llm.ToolResult(call.ID, call.Name, contents[i])
	}

	u := SupervisorUpdate{Messages: Append(msgs...)}
	if len(admitted) > 0 {
		u.RawNotes = Append(strings.Join(raw, "\n"))
	}

	if st.ResearchIterations >= s.cfg.MaxResearcherIterations {
		return u, stepSupervisorDone
	}
	return u, stepSupervising
}

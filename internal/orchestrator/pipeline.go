package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dusk-indust/deepresearch/internal/llm"
	"github.com/dusk-indust/deepresearch/internal/prompts"
	"github.com/dusk-indust/deepresearch/internal/search"
	"github.com/dusk-indust/deepresearch/internal/tools"
	"github.com/google/uuid"
)

// Compile-time interface check.
var _ Orchestrator = (*Workflow)(nil)

// Final report failure texts.
const (
	ReportRetriesExceededMessage = "Error generating final report: Maximum retries exceeded"

	reportUnknownLimitFormat = "Error generating final report: Token limit exceeded, however, we could not determine the model's maximum context length. Please update the model token limit table with this information. %v"
	reportErrorFormat        = "Error generating final report: %v"
)

const (
	maxReportAttempts = 4

	// charsPerToken converts a token limit into a findings length.
	charsPerToken = 4

	// reportShrinkFactor is applied to findings on each further overflow.
	reportShrinkFactor = 0.9
)

// ClarifyWithUser is the structured output of the clarification gate.
type ClarifyWithUser struct {
	NeedClarification bool   `json:"need_clarification" jsonschema:"Whether the user needs to be asked a clarifying question."`
	Question          string `json:"question" jsonschema:"A question to ask the user to clarify the report scope."`
	Verification      string `json:"verification" jsonschema:"Verify message that we will start research after the user has provided the necessary information."`
}

// ResearchQuestion is the structured output of brief writing.
type ResearchQuestion struct {
	ResearchBrief string `json:"research_brief" jsonschema:"A research question that will be used to guide the research."`
}

type workflowStep int

const (
	stepClarifying workflowStep = iota
	stepBriefWriting
	stepDelegating
	stepReporting
	stepWorkflowDone
)

// Workflow runs the top-level research state machine.
type Workflow struct {
	cfg        Config
	gateway    llm.Gateway
	registry   *tools.Registry
	logger     *slog.Logger
	progress   *ProgressReporter
	supervisor *Supervisor
}

// WorkflowOption configures a Workflow.
type WorkflowOption func(*Workflow)

// WithLogger sets the workflow logger.
func WithLogger(l *slog.Logger) WorkflowOption {
	return func(w *Workflow) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWorkflow wires a workflow around gateway and the researcher tools in
// registry. ResearchComplete is registered if missing. It fails with
// ErrMissingCapability when the run could not gather any information.
func NewWorkflow(cfg Config, gateway llm.Gateway, registry *tools.Registry, opts ...WorkflowOption) (*Workflow, error) {
	if err := RequireCapability(gateway, registry); err != nil {
		return nil, err
	}
	if !registry.Has(tools.ResearchCompleteName) {
		if err := registry.Register(tools.ResearchComplete{}); err != nil {
			return nil, fmt.Errorf("orchestrator: %w", err)
		}
	}

	w := &Workflow{
		cfg:      cfg,
		gateway:  gateway,
		registry: registry,
		logger:   slog.New(slog.DiscardHandler),
		progress: NewProgressReporter(),
	}
	for _, opt := range opts {
		opt(w)
	}

	level, names := DetectCapability(registry)
	w.logger.Debug("orchestrator: capabilities detected", "level", level.String(), "tools", names)

	researcher := NewResearcher(gateway, registry, cfg, w.logger, w.progress.Emit)
	w.supervisor = NewSupervisor(gateway, researcher, cfg, w.logger, w.progress.Emit)
	return w, nil
}

// Progress returns a channel that emits progress events.
func (w *Workflow) Progress() <-chan ProgressEvent {
	return w.progress.Subscribe()
}

// Close shuts down the progress reporter. Callers should invoke this when the
// workflow is no longer needed.
func (w *Workflow) Close() {
	w.progress.Close()
}

// Run researches query from a fresh conversation.
func (w *Workflow) Run(ctx context.Context, query string) (*AgentState, error) {
	state := &AgentState{RunID: uuid.NewString()}
	state.Apply(AgentUpdate{Messages: Append(llm.Human(query))})
	return w.run(ctx, state)
}

// Resume appends reply to a conversation that stopped for clarification and
// runs it again from the clarification gate.
func (w *Workflow) Resume(ctx context.Context, state *AgentState, reply string) (*AgentState, error) {
	if state == nil {
		return nil, errors.New("orchestrator: resume: nil state")
	}
	next := *state
	if next.RunID == "" {
		next.RunID = uuid.NewString()
	}
	next.Apply(AgentUpdate{
		Messages:        Append(llm.Human(reply)),
		PendingQuestion: ptr(""),
	})
	return w.run(ctx, &next)
}

func (w *Workflow) run(ctx context.Context, state *AgentState) (*AgentState, error) {
	logger := w.logger.With("run", state.RunID)

	step := stepClarifying
	for step != stepWorkflowDone {
		if err := ctx.Err(); err != nil {
			return state, err
		}

		var (
			u   AgentUpdate
			err error
		)
		switch step {
		case stepClarifying:
			u, step = w.clarify(ctx, state, logger)
		case stepBriefWriting:
			u, step = w.writeBrief(ctx, state, logger)
		case stepDelegating:
			u, step, err = w.delegate(ctx, state)
		case stepReporting:
			u, step, err = w.report(ctx, state, logger)
		}
		if err != nil {
			return state, err
		}
		state.Apply(u)
	}
	return state, nil
}

func (w *Workflow) clarify(ctx context.Context, state *AgentState, logger *slog.Logger) (AgentUpdate, workflowStep) {
	if !w.cfg.AllowClarification {
		return AgentUpdate{}, stepBriefWriting
	}
	w.progress.Emit(ProgressEvent{Phase: PhaseClarifying, Status: ProgressWorking})

	prompt := prompts.Clarify(llm.BufferString(state.Messages))
	out, err := llm.InvokeStructured[ClarifyWithUser](ctx, w.gateway,
		[]llm.Message{llm.Human(prompt)}, w.cfg.CallOptions(llm.TierResearch))
	if err != nil {
		logger.Warn("orchestrator: clarification failed, continuing without it", "err", err)
		return AgentUpdate{}, stepBriefWriting
	}

	if out.NeedClarification {
		w.progress.Emit(ProgressEvent{Phase: PhaseClarifying, Status: ProgressComplete, Message: "question for the user"})
		question := strings.TrimSpace(out.Question)
		if question == "" {
			logger.Warn("orchestrator: clarification requested without a question, continuing")
			return AgentUpdate{}, stepBriefWriting
		}
		return AgentUpdate{
			Messages:        Append(llm.AI(question)),
			PendingQuestion: &question,
		}, stepWorkflowDone
	}
	w.progress.Emit(ProgressEvent{Phase: PhaseClarifying, Status: ProgressComplete})
	return AgentUpdate{Messages: Append(llm.AI(out.Verification))}, stepBriefWriting
}

func (w *Workflow) writeBrief(ctx context.Context, state *AgentState, logger *slog.Logger) (AgentUpdate, workflowStep) {
	w.progress.Emit(ProgressEvent{Phase: PhaseBrief, Status: ProgressWorking})

	prompt := prompts.Brief(llm.BufferString(state.Messages))
	out, err := llm.InvokeStructured[ResearchQuestion](ctx, w.gateway,
		[]llm.Message{llm.Human(prompt)}, w.cfg.CallOptions(llm.TierResearch))

	brief := strings.TrimSpace(out.ResearchBrief)
	if err != nil || brief == "" {
		brief = strings.Join(llm.Contents(state.Messages, llm.RoleHuman), "\n")
		logger.Warn("orchestrator: brief writing failed, using the user's messages", "err", err)
	}
	w.progress.Emit(ProgressEvent{Phase: PhaseBrief, Status: ProgressComplete})

	return AgentUpdate{
		ResearchBrief: &brief,
		SupervisorMessages: Override(
			llm.System(prompts.Supervisor(w.cfg.MaxConcurrentResearchUnits, w.cfg.MaxResearcherIterations)),
			llm.Human(brief),
		),
	}, stepDelegating
}

func (w *Workflow) delegate(ctx context.Context, state *AgentState) (AgentUpdate, workflowStep, error) {
	sup, err := w.supervisor.Run(ctx, SupervisorState{
		Messages: state.SupervisorMessages,
		Brief:    state.ResearchBrief,
	})
	if err != nil {
		return AgentUpdate{}, stepWorkflowDone, err
	}

	return AgentUpdate{
		SupervisorMessages: Override(sup.Messages...),
		ResearchBrief:      &sup.Brief,
		Notes:              Append(sup.Notes...),
		RawNotes:           Append(sup.RawNotes...),
	}, stepReporting, nil
}

// report synthesizes the final report, shrinking the findings when the model
// reports a context overflow. Notes are always cleared.
func (w *Workflow) report(ctx context.Context, state *AgentState, logger *slog.Logger) (AgentUpdate, workflowStep, error) {
	w.progress.Emit(ProgressEvent{Phase: PhaseReporting, Status: ProgressWorking})

	opts := w.cfg.CallOptions(llm.TierFinalReport)
	findings := strings.Join(state.Notes, "\n")
	history := llm.BufferString(state.Messages)

	fail := func(report, reason string) (AgentUpdate, workflowStep, error) {
		w.progress.Emit(ProgressEvent{Phase: PhaseReporting, Status: ProgressFailed, Message: reason})
		return AgentUpdate{
			FinalReport: &report,
			Messages:    Append(llm.AI(reason)),
			Notes:       Override[string](),
		}, stepWorkflowDone, nil
	}

	for attempt := 0; attempt < maxReportAttempts; attempt++ {
		prompt := prompts.FinalReport(state.ResearchBrief, history, findings)
		resp, err := llm.Call(ctx, w.gateway, []llm.Message{llm.Human(prompt)}, opts)
		if err == nil {
			w.progress.Emit(ProgressEvent{Phase: PhaseReporting, Status: ProgressComplete})
			return AgentUpdate{
				FinalReport: &resp.Text,
				Messages:    Append(resp.Message()),
				Notes:       Override[string](),
			}, stepWorkflowDone, nil
		}
		if ctx.Err() != nil {
			return AgentUpdate{}, stepWorkflowDone, ctx.Err()
		}

		if !llm.IsTokenLimitExceeded(err, opts.Model) {
			logger.Warn("orchestrator: final report failed", "err", err)
			return fail(fmt.Sprintf(reportErrorFormat, err), "Report generation failed due to an error")
		}

		if attempt == 0 {
			limit, ok := llm.ModelTokenLimit(opts.Model)
			if !ok {
				logger.Warn("orchestrator: final report exceeded an unknown token limit",
					"model", opts.Model, "err", fmt.Errorf("%w: %w", llm.ErrUnknownTokenLimit, err))
				return fail(fmt.Sprintf(reportUnknownLimitFormat, err), "Report generation failed due to token limits")
			}
			findings = search.TruncateRunes(findings, limit*charsPerToken)
		} else {
			findings = search.TruncateRunes(findings, int(float64(len([]rune(findings)))*reportShrinkFactor))
		}
		logger.Warn("orchestrator: final report exceeded token limit, truncating findings",
			"attempt", attempt+1, "findings_chars", len([]rune(findings)))
	}

	return fail(ReportRetriesExceededMessage, "Report generation failed after maximum retries")
}

// Package orchestrator drives a deep-research run: an optional clarification
// gate, research-brief writing, a supervisor that fans research topics out to
// concurrent researchers, and final report synthesis.
//
// Each workflow is an explicit state machine driven by a loop. State crosses
// workflow boundaries only through return values merged with OverrideValue
// updates; concurrently running researchers share nothing.
package orchestrator

import "context"

// Phase identifies a step of a research run for progress reporting.
type Phase int

const (
	PhaseClarifying Phase = iota
	PhaseBrief
	PhaseSupervising
	PhaseResearching
	PhaseCompressing
	PhaseReporting
)

func (p Phase) String() string {
	names := [...]string{
		"clarifying",
		"brief",
		"supervising",
		"researching",
		"compressing",
		"reporting",
	}
	if p >= 0 && int(p) < len(names) {
		return names[p]
	}
	return "unknown"
}

// ProgressEvent is emitted to the user during a run.
type ProgressEvent struct {
	Phase Phase
	// Topic is the research topic for researcher events, empty otherwise.
	Topic   string
	Status  ProgressStatus
	Message string
}

// ProgressStatus is the state of a phase or topic.
type ProgressStatus string

const (
	ProgressPending  ProgressStatus = "pending"
	ProgressWorking  ProgressStatus = "working"
	ProgressComplete ProgressStatus = "complete"
	ProgressFailed   ProgressStatus = "failed"
)

// Orchestrator runs research queries.
type Orchestrator interface {
	// Run researches query from a fresh conversation.
	Run(ctx context.Context, query string) (*AgentState, error)

	// Resume continues a run that stopped for clarification, appending the
	// user's reply to its conversation.
	Resume(ctx context.Context, state *AgentState, reply string) (*AgentState, error)

	// Progress returns a channel that emits progress events. It is closed
	// by Close.
	Progress() <-chan ProgressEvent

	// Close releases the progress channel.
	Close()
}

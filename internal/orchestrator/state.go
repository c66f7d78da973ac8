package orchestrator

import "github.com/dusk-indust/deepresearch/internal/llm"

// ResearcherState is owned by one researcher for the duration of a single
// topic.
type ResearcherState struct {
	Messages           []llm.Message
	ToolCallIterations int
	Topic              string
	CompressedResearch string
	RawNotes           []string
}

// ResearcherUpdate is a partial update to a ResearcherState. Nil scalar
// fields are left unchanged.
type ResearcherUpdate struct {
	Messages           OverrideValue[llm.Message]
	ToolCallIterations *int
	Topic              *string
	CompressedResearch *string
	RawNotes           OverrideValue[string]
}

// Apply merges u into s.
func (s *ResearcherState) Apply(u ResearcherUpdate) {
	s.Messages = Merge(s.Messages, u.Messages)
	s.RawNotes = Merge(s.RawNotes, u.RawNotes)
	if u.ToolCallIterations != nil {
		s.ToolCallIterations = *u.ToolCallIterations
	}
	if u.Topic != nil {
		s.Topic = *u.Topic
	}
	if u.CompressedResearch != nil {
		s.CompressedResearch = *u.CompressedResearch
	}
}

// SupervisorState is owned by the supervisor while it coordinates research.
type SupervisorState struct {
	Messages           []llm.Message
	Brief              string
	Notes              []string
	ResearchIterations int
	RawNotes           []string
}

// SupervisorUpdate is a partial update to a SupervisorState.
type SupervisorUpdate struct {
	Messages           OverrideValue[llm.Message]
	Brief              *string
	Notes              OverrideValue[string]
	ResearchIterations *int
	RawNotes           OverrideValue[string]
}

// Apply merges u into s.
func (s *SupervisorState) Apply(u SupervisorUpdate) {
	s.Messages = Merge(s.Messages, u.Messages)
	s.Notes = Merge(s.Notes, u.Notes)
	s.RawNotes = Merge(s.RawNotes, u.RawNotes)
	if u.Brief != nil {
		s.Brief = *u.Brief
	}
	if u.ResearchIterations != nil {
		s.ResearchIterations = *u.ResearchIterations
	}
}

// AgentState is the state of a whole research run. Messages is the
// user-visible conversation.
type AgentState struct {
	RunID              string        `json:"runId"`
	Messages           []llm.Message `json:"messages"`
	SupervisorMessages []llm.Message `json:"supervisorMessages,omitempty"`
	ResearchBrief      string        `json:"researchBrief,omitempty"`
	RawNotes           []string      `json:"rawNotes,omitempty"`
	Notes              []string      `json:"notes,omitempty"`
	FinalReport        string        `json:"finalReport,omitempty"`

	// PendingQuestion is the clarifying question the run stopped on. It is
	// cleared when the user replies.
	PendingQuestion string `json:"pendingQuestion,omitempty"`
}

// AgentUpdate is a partial update to an AgentState.
type AgentUpdate struct {
	Messages           OverrideValue[llm.Message]
	SupervisorMessages OverrideValue[llm.Message]
	ResearchBrief      *string
	RawNotes           OverrideValue[string]
	Notes              OverrideValue[string]
	FinalReport        *string
	PendingQuestion    *string
}

// Apply merges u into s.
func (s *AgentState) Apply(u AgentUpdate) {
	s.Messages = Merge(s.Messages, u.Messages)
	s.SupervisorMessages = Merge(s.SupervisorMessages, u.SupervisorMessages)
	s.RawNotes = Merge(s.RawNotes, u.RawNotes)
	s.Notes = Merge(s.Notes, u.Notes)
	if u.ResearchBrief != nil {
		s.ResearchBrief = *u.ResearchBrief
	}
	if u.FinalReport != nil {
		s.FinalReport = *u.FinalReport
	}
	if u.PendingQuestion != nil {
		s.PendingQuestion = *u.PendingQuestion
	}
}

// NeedsClarification reports whether the run stopped to ask the user a
// question.
func (s *AgentState) NeedsClarification() bool {
	return s.PendingQuestion != ""
}

func ptr[T any](v T) *T { return &v }

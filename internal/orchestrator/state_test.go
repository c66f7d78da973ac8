package orchestrator

import (
	"testing"

	"github.com/dusk-indust/deepresearch/internal/llm"
	"github.com/stretchr/testify/assert"
)

func TestAgentState_Apply(t *testing.T) {
	s := &AgentState{
		Messages: []llm.Message{llm.Human("q")},
		Notes:    []string{"old"},
	}

	s.Apply(AgentUpdate{
		Messages:      Append(llm.AI("a")),
		Notes:         Append("new"),
		ResearchBrief: ptr("brief"),
	})
	assert.Len(t, s.Messages, 2)
	assert.Equal(t, []string{"old", "new"}, s.Notes)
	assert.Equal(t, "brief", s.ResearchBrief)

	s.Apply(AgentUpdate{Notes: Override[string](), FinalReport: ptr("report")})
	assert.Empty(t, s.Notes)
	assert.Equal(t, "report", s.FinalReport)
	assert.Equal(t, "brief", s.ResearchBrief, "nil scalar fields are untouched")
}

func TestSupervisorState_Apply(t *testing.T) {
	s := &SupervisorState{RawNotes: []string{"r1"}, ResearchIterations: 1}
	s.Apply(SupervisorUpdate{RawNotes: Append("r2"), ResearchIterations: ptr(2)})
	assert.Equal(t, []string{"r1", "r2"}, s.RawNotes)
	assert.Equal(t, 2, s.ResearchIterations)
}

func TestResearcherState_Apply(t *testing.T) {
	s := &ResearcherState{RawNotes: []string{"inherited"}}
	s.Apply(ResearcherUpdate{RawNotes: Override[string](), Topic: ptr("t")})
	assert.Empty(t, s.RawNotes)
	assert.Equal(t, "t", s.Topic)
}

func TestAgentState_NeedsClarification(t *testing.T) {
	assert.False(t, (&AgentState{}).NeedsClarification())
	assert.True(t, (&AgentState{
		Messages:        []llm.Message{llm.Human("q"), llm.AI("which one?")},
		PendingQuestion: "which one?",
	}).NeedsClarification())

	// A finished run whose report came back empty still ends with an AI turn.
	finished := &AgentState{Messages: []llm.Message{llm.Human("q"), llm.AI("")}}
	assert.False(t, finished.NeedsClarification())

	s := &AgentState{PendingQuestion: "which one?"}
	s.Apply(AgentUpdate{PendingQuestion: ptr("")})
	assert.False(t, s.NeedsClarification())
}

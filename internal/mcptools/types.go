package mcptools

// --- MCP tool types for serve-mcp mode ---
// These tools let an MCP host run research queries and answer the
// clarifying questions a run may stop on.

// Run statuses reported by the research tools.
const (
	StatusCompleted          = "completed"
	StatusNeedsClarification = "needs_clarification"
	StatusFailed             = "failed"
)

// RunResearchInput is the input for the run_research MCP tool.
type RunResearchInput struct {
	Query     string         `json:"query" jsonschema:"the research question"`
	Overrides map[string]any `json:"overrides,omitempty" jsonschema:"configuration overrides for this run, keyed like deepresearch.yml (e.g. max_researcher_iterations)"`
}

// ResumeResearchInput is the input for the resume_research MCP tool.
type ResumeResearchInput struct {
	RunID     string         `json:"runId" jsonschema:"run id returned by run_research"`
	Reply     string         `json:"reply" jsonschema:"answer to the clarification question"`
	Overrides map[string]any `json:"overrides,omitempty" jsonschema:"configuration overrides for the resumed run"`
}

// ResearchOutput is the result of run_research and resume_research.
type ResearchOutput struct {
	RunID                 string `json:"runId"`
	Status                string `json:"status"`
	FinalReport           string `json:"finalReport,omitempty"`
	ResearchBrief         string `json:"researchBrief,omitempty"`
	ClarificationQuestion string `json:"clarificationQuestion,omitempty"`
	NotesCount            int    `json:"notesCount"`
	Message               string `json:"message,omitempty"`
}

// ListPendingInput is the input for the list_pending MCP tool.
type ListPendingInput struct{}

// ListPendingOutput is the result of the list_pending MCP tool.
type ListPendingOutput struct {
	Runs []PendingRun `json:"runs"`
}

// PendingRun is a run waiting for a clarification reply.
type PendingRun struct {
	RunID    string `json:"runId"`
	Question string `json:"question"`
}

// Package prompts renders the instruction templates sent to each model tier.
// Templates are embedded in the binary and parsed once at init.
package prompts

import (
	"embed"
	"strings"
	"text/template"
	"time"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// now is replaced in tests.
var now = time.Now

// Today formats the current date the way prompts present it, e.g.
// "Mon Jan 2, 2006".
func Today() string {
	return now().Format("Mon Jan 2, 2006")
}

// Clarify renders the clarification-gate prompt over a rendered history.
func Clarify(messages string) string {
	return render("clarify.tmpl", map[string]any{"Messages": messages, "Date": Today()})
}

// Brief renders the prompt that turns the history into a research brief.
func Brief(messages string) string {
	return render("brief.tmpl", map[string]any{"Messages": messages, "Date": Today()})
}

// Supervisor renders the lead researcher's system prompt.
func Supervisor(maxConcurrentResearchUnits, maxResearcherIterations int) string {
	return render("supervisor.tmpl", map[string]any{
		"Date":                       Today(),
		"MaxConcurrentResearchUnits": maxConcurrentResearchUnits,
		"MaxResearcherIterations":    maxResearcherIterations,
	})
}

// Researcher renders a researcher's system prompt. tools holds one
// "name: description" line per bound tool.
func Researcher(tools []string, maxToolCalls int) string {
	return render("researcher.tmpl", map[string]any{
		"Date":         Today(),
		"Tools":        tools,
		"MaxToolCalls": maxToolCalls,
	})
}

// Compress renders the compression model's system prompt.
func Compress() string {
	return render("compress.tmpl", map[string]any{"Date": Today()})
}

// CompressInstruction is the human turn appended before compression.
func CompressInstruction() string {
	return render("compress_instruction.tmpl", nil)
}

// FinalReport renders the report-synthesis prompt.
func FinalReport(brief, messages, findings string) string {
	return render("final_report.tmpl", map[string]any{
		"Brief":    brief,
		"Messages": messages,
		"Findings": findings,
		"Date":     Today(),
	})
}

// SummarizeWebpage renders the summarization prompt for raw page content.
func SummarizeWebpage(content string) string {
	return render("summarize_webpage.tmpl", map[string]any{"Content": content, "Date": Today()})
}

// render panics on failure; the templates and their data shapes are fixed at
// compile time.
func render(name string, data any) string {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		panic("prompts: render " + name + ": " + err.Error())
	}
	return strings.TrimSpace(b.String())
}

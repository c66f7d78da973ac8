// Package tools holds the capabilities a researcher or supervisor can call:
// the Tool interface, an ordered Registry resolved once per run, the
// built-in tools, and tools discovered from an MCP server.
//
// Tool failures are data. RunSafely converts every error and panic into an
// "Error executing tool: ..." string so that one failing call never aborts a
// research branch.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dusk-indust/deepresearch/internal/llm"
	"github.com/google/jsonschema-go/jsonschema"
)

// ErrDuplicateTool is returned when registering a name that is already taken.
var ErrDuplicateTool = errors.New("tools: duplicate tool name")

// Tool is a named capability a model can request.
type Tool interface {
	Name() string
	Description() string
	// Schema is the JSON schema of the argument object. Nil means the tool
	// takes no arguments.
	Schema() json.RawMessage
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

// Spec describes t for binding to a model call.
func Spec(t Tool) llm.ToolSpec {
	return llm.ToolSpec{Name: t.Name(), Description: t.Description(), Parameters: t.Schema()}
}

type entry struct {
	tool   Tool
	schema *jsonschema.Resolved
}

// Registry maps tool names to implementations, preserving registration
// order. It is built before a run starts and only read afterwards.
type Registry struct {
	order  []string
	byName map[string]entry
}

// NewRegistry creates a registry holding tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{byName: make(map[string]entry)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t. Its argument schema is resolved now so that invalid
// schemas are reported before any model sees the tool.
func (r *Registry) Register(t Tool) error {
	name := t.Name()
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTool, name)
	}

	var resolved *jsonschema.Resolved
	if raw := t.Schema(); len(raw) > 0 {
		var s jsonschema.Schema
		if err := json.Unmarshal(raw, &s); err != nil {
			return fmt.Errorf("tools: %s: decode schema: %w", name, err)
		}
		res, err := s.Resolve(nil)
		if err != nil {
			return fmt.Errorf("tools: %s: resolve schema: %w", name, err)
		}
		resolved = res
	}

	r.order = append(r.order, name)
	r.byName[name] = entry{tool: t, schema: resolved}
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	e, ok := r.byName[name]
	return e.tool, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Specs returns the model-facing descriptions in registration order.
func (r *Registry) Specs() []llm.ToolSpec {
	specs := make([]llm.ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		specs = append(specs, Spec(r.byName[name].tool))
	}
	return specs
}

// Describe returns one "name: description" line per tool.
func (r *Registry) Describe() []string {
	lines := make([]string, 0, len(r.order))
	for _, name := range r.order {
		lines = append(lines, name+": "+r.byName[name].tool.Description())
	}
	return lines
}

// ErrorPrefix starts every string produced for a failed tool call.
const ErrorPrefix = "Error executing tool: "

// RunSafely executes call against the registry and always returns a string:
// the tool's output, or ErrorPrefix followed by the failure. Unknown tools,
// arguments failing the tool's schema, returned errors and panics are all
// reported this way.
func (r *Registry) RunSafely(ctx context.Context, call llm.ToolCall) (out string) {
	e, ok := r.byName[call.Name]
	if !ok {
		return fmt.Sprintf("%sunknown tool %q", ErrorPrefix, call.Name)
	}

	args := call.Args
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if e.schema != nil {
		if err := validateArgs(e.schema, args); err != nil {
			return ErrorPrefix + err.Error()
		}
	}

	defer func() {
		if p := recover(); p != nil {
			out = fmt.Sprintf("%spanic: %v", ErrorPrefix, p)
		}
	}()

	res, err := e.tool.Invoke(ctx, args)
	if err != nil {
		return ErrorPrefix + err.Error()
	}
	return res
}

func validateArgs(schema *jsonschema.Resolved, args json.RawMessage) error {
	var instance any
	if err := json.Unmarshal(args, &instance); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

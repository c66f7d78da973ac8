package orchestrator

import (
	"errors"
	"fmt"

	"github.com/dusk-indust/deepresearch/internal/llm"
	"github.com/dusk-indust/deepresearch/internal/tools"
)

// ErrMissingCapability aborts a run that could not gather any information.
// It is the only failure a run does not degrade into its state.
var ErrMissingCapability = errors.New("orchestrator: missing capability")

// DetectCapability inspects the researcher registry and returns the
// capability level together with the names of the information-gathering
// tools it holds, in registration order.
func DetectCapability(reg *tools.Registry) (CapabilityLevel, []string) {
	if reg == nil {
		return CapNone, nil
	}

	var (
		hasSearch bool
		hasMCP    bool
		names     []string
	)
	for _, name := range reg.Names() {
		switch name {
		case tools.ResearchCompleteName, tools.ConductResearchName:
			continue
		case tools.WebSearchName:
			hasSearch = true
		default:
			hasMCP = true
		}
		names = append(names, name)
	}

	switch {
	case hasSearch && hasMCP:
		return CapFull, names
	case hasSearch:
		return CapSearch, names
	case hasMCP:
		return CapMCPOnly, names
	default:
		return CapNone, names
	}
}

// RequireCapability returns an ErrMissingCapability error describing what to
// configure when the run has no model gateway or no research tools.
func RequireCapability(gateway llm.Gateway, reg *tools.Registry) error {
	if gateway == nil {
		return fmt.Errorf("%w: no model gateway configured; set llm.api_key (or OPENAI_API_KEY) and llm.base_url", ErrMissingCapability)
	}
	if level, _ := DetectCapability(reg); level == CapNone {
		return fmt.Errorf("%w: no search or MCP tools available; set search_api to %q with TAVILY_API_KEY, or configure mcp.url and mcp.tools", ErrMissingCapability, "tavily")
	}
	return nil
}

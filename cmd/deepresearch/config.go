package main

import (
	"fmt"

	"github.com/dusk-indust/deepresearch/internal/config"
	"github.com/dusk-indust/deepresearch/internal/orchestrator"
	"github.com/spf13/cobra"
)

func newConfigCmd(global *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.load(nil)
			if err != nil {
				return err
			}
			return config.Dump(cmd.OutOrStdout(), cfg)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check the configuration and report the research capability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := global.load(nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration OK (capability: %s)\n", capability(cfg))
			return nil
		},
	})
	return cmd
}

// capability predicts the capability level from configuration alone,
// without contacting the MCP server.
func capability(cfg *config.Config) orchestrator.CapabilityLevel {
	search := cfg.SearchAPI == config.SearchAPITavily && cfg.TavilyAPIKey != ""
	mcp := cfg.MCPEnabled()
	switch {
	case search && mcp:
		return orchestrator.CapFull
	case search:
		return orchestrator.CapSearch
	case mcp:
		return orchestrator.CapMCPOnly
	default:
		return orchestrator.CapNone
	}
}

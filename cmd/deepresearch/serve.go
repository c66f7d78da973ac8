package main

import (
	"context"
	"maps"

	"github.com/dusk-indust/deepresearch/internal/mcptools"
	"github.com/dusk-indust/deepresearch/internal/orchestrator"
	"github.com/spf13/cobra"
)

func newServeMCPCmd(global *globalFlags) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve-mcp",
		Short: "Serve the research tools over MCP (stdio by default)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := global.load(nil)
			if err != nil {
				return err
			}
			// stdout carries the protocol on stdio; logs stay on stderr.
			logger, closeLog, err := global.logger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeLog()

			factory := func(ctx context.Context, overrides map[string]any) (orchestrator.Orchestrator, error) {
				runCfg, err := global.load(maps.Clone(overrides))
				if err != nil {
					return nil, err
				}
				w, err := buildWorkflow(ctx, runCfg, logger)
				if err != nil {
					return nil, err
				}
				return w, nil
			}

			server := mcptools.NewResearchMCPServer(mcptools.NewResearchService(factory, logger))
			if addr != "" {
				logger.Info("serving MCP over HTTP", "addr", addr)
				return mcptools.RunHTTP(ctx, server, addr)
			}
			return mcptools.RunStdio(ctx, server)
		},
	}

	cmd.Flags().StringVar(&addr, "http", "", "serve streamable HTTP on this address instead of stdio")
	return cmd
}

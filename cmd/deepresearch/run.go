package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dusk-indust/deepresearch/internal/orchestrator"
	"github.com/spf13/cobra"
)

type runFlags struct {
	Output  string
	JSON    bool
	NoInput bool
	Quiet   bool
}

func newRunCmd(global *globalFlags) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run <query>",
		Short: "Research a question and print the report",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResearch(cmd, global, &flags, strings.Join(args, " "))
		},
	}

	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "write the report to this file")
	cmd.Flags().BoolVar(&flags.JSON, "json", false, "print the final run state as JSON")
	cmd.Flags().BoolVar(&flags.NoInput, "no-input", false, "print clarification questions instead of prompting")
	cmd.Flags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress progress output")
	return cmd
}

func runResearch(cmd *cobra.Command, global *globalFlags, flags *runFlags, query string) error {
	ctx := cmd.Context()
	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	cfg, err := global.load(nil)
	if err != nil {
		return err
	}
	logger, closeLog, err := global.logger(cfg, stderr)
	if err != nil {
		return err
	}
	defer closeLog()

	w, err := buildWorkflow(ctx, cfg, logger)
	if err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range w.Progress() {
			if !flags.Quiet {
				fmt.Fprintln(stderr, orchestrator.FormatProgress(ev))
			}
		}
	}()
	defer func() {
		w.Close()
		<-done
	}()

	state, err := w.Run(ctx, query)
	if err != nil {
		return err
	}

	in := bufio.NewReader(cmd.InOrStdin())
	for state.NeedsClarification() {
		question := state.PendingQuestion
		if flags.NoInput {
			fmt.Fprintln(stdout, question)
			return nil
		}

		fmt.Fprintf(stderr, "\n%s\n> ", question)
		reply, readErr := in.ReadString('\n')
		reply = strings.TrimSpace(reply)
		if reply == "" {
			if readErr != nil && !errors.Is(readErr, io.EOF) {
				return readErr
			}
			fmt.Fprintln(stdout, question)
			return nil
		}

		state, err = w.Resume(ctx, state, reply)
		if err != nil {
			return err
		}
	}

	return writeResult(stdout, state, flags)
}

func writeResult(stdout io.Writer, state *orchestrator.AgentState, flags *runFlags) error {
	if flags.Output != "" {
		if err := os.WriteFile(flags.Output, []byte(state.FinalReport+"\n"), 0o644); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	if flags.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}
	if flags.Output == "" {
		fmt.Fprintln(stdout, state.FinalReport)
	}
	return nil
}

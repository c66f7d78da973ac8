package main

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"strings"

	"github.com/dusk-indust/deepresearch/internal/config"
	"github.com/dusk-indust/deepresearch/internal/logging"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	ConfigDir string
	LogLevel  string
	LogFormat string
	LogFile   string
	Verbose   bool
	Set       []string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags

	root := &cobra.Command{
		Use:   "deepresearch",
		Short: "Multi-agent web research with cited reports",
		Long: `deepresearch turns a question into a research brief, fans the work out to
parallel researcher agents that search the web and any configured MCP tools,
and writes a cited markdown report from their compressed findings.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.ConfigDir, "config-dir", ".", "directory containing deepresearch.yml")
	pf.StringVar(&flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&flags.LogFormat, "log-format", "", "log format: text or json")
	pf.StringVar(&flags.LogFile, "log-file", "", "append logs to this file instead of stderr")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "shorthand for --log-level=debug")
	pf.StringArrayVar(&flags.Set, "set", nil, "override a config key, e.g. --set max_researcher_iterations=2 (repeatable)")

	root.AddCommand(
		newRunCmd(&flags),
		newServeMCPCmd(&flags),
		newConfigCmd(&flags),
	)
	return root
}

// overrides collects --set pairs plus the logging flags into config
// overrides.
func (f *globalFlags) overrides() (map[string]any, error) {
	out, err := parseSets(f.Set)
	if err != nil {
		return nil, err
	}
	if f.LogLevel != "" {
		out["log_level"] = f.LogLevel
	}
	if f.Verbose {
		out["log_level"] = "debug"
	}
	if f.LogFormat != "" {
		out["log_format"] = f.LogFormat
	}
	return out, nil
}

// load resolves the configuration, applying extra on top of the flags.
func (f *globalFlags) load(extra map[string]any) (*config.Config, error) {
	overrides, err := f.overrides()
	if err != nil {
		return nil, err
	}
	maps.Copy(overrides, extra)
	return config.Load(f.ConfigDir, overrides)
}

// logger builds the process logger. The returned closer releases the log
// file, if any.
func (f *globalFlags) logger(cfg *config.Config, stderr io.Writer) (*slog.Logger, func(), error) {
	if f.LogFile == "" {
		return logging.New(stderr, cfg.LogLevel, cfg.LogFormat), func() {}, nil
	}
	file, err := logging.OpenFile(f.LogFile)
	if err != nil {
		return nil, nil, err
	}
	return logging.New(file, cfg.LogLevel, cfg.LogFormat), func() { file.Close() }, nil
}

// parseSets parses key=value pairs. Values are decoded as YAML scalars or
// sequences so that numbers, booleans, and lists keep their types.
func parseSets(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", pair)
		}

		var val any
		if err := yaml.Unmarshal([]byte(raw), &val); err != nil || val == nil {
			val = raw
		}
		out[key] = val
	}
	return out, nil
}

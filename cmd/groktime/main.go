package main

// ---------------------------------------------------------------------------
// main.go: command tree for the groktime CLI
//
// Command implementations live in cmd_*.go. Shared helpers are in helpers.go.
// ---------------------------------------------------------------------------

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/groktime-project/groktime/internal/core"
)

var (
	version   = "0.3.0"
	commit    = "dev"
	buildDate = "unknown"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	verbose    bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, red("error: ")+"%v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	parse := &parseOptions{}

	cmd := &cobra.Command{
		Use:   "groktime",
		Short: "Turn log lines into structured records with self-extending grok rules",
		Long: `groktime matches each line of a log file against an ordered list of grok
rules. Lines no rule matches are sent to a language model that proposes a new
rule; accepted rules are appended to the rule store so the next line of the
same format is matched locally.

Running groktime with -l is the same as "groktime parse".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if parse.logPath == "" {
				return cmd.Help()
			}
			return runParse(cmd, opts, parse)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (env GROKTIME_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: console or json")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	addParseFlags(cmd, parse)

	cmd.AddCommand(newParseCommand(opts))
	cmd.AddCommand(newRulesCommand(opts))
	cmd.AddCommand(newConfigCommand(opts))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

// loadConfig resolves the config file and applies logging flags.
func loadConfig(opts *rootOptions) (*core.Config, error) {
	cfg, err := core.LoadConfig(envConfig(opts.configPath))
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}
	return cfg, nil
}

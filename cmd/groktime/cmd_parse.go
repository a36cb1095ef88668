package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/groktime-project/groktime/internal/core"
	"github.com/groktime-project/groktime/internal/grok"
	"github.com/groktime-project/groktime/internal/ingest"
	"github.com/groktime-project/groktime/internal/oracle"
	"github.com/groktime-project/groktime/internal/pipeline"
	"github.com/groktime-project/groktime/internal/rulestore"
	"github.com/groktime-project/groktime/internal/synth"
)

type parseOptions struct {
	logPath    string
	outputPath string
	rulesPath  string
	dryRun     bool
}

func addParseFlags(cmd *cobra.Command, opts *parseOptions) {
	cmd.Flags().StringVarP(&opts.logPath, "log", "l", "", "log file to parse (- for stdin)")
	cmd.Flags().StringVarP(&opts.outputPath, "output", "o", "", "output JSON file (default out.json)")
	cmd.Flags().StringVarP(&opts.rulesPath, "patterns", "p", "", "rule store file (default patterns.json)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "match against stored rules only; never call the oracle")
}

func newParseCommand(root *rootOptions) *cobra.Command {
	opts := &parseOptions{}
	cmd := &cobra.Command{
		Use:   "parse -l LOG",
		Short: "Parse a log file into structured records",
		Long: `Parse every line of LOG. Lines that no stored rule matches are sent to the
configured oracle (up to 3 attempts per line); an accepted rule is appended to
the rule store. Records are written to the output file keyed by line index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.logPath == "" {
				return fmt.Errorf("--log is required")
			}
			return runParse(cmd, root, opts)
		},
	}
	addParseFlags(cmd, opts)
	return cmd
}

// cleanup runs close functions in reverse order of registration.
type cleanup []func()

func (c *cleanup) add(fn func()) { *c = append(*c, fn) }

func (c *cleanup) run() {
	for i := len(*c) - 1; i >= 0; i-- {
		(*c)[i]()
	}
}

func runParse(cmd *cobra.Command, root *rootOptions, opts *parseOptions) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if opts.rulesPath != "" {
		cfg.Rules.Path = opts.rulesPath
	}
	if opts.outputPath != "" {
		cfg.Output.Path = opts.outputPath
	}

	runID := uuid.NewString()
	logger := core.NewLogger(cfg.Logging.Format, cfg.LogLevel()).With().Str("run", runID[:8]).Logger()

	var closers cleanup
	defer closers.run()

	vocab := core.DefaultVocabulary()
	compiler := grok.NewCompiler(vocab)
	store := rulestore.NewFileStore(cfg.Rules.Path, logger)
	defs, err := store.Load()
	if err != nil {
		return err
	}
	rules, err := grok.NewRuleSet(compiler, defs)
	if err != nil {
		return fmt.Errorf("rule store %s: %w", cfg.Rules.Path, err)
	}
	logger.Info().Int("rules", rules.Len()).Str("path", cfg.Rules.Path).Msg("rules loaded")

	metrics := core.NopMetrics()
	var reader *sdkmetric.ManualReader
	if cfg.Metrics.Enabled {
		reader = sdkmetric.NewManualReader()
		mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
		closers.add(func() { mp.Shutdown(context.Background()) })
		if metrics, err = core.NewMetrics(mp); err != nil {
			return err
		}
	}

	pipeOpts := []pipeline.Option{pipeline.WithLogger(logger), pipeline.WithMetrics(metrics)}
	synthOpts := []synth.Option{
		synth.WithStrict(cfg.Synthesis.Strict),
		synth.WithMetrics(metrics),
		synth.WithLogger(logger),
	}

	if cfg.Journal.Enabled {
		j, err := rulestore.OpenJournal(cfg.Journal.Path, logger)
		if err != nil {
			return err
		}
		closers.add(func() { j.Close() })
		synthOpts = append(synthOpts, synth.WithObserver(j))
	}

	var bus *core.RecordBus
	if cfg.Bus.Enabled {
		if bus, err = core.NewRecordBus(&cfg.Bus, runID, logger); err != nil {
			return err
		}
		closers.add(func() { bus.Close() })
		pipeOpts = append(pipeOpts, pipeline.WithSink(bus))
		synthOpts = append(synthOpts, synth.WithObserver(bus))
	}

	switch {
	case opts.dryRun:
		logger.Info().Msg("dry run: unmatched lines are skipped")
	case !cfg.Synthesis.Enabled:
		logger.Info().Msg("synthesis disabled: unmatched lines are skipped")
	default:
		lazy := oracle.NewLazy(oracle.FromConfig(cfg.Oracle, logger))
		loop := synth.NewLoop(lazy, compiler, store, vocab, synthOpts...)
		pipeOpts = append(pipeOpts, pipeline.WithSynthesizer(loop))
	}

	src, err := ingest.Open(opts.logPath)
	if err != nil {
		return err
	}
	defer src.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := pipeline.New(rules, pipeOpts...).Run(ctx, src.Reader)
	if err != nil {
		return err
	}
	if err := pipeline.WriteRecords(cfg.Output.Path, res.Records); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %d records written to %s\n", green("✓"), len(res.Records), cfg.Output.Path)
	fmt.Fprintf(out, "  lines %d, learned %d, skipped %d\n", res.Lines, res.Learned, len(res.Failures))
	if bus != nil {
		published, failed := bus.Stats()
		fmt.Fprintf(out, "  bus messages published %d", published)
		if failed > 0 {
			fmt.Fprintf(out, ", %s", red(fmt.Sprintf("%d failed", failed)))
		}
		fmt.Fprintln(out)
	}
	if reader != nil {
		printSummary(cmd, reader, logger)
	}
	return nil
}

func printSummary(cmd *cobra.Command, reader *sdkmetric.ManualReader, logger zerolog.Logger) {
	summary, err := core.CollectSummary(cmd.Context(), reader)
	if err != nil {
		warnf(cmd.ErrOrStderr(), "metrics summary unavailable: %v", err)
		return
	}
	names := make([]string, 0, len(summary))
	for name := range summary {
		names = append(names, name)
	}
	sort.Strings(names)

	t := NewTable(cmd.OutOrStdout(), "METRIC", "VALUE")
	for _, name := range names {
		t.AddRow(name, fmt.Sprintf("%d", summary[name]))
	}
	t.Render()
	logger.Debug().Interface("summary", summary).Msg("run metrics")
}

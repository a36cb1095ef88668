package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/groktime-project/groktime/internal/core"
	"github.com/groktime-project/groktime/internal/grok"
	"github.com/groktime-project/groktime/internal/rulestore"
)

func newRulesCommand(root *rootOptions) *cobra.Command {
	var rulesPath string

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect and seed the rule store",
	}
	cmd.PersistentFlags().StringVarP(&rulesPath, "patterns", "p", "", "rule store file (default patterns.json)")

	// store opens the rule store named by config and flags.
	store := func() (*rulestore.FileStore, error) {
		cfg, err := loadConfig(root)
		if err != nil {
			return nil, err
		}
		if rulesPath != "" {
			cfg.Rules.Path = rulesPath
		}
		logger := core.NewLogger(cfg.Logging.Format, cfg.LogLevel())
		return rulestore.NewFileStore(cfg.Rules.Path, logger), nil
	}

	cmd.AddCommand(newRulesListCommand(store))
	cmd.AddCommand(newRulesInitCommand(store))
	cmd.AddCommand(newRulesTestCommand(store))
	cmd.AddCommand(newRulesHistoryCommand(root))
	return cmd
}

type storeOpener func() (*rulestore.FileStore, error)

func newRulesListCommand(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored rules in match order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defs, err := store.Load()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(defs) == 0 {
				fmt.Fprintf(out, "%s\n", dim("no rules in "+store.Path()))
				return nil
			}
			t := NewTable(out, "#", "PATTERN")
			for i, def := range defs {
				t.AddRow(fmt.Sprintf("%d", i), truncate(def, 100))
			}
			t.Render()
			return nil
		},
	}
}

func newRulesInitCommand(open storeOpener) *cobra.Command {
	var (
		names []string
		force bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Seed the rule store from built-in presets",
		Long:  "Seed the rule store from built-in presets. Available: " + strings.Join(rulestore.PresetNames(), ", "),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			var defs []string
			for _, name := range names {
				preset, err := rulestore.Preset(name)
				if err != nil {
					return err
				}
				defs = append(defs, preset...)
			}
			// A preset that does not compile must never reach the store.
			if _, err := grok.NewRuleSet(grok.NewCompiler(core.DefaultVocabulary()), defs); err != nil {
				return err
			}
			if err := store.Init(defs, force); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s wrote %d rules to %s\n", green("✓"), len(defs), store.Path())
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&names, "preset", []string{"authlog", "nginx", "syslog"}, "presets to write, in order")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite a non-empty store")
	return cmd
}

func newRulesTestCommand(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "test LINE",
		Short: "Show which stored rule matches LINE and the fields it extracts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open()
			if err != nil {
				return err
			}
			defs, err := store.Load()
			if err != nil {
				return err
			}
			rules, err := grok.NewRuleSet(grok.NewCompiler(core.DefaultVocabulary()), defs)
			if err != nil {
				return err
			}
			fields, idx, ok := rules.TryMatchRule(args[0])
			if !ok {
				return fmt.Errorf("no stored rule matches (%d rules): %w", rules.Len(), core.ErrNoMatch)
			}
			converted := rules.Rule(idx).Convert(fields)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rule %d %s\n", idx, dim(truncate(rules.Rule(idx).Pattern(), 80)))
			keys := make([]string, 0, len(converted))
			for k := range converted {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			t := NewTable(out, "FIELD", "VALUE")
			for _, k := range keys {
				t.AddRow(k, fmt.Sprintf("%v", converted[k]))
			}
			t.Render()
			return nil
		},
	}
}

func newRulesHistoryCommand(root *rootOptions) *cobra.Command {
	var rejections bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show learned rules (or rejected attempts) from the synthesis journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			j, err := rulestore.OpenJournal(cfg.Journal.Path, zerolog.Nop())
			if err != nil {
				return err
			}
			defer j.Close()

			out := cmd.OutOrStdout()
			if rejections {
				items, err := j.Rejections()
				if err != nil {
					return err
				}
				t := NewTable(out, "AT", "LINE", "TRY", "REASON", "ERROR")
				for _, r := range items {
					t.AddRow(r.At.Format("2006-01-02 15:04:05"), fmt.Sprintf("%d", r.Line),
						fmt.Sprintf("%d", r.Attempt), r.Reason, truncate(r.Error, 60))
				}
				t.Render()
				return nil
			}

			items, err := j.Rules()
			if err != nil {
				return err
			}
			t := NewTable(out, "LEARNED", "RULE", "LINE", "TRIES", "PATTERN")
			for _, r := range items {
				t.AddRow(r.LearnedAt.Format("2006-01-02 15:04:05"), fmt.Sprintf("%d", r.Index),
					fmt.Sprintf("%d", r.Line), fmt.Sprintf("%d", r.Attempts), truncate(r.Pattern, 70))
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&rejections, "rejections", false, "show rejected attempts instead of learned rules")
	return cmd
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joescharf/intentcfg/internal/compiler"
	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/output"
	"github.com/joescharf/intentcfg/internal/store"
)

var (
	patternVersion   string
	patternHandler   string
	patternIntent    string
	patternKind      string
	patternExpr      string
	patternRules     []string
	patternRulesFile string
	patternPhrases   []string
	patternPriority  int
	patternDisabled  bool
	patternScope     string
	patternRationale string
	patternEnabled   bool
)

var patternCmd = &cobra.Command{
	Use:     "pattern",
	Aliases: []string{"pat"},
	Short:   "Manage routing patterns within a version",
}

var patternListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List patterns in routing order (default: active version)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return patternListRun()
	},
}

var patternShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a pattern and its editing mode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return patternShowRun(args[0])
	},
}

var patternAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a pattern to a version",
	Long: `Add a pattern from exactly one source:

  --expr     a hand-written expression
  --rule     simple-mode rules, e.g. --rule 'starts_with "how many"' (repeatable)
  --rules-file  a file of rules, one per line
  --phrase   example phrases (repeatable); the expression is proposed from them`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return patternAddRun()
	},
}

var patternUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a pattern's fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return patternUpdateRun(cmd, args[0])
	},
}

var patternDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a pattern",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return patternDeleteRun(args[0])
	},
}

var patternRegenerateCmd = &cobra.Command{
	Use:   "regenerate <id>",
	Short: "Recompile a pattern's expression from its stored rules or phrases",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return patternRegenerateRun(args[0])
	},
}

func init() {
	patternListCmd.Flags().StringVar(&patternVersion, "version-id", "", "Version id (default: active version)")
	patternListCmd.Flags().StringVar(&patternHandler, "handler", "", "Filter by handler")
	patternListCmd.Flags().StringVar(&patternIntent, "intent", "", "Filter by intent")
	patternListCmd.Flags().StringVar(&patternKind, "kind", "", "Filter by kind")
	patternListCmd.Flags().BoolVar(&patternEnabled, "enabled", false, "Only enabled patterns")

	patternAddCmd.Flags().StringVar(&patternVersion, "version-id", "", "Version id")
	addPatternFlags(patternAddCmd)
	_ = patternAddCmd.MarkFlagRequired("version-id")
	_ = patternAddCmd.MarkFlagRequired("handler")
	_ = patternAddCmd.MarkFlagRequired("intent")

	addPatternFlags(patternUpdateCmd)

	patternCmd.AddCommand(patternListCmd, patternShowCmd, patternAddCmd, patternUpdateCmd,
		patternDeleteCmd, patternRegenerateCmd)
	rootCmd.AddCommand(patternCmd)
}

func addPatternFlags(c *cobra.Command) {
	c.Flags().StringVar(&patternHandler, "handler", "", "Handler name")
	c.Flags().StringVar(&patternIntent, "intent", "", "Intent name")
	c.Flags().StringVar(&patternKind, "kind", string(models.PatternKindPositive), "Kind: positive, negative, synonym")
	c.Flags().StringVar(&patternExpr, "expr", "", "Hand-written expression")
	c.Flags().StringArrayVar(&patternRules, "rule", nil, "Simple-mode rule (repeatable)")
	c.Flags().StringVar(&patternRulesFile, "rules-file", "", "File of simple-mode rules")
	c.Flags().StringArrayVar(&patternPhrases, "phrase", nil, "Example phrase (repeatable)")
	c.Flags().IntVar(&patternPriority, "priority", 0, "Priority; higher wins")
	c.Flags().BoolVar(&patternDisabled, "disabled", false, "Disable the pattern (--disabled=false re-enables)")
	c.Flags().StringVar(&patternScope, "scope", "", "Optional scope label")
	c.Flags().StringVar(&patternRationale, "rationale", "", "Why the pattern exists")
}

// patternRulesFromFlags parses --rule and --rules-file into rules.
func patternRulesFromFlags() ([]compiler.Rule, error) {
	src := strings.Join(patternRules, "\n")
	if patternRulesFile != "" {
		data, err := os.ReadFile(patternRulesFile)
		if err != nil {
			return nil, fmt.Errorf("read rules file: %w", err)
		}
		src = src + "\n" + string(data)
	}
	if strings.TrimSpace(src) == "" {
		return nil, nil
	}
	return compiler.ParseRules(src)
}

func patternListRun() error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	ctx := context.Background()
	v, err := svc.harness.ResolveVersion(ctx, patternVersion)
	if err != nil {
		return err
	}
	patterns, err := svc.versions.ListPatterns(ctx, store.PatternListFilter{
		VersionID:      v.ID,
		Handler:        patternHandler,
		Intent:         patternIntent,
		Kind:           models.PatternKind(patternKind),
		EnabledOnly:    patternEnabled,
		SortByPriority: true,
	})
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(patterns)
	}
	ui.Info("Version %s (%s)", output.Cyan(v.Name), output.StatusColor(string(v.Status)))
	if len(patterns) == 0 {
		ui.Info("No patterns")
		return nil
	}

	table := ui.Table([]string{"ID", "Prio", "Handler", "Intent", "Kind", "Mode", "Expression"})
	for _, p := range patterns {
		mode := "advanced"
		if !p.HandWritten() {
			mode = "simple"
		}
		expr := p.Expression
		if !p.Enabled {
			expr = output.Yellow("(disabled) ") + expr
		}
		_ = table.Append([]string{
			p.ID, fmt.Sprint(p.Priority), p.Handler, p.Intent, string(p.Kind), mode, output.Truncate(expr, 60),
		})
	}
	return table.Render()
}

func patternShowRun(id string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	p, err := svc.versions.GetPattern(context.Background(), id)
	if err != nil {
		return err
	}
	assessment := compiler.AssessMode(p.Expression)
	if ui.JSON {
		return ui.PrintJSON(map[string]any{"pattern": p, "mode": assessment})
	}

	fmt.Fprintf(ui.Out, "%s/%s  [%s]\n", output.Cyan(p.Handler), p.Intent, p.Kind)
	fmt.Fprintf(ui.Out, "  ID:          %s\n", p.ID)
	fmt.Fprintf(ui.Out, "  Version:     %s\n", p.VersionID)
	fmt.Fprintf(ui.Out, "  Priority:    %d\n", p.Priority)
	fmt.Fprintf(ui.Out, "  Enabled:     %t\n", p.Enabled)
	fmt.Fprintf(ui.Out, "  Expression:  %s\n", p.Expression)
	if len(p.Rules) > 0 {
		fmt.Fprintf(ui.Out, "  Rules:\n")
		for _, line := range strings.Split(strings.TrimRight(compiler.FormatRules(p.Rules), "\n"), "\n") {
			fmt.Fprintf(ui.Out, "    %s\n", line)
		}
	}
	if len(p.Phrases) > 0 {
		fmt.Fprintf(ui.Out, "  Phrases:     %s\n", strings.Join(p.Phrases, " | "))
	}
	if p.Scope != "" {
		fmt.Fprintf(ui.Out, "  Scope:       %s\n", p.Scope)
	}
	if p.Rationale != "" {
		fmt.Fprintf(ui.Out, "  Rationale:   %s\n", p.Rationale)
	}
	mode := "advanced"
	if assessment.Simple {
		mode = "simple"
	}
	fmt.Fprintf(ui.Out, "  Mode:        %s (confidence %.2f)\n", mode, assessment.Confidence)
	for _, r := range assessment.Reasons {
		ui.VerboseLog("%s", r)
	}
	return nil
}

func patternAddRun() error {
	rules, err := patternRulesFromFlags()
	if err != nil {
		return err
	}
	sources := 0
	for _, set := range []bool{patternExpr != "", len(rules) > 0, len(patternPhrases) > 0} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return fmt.Errorf("exactly one of --expr, --rule/--rules-file, or --phrase is required")
	}

	svc, err := getServices()
	if err != nil {
		return err
	}
	ctx := context.Background()
	p := &models.Pattern{
		VersionID:  patternVersion,
		Handler:    patternHandler,
		Intent:     patternIntent,
		Kind:       models.PatternKind(patternKind),
		Expression: patternExpr,
		Priority:   patternPriority,
		Enabled:    !patternDisabled,
		Scope:      patternScope,
		Rationale:  patternRationale,
	}

	switch {
	case len(rules) > 0:
		err = svc.versions.AddPatternFromRules(ctx, p, rules)
	case len(patternPhrases) > 0:
		var res compiler.PhraseResult
		res, err = svc.versions.AddPatternFromPhrases(ctx, p, patternPhrases)
		if err == nil && !ui.JSON {
			ui.Info("Proposed from %d phrase(s), confidence %s: %s",
				len(res.Phrases), output.ConfidenceColor(res.Confidence, 0.7), res.Explanation)
		}
	default:
		err = svc.versions.AddPattern(ctx, p)
	}
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(p)
	}
	ui.Success("Added pattern %s: %s", p.ID, p.Expression)
	return nil
}

func patternUpdateRun(cmd *cobra.Command, id string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	ctx := context.Background()
	p, err := svc.versions.GetPattern(ctx, id)
	if err != nil {
		return err
	}

	f := cmd.Flags()
	if f.Changed("handler") {
		p.Handler = patternHandler
	}
	if f.Changed("intent") {
		p.Intent = patternIntent
	}
	if f.Changed("kind") {
		p.Kind = models.PatternKind(patternKind)
	}
	if f.Changed("priority") {
		p.Priority = patternPriority
	}
	if f.Changed("disabled") {
		p.Enabled = !patternDisabled
	}
	if f.Changed("scope") {
		p.Scope = patternScope
	}
	if f.Changed("rationale") {
		p.Rationale = patternRationale
	}
	// A new source replaces the old one.
	if f.Changed("expr") {
		p.Expression, p.Rules, p.Phrases = patternExpr, nil, nil
	}
	if f.Changed("rule") || f.Changed("rules-file") {
		rules, err := patternRulesFromFlags()
		if err != nil {
			return err
		}
		p.Rules, p.Phrases = rules, nil
	}
	if f.Changed("phrase") {
		p.Phrases, p.Rules = patternPhrases, nil
	}

	if err := svc.versions.UpdatePattern(ctx, p); err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(p)
	}
	ui.Success("Updated pattern %s", p.ID)
	return nil
}

func patternDeleteRun(id string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	if err := svc.versions.DeletePattern(context.Background(), id); err != nil {
		return err
	}
	ui.Success("Deleted pattern %s", id)
	return nil
}

func patternRegenerateRun(id string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	p, err := svc.versions.RegeneratePattern(context.Background(), id)
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(p)
	}
	ui.Success("Regenerated pattern %s: %s", p.ID, p.Expression)
	return nil
}

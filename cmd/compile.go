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
)

var (
	compileFile   string
	compileIntent string
	compileKind   string
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile rules or phrases into expressions without storing anything",
}

var compileRulesCmd = &cobra.Command{
	Use:   "rules [rule...]",
	Short: "Compile simple-mode rules, e.g. 'starts_with \"how many\"'",
	RunE: func(cmd *cobra.Command, args []string) error {
		return compileRulesRun(args)
	},
}

var compilePhrasesCmd = &cobra.Command{
	Use:   "phrases <phrase...>",
	Short: "Propose an expression from example phrases",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return compilePhrasesRun(args)
	},
}

var compileModeCmd = &cobra.Command{
	Use:   "mode <expression>",
	Short: "Report whether an expression is editable in simple mode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return compileModeRun(args[0])
	},
}

func init() {
	compileRulesCmd.Flags().StringVarP(&compileFile, "file", "f", "", "Read rules from a file")
	compilePhrasesCmd.Flags().StringVar(&compileIntent, "intent", "", "Intent the phrases express")
	compilePhrasesCmd.Flags().StringVar(&compileKind, "kind", string(models.PatternKindPositive), "Pattern kind")

	compileCmd.AddCommand(compileRulesCmd, compilePhrasesCmd, compileModeCmd)
	rootCmd.AddCommand(compileCmd)
}

func compileRulesRun(args []string) error {
	src := strings.Join(args, "\n")
	if compileFile != "" {
		data, err := os.ReadFile(compileFile)
		if err != nil {
			return fmt.Errorf("read rules file: %w", err)
		}
		src += "\n" + string(data)
	}
	rules, err := compiler.ParseRules(src)
	if err != nil {
		return err
	}
	expr, err := compiler.CompileRules(rules)
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(map[string]any{"expression": expr, "rules": rules})
	}
	ui.VerboseLog("rules:\n%s", compiler.FormatRules(rules))
	fmt.Fprintln(ui.Out, expr)
	return nil
}

func compilePhrasesRun(phrases []string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	res, err := svc.versions.SuggestPhrases(context.Background(), phrases, compileIntent, compileKind)
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(res)
	}
	for _, e := range res.Errors {
		ui.Warning("%s", e)
	}
	if res.Expression == "" {
		return res.Err()
	}
	fmt.Fprintln(ui.Out, res.Expression)
	ui.Info("confidence %s: %s", output.ConfidenceColor(res.Confidence, 0.7), res.Explanation)
	return nil
}

func compileModeRun(expr string) error {
	a := compiler.AssessMode(expr)
	if ui.JSON {
		return ui.PrintJSON(a)
	}
	if a.Simple {
		ui.Success("simple (confidence %.2f)", a.Confidence)
		fmt.Fprint(ui.Out, compiler.FormatRules(a.Rules))
	} else {
		ui.Info("advanced (confidence %.2f)", a.Confidence)
	}
	for _, r := range a.Reasons {
		fmt.Fprintf(ui.Out, "  - %s\n", r)
	}
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/joescharf/intentcfg/internal/harness"
	"github.com/joescharf/intentcfg/internal/output"
)

var (
	classifyVersion     string
	classifyConcurrency int
	classifyFailedOnly  bool
)

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Test-classify messages against a version",
}

var classifyTestCmd = &cobra.Command{
	Use:   "test <message...>",
	Short: "Classify one message and show how the decision was reached",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return classifyTestRun(strings.Join(args, " "))
	},
}

var classifySuiteCmd = &cobra.Command{
	Use:   "suite <file>",
	Short: "Run a YAML file of expected routing outcomes",
	Long: `Run a suite of cases against one version. The file is a YAML list:

  - name: count students
    message: how many students are enrolled?
    expect_handler: students
    expect_intent: count_students

The command exits non-zero when any case fails.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return classifySuiteRun(args[0])
	},
}

func init() {
	for _, c := range []*cobra.Command{classifyTestCmd, classifySuiteCmd} {
		c.Flags().StringVar(&classifyVersion, "version-id", "", "Version id (default: active version)")
	}
	classifySuiteCmd.Flags().IntVar(&classifyConcurrency, "concurrency", 4, "Cases classified in parallel")
	classifySuiteCmd.Flags().BoolVar(&classifyFailedOnly, "failed", false, "Only show failing cases")

	classifyCmd.AddCommand(classifyTestCmd, classifySuiteCmd)
	rootCmd.AddCommand(classifyCmd)
}

func classifyTestRun(message string) error {
	svc, err := getServices()
	if err != nil {
		return err
	}
	res, err := svc.harness.TestClassify(context.Background(), message, classifyVersion)
	if err != nil {
		return err
	}
	if ui.JSON {
		return ui.PrintJSON(res)
	}
	printDecision(res)
	fmt.Fprintln(ui.Out)
	ui.Steps(res.ProcessingSteps)
	return nil
}

func printDecision(res *harness.Result) {
	d := res.FinalDecision
	target := "(unhandled)"
	if d.Handler != "" {
		target = d.Handler + "/" + d.Intent
	}
	var source string
	switch d.Source {
	case harness.SourceRouter:
		source = output.Green(string(d.Source))
	case harness.SourceClassifier:
		source = output.Cyan(string(d.Source))
	default:
		source = output.Yellow(string(d.Source))
	}
	fmt.Fprintf(ui.Out, "%s  %s", output.Cyan(target), source)
	if d.Source == harness.SourceClassifier {
		fmt.Fprintf(ui.Out, "  confidence %s", output.ConfidenceColor(d.Confidence, viper.GetFloat64("classifier.threshold")))
	}
	fmt.Fprintln(ui.Out)
	fmt.Fprintf(ui.Out, "  %s\n", d.Reason)
}

func classifySuiteRun(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read suite: %w", err)
	}
	var cases []harness.Case
	if err := yaml.Unmarshal(data, &cases); err != nil {
		return fmt.Errorf("parse suite %s: %w", path, err)
	}
	if len(cases) == 0 {
		return fmt.Errorf("suite %s has no cases", path)
	}

	svc, err := getServices()
	if err != nil {
		return err
	}
	report, err := svc.harness.RunSuite(context.Background(), cases, classifyVersion, classifyConcurrency)
	if err != nil {
		return err
	}
	if ui.JSON {
		if err := ui.PrintJSON(report); err != nil {
			return err
		}
	} else {
		printSuiteReport(report)
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d case(s) failed", report.Failed, len(report.Results))
	}
	return nil
}

func printSuiteReport(report *harness.SuiteReport) {
	table := ui.Table([]string{"", "Case", "Expected", "Got", "Source"})
	for _, r := range report.Results {
		if classifyFailedOnly && r.Passed {
			continue
		}
		mark := output.Green("PASS")
		if !r.Passed {
			mark = output.Red("FAIL")
		}
		name := r.Case.Name
		if name == "" {
			name = output.Truncate(r.Case.Message, 40)
		}
		expected := r.Case.ExpectHandler
		if r.Case.ExpectIntent != "" {
			expected += "/" + r.Case.ExpectIntent
		}
		got, source := "", ""
		if r.Result != nil {
			got = r.Result.FinalDecision.Handler + "/" + r.Result.FinalDecision.Intent
			source = string(r.Result.FinalDecision.Source)
		}
		_ = table.Append([]string{mark, name, expected, got, source})
	}
	_ = table.Render()
	fmt.Fprintln(ui.Out)
	summary := fmt.Sprintf("%d passed, %d failed in %s (run %s, version %s)",
		report.Passed, report.Failed, report.Duration.Round(1e6), report.RunID, report.VersionID)
	if report.Failed > 0 {
		ui.Error("%s", summary)
	} else {
		ui.Success("%s", summary)
	}
}

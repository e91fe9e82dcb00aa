package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/intentcfg/internal/harness"
	"github.com/joescharf/intentcfg/internal/health"
	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/store"
)

func resetPatternFlags() {
	patternVersion, patternHandler, patternIntent = "", "", ""
	patternKind = string(models.PatternKindPositive)
	patternExpr, patternRulesFile, patternScope, patternRationale = "", "", "", ""
	patternRules, patternPhrases = nil, nil
	patternPriority = 0
	patternDisabled, patternEnabled = false, false
}

func TestVersionAndPatternCommands(t *testing.T) {
	testEnv(t)
	resetPatternFlags()
	t.Cleanup(resetPatternFlags)
	ctx := context.Background()

	versionNotes, versionCopyFrom = "first", ""
	require.NoError(t, versionCreateRun("v1"))

	svc, err := getServices()
	require.NoError(t, err)
	versions, err := svc.versions.ListVersions(ctx, "")
	require.NoError(t, err)
	require.Len(t, versions, 1)
	v := versions[0]

	patternVersion, patternHandler, patternIntent = v.ID, "students", "count_students"
	patternRules = []string{`starts_with "how many"`, `contains "students"`}
	patternPriority = 5
	require.NoError(t, patternAddRun())

	resetPatternFlags()
	patternVersion, patternHandler, patternIntent = v.ID, "greeter", "hello"
	patternPhrases = []string{"hello there", "hello friend"}
	require.NoError(t, patternAddRun())

	// Two sources at once are rejected before touching the store.
	resetPatternFlags()
	patternVersion, patternHandler, patternIntent = v.ID, "x", "y"
	patternExpr = "abc"
	patternPhrases = []string{"abc"}
	assert.Error(t, patternAddRun())

	patterns, err := svc.versions.ListPatterns(ctx, store.PatternListFilter{VersionID: v.ID, SortByPriority: true})
	require.NoError(t, err)
	require.Len(t, patterns, 2)
	assert.Equal(t, "students", patterns[0].Handler)

	require.NoError(t, versionPromoteRun(v.ID))

	resetPatternFlags()
	require.NoError(t, patternListRun())
	assert.Contains(t, ui.Out.(*bytes.Buffer).String(), "count_students")

	classifyVersion = ""
	jsonOut = true
	ui.JSON = true
	ui.Out.(*bytes.Buffer).Reset()
	require.NoError(t, classifyTestRun("How many students are there?"))
	var res harness.Result
	require.NoError(t, json.Unmarshal(ui.Out.(*bytes.Buffer).Bytes(), &res))
	assert.Equal(t, harness.SourceRouter, res.FinalDecision.Source)
	assert.Equal(t, "students", res.FinalDecision.Handler)
}

func TestClassifySuiteCommand(t *testing.T) {
	dir := testEnv(t)
	resetPatternFlags()
	t.Cleanup(resetPatternFlags)
	ctx := context.Background()

	svc, err := getServices()
	require.NoError(t, err)
	v, err := svc.versions.CreateVersion(ctx, "v1", "", "")
	require.NoError(t, err)
	require.NoError(t, svc.versions.AddPattern(ctx, &models.Pattern{
		VersionID: v.ID, Handler: "greeter", Intent: "hello", Kind: models.PatternKindPositive,
		Expression: `\bhello\b`, Enabled: true,
	}))

	suite := filepath.Join(dir, "suite.yaml")
	require.NoError(t, os.WriteFile(suite, []byte(`
- name: greeting
  message: hello world
  expect_handler: greeter
  expect_intent: hello
`), 0o644))

	classifyVersion = v.ID
	t.Cleanup(func() { classifyVersion = "" })
	require.NoError(t, classifySuiteRun(suite))

	require.NoError(t, os.WriteFile(suite, []byte(`
- message: goodbye
  expect_handler: greeter
`), 0o644))
	err = classifySuiteRun(suite)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 case(s) failed")
}

func TestSuggestionAndActionCommands(t *testing.T) {
	testEnv(t)
	ctx := context.Background()

	sugType, sugPriority = string(models.SuggestionTypePattern), string(models.PriorityHigh)
	require.NoError(t, suggestionCreateRun("Enrolment questions go to general"))

	svc, err := getServices()
	require.NoError(t, err)
	list, err := svc.workflow().List(ctx, store.SuggestionListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	sug := list[0]
	assert.Equal(t, "tester", sug.ReportedBy)

	sugDecision, sugAnalysis = "approved", ""
	err = suggestionReviewRun(sug.ID)
	require.Error(t, err, "approval without analysis")

	sugAnalysis = "real gap"
	sugItems = []string{"add enrolment pattern"}
	t.Cleanup(func() { sugItems = nil })
	require.NoError(t, suggestionReviewRun(sug.ID))

	items, err := svc.tracker().List(ctx, store.ActionItemListFilter{SuggestionID: sug.ID})
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.Error(t, actionStatusRun(actionStatusCmd, items[0].ID, "completed"), "notes required")

	require.NoError(t, actionStatusCmd.Flags().Set("notes", "pattern added"))
	t.Cleanup(func() { actionStatusCmd.Flags().Lookup("notes").Changed = false; actionNotes = "" })
	require.NoError(t, actionStatusRun(actionStatusCmd, items[0].ID, "completed"))

	sugCompletionNotes = "shipped"
	require.NoError(t, suggestionAddressedCmd.RunE(suggestionAddressedCmd, []string{sug.ID}))

	got, err := svc.workflow().Get(ctx, sug.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SuggestionStatusImplemented, got.Status)
	assert.Equal(t, "shipped", got.CompletionNotes)
}

func TestParseVars(t *testing.T) {
	vars, err := parseVars([]string{"topic=maths", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"topic": "maths", "empty": ""}, vars)

	_, err = parseVars([]string{"novalue"})
	assert.Error(t, err)
}

func TestActorResolution(t *testing.T) {
	testEnv(t)

	assert.Equal(t, "tester", actor())

	actorArg = ""
	t.Setenv("INTENTCFG_ACTOR", "")
	t.Setenv("USER", "")
	assert.Equal(t, "cli", actor())
}

func TestVersionHealthCommand(t *testing.T) {
	testEnv(t)
	ctx := context.Background()

	svc, err := getServices()
	require.NoError(t, err)
	v, err := svc.versions.CreateVersion(ctx, "v1", "", "")
	require.NoError(t, err)
	require.NoError(t, svc.versions.AddPattern(ctx, &models.Pattern{
		VersionID: v.ID, Handler: "greeter", Intent: "hello", Kind: models.PatternKindPositive,
		Expression: `\bhello\b`, Enabled: true,
	}))

	require.NoError(t, versionHealthRun(v.ID))
	out := ui.Out.(*bytes.Buffer).String()
	assert.Contains(t, out, "Template coverage")
	assert.Contains(t, ui.ErrOut.(*bytes.Buffer).String(), "handler greeter has no enabled system template")

	ui.JSON = true
	t.Cleanup(func() { ui.JSON = false })
	ui.Out.(*bytes.Buffer).Reset()
	require.NoError(t, versionHealthRun(v.ID))
	var h health.HealthScore
	require.NoError(t, json.Unmarshal(ui.Out.(*bytes.Buffer).Bytes(), &h))
	assert.Equal(t, v.ID, h.VersionID)
	assert.Equal(t, 0, h.TemplateCoverage)
	assert.Equal(t, 0, h.Maintainability)

	// No active version and no id.
	assert.Error(t, versionHealthRun(""))
}

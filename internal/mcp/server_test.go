package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/intentcfg/internal/actions"
	"github.com/joescharf/intentcfg/internal/configver"
	"github.com/joescharf/intentcfg/internal/harness"
	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/router"
	"github.com/joescharf/intentcfg/internal/store"
	"github.com/joescharf/intentcfg/internal/suggestions"
)

func newTestServer(t *testing.T) (*Server, *configver.Service, *suggestions.Dispatcher) {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	svc := configver.NewService(st)
	tracker := actions.NewTracker(st, nil)
	d := suggestions.NewDispatcher(suggestions.NewWorkflow(st, tracker, nil), tracker)
	h := harness.New(harness.Config{Versions: svc, Router: router.New(svc)})
	return NewServer(svc, d, h, "mcp-agent", "test"), svc, d
}

func callToolReq(name string, args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// resultText extracts the concatenated text from a CallToolResult.
func resultText(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	var b strings.Builder
	for _, c := range result.Content {
		if tc, ok := c.(mcpgo.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return b.String()
}

func resultJSON(t *testing.T, result *mcpgo.CallToolResult, target any) {
	t.Helper()
	text := resultText(t, result)
	require.NoError(t, json.Unmarshal([]byte(text), target), "failed to parse result JSON: %s", text)
}

func TestNewServer(t *testing.T) {
	srv, _, _ := newTestServer(t)
	require.NotNil(t, srv.MCPServer())
}

func TestHandleListVersions(t *testing.T) {
	srv, svc, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleListVersions(ctx, callToolReq("intentcfg_list_versions", nil))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "[]", resultText(t, result))

	_, err = svc.CreateVersion(ctx, "v1", "", "")
	require.NoError(t, err)
	v2, err := svc.CreateVersion(ctx, "v2", "", "")
	require.NoError(t, err)
	_, err = svc.Promote(ctx, v2.ID)
	require.NoError(t, err)

	result, err = srv.handleListVersions(ctx, callToolReq("intentcfg_list_versions", map[string]any{"status": "active"}))
	require.NoError(t, err)
	var versions []models.ConfigVersion
	resultJSON(t, result, &versions)
	require.Len(t, versions, 1)
	assert.Equal(t, "v2", versions[0].Name)
}

func TestHandleListPatterns_DefaultsToActive(t *testing.T) {
	srv, svc, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleListPatterns(ctx, callToolReq("intentcfg_list_patterns", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError, "no active version yet")

	v, err := svc.CreateVersion(ctx, "v1", "", "")
	require.NoError(t, err)
	for _, prio := range []int{1, 10} {
		require.NoError(t, svc.AddPattern(ctx, &models.Pattern{
			VersionID: v.ID, Handler: "h", Intent: "i", Kind: models.PatternKindPositive,
			Expression: "hello", Priority: prio, Enabled: true,
		}))
	}
	_, err = svc.Promote(ctx, v.ID)
	require.NoError(t, err)

	result, err = srv.handleListPatterns(ctx, callToolReq("intentcfg_list_patterns", nil))
	require.NoError(t, err)
	var patterns []models.Pattern
	resultJSON(t, result, &patterns)
	require.Len(t, patterns, 2)
	assert.Equal(t, 10, patterns[0].Priority)
}

func TestHandleCompileRules(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleCompileRules(ctx, callToolReq("intentcfg_compile_rules", map[string]any{
		"rules": "starts_with \"how many\"\noptional contains \"students\"",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	var out struct {
		Expression string `json:"expression"`
	}
	resultJSON(t, result, &out)
	assert.NotEmpty(t, out.Expression)

	result, err = srv.handleCompileRules(ctx, callToolReq("intentcfg_compile_rules", map[string]any{"rules": "bogus \"x\""}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleCompileRules(ctx, callToolReq("intentcfg_compile_rules", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleCompilePhrases(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleCompilePhrases(ctx, callToolReq("intentcfg_compile_phrases", map[string]any{
		"phrases": []any{"how many students", "number of students"},
		"intent":  "count_students",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	assert.Contains(t, resultText(t, result), `"expression"`)

	result, err = srv.handleCompilePhrases(ctx, callToolReq("intentcfg_compile_phrases", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestSuggestionFlow(t *testing.T) {
	srv, _, d := newTestServer(t)
	ctx := context.Background()

	result, err := srv.handleCreateSuggestion(ctx, callToolReq("intentcfg_create_suggestion", map[string]any{
		"title":           "Students routed to general",
		"suggestion_type": "pattern",
		"priority":        "high",
		"target_handler":  "students",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	var sug models.Suggestion
	resultJSON(t, result, &sug)
	assert.Equal(t, "mcp-agent", sug.ReportedBy)
	assert.Equal(t, models.SuggestionStatusPending, sug.Status)

	// Approval needs analysis.
	result, err = srv.handleReviewSuggestion(ctx, callToolReq("intentcfg_review_suggestion", map[string]any{
		"suggestion_id": sug.ID, "decision": "approved",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.handleReviewSuggestion(ctx, callToolReq("intentcfg_review_suggestion", map[string]any{
		"suggestion_id": sug.ID, "decision": "approved", "admin_analysis": "valid gap", "actor": "lead",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	resultJSON(t, result, &sug)
	assert.Equal(t, models.SuggestionStatusApproved, sug.Status)
	assert.Equal(t, "lead", sug.ReviewedBy)

	res, err := d.Apply(ctx, suggestions.CreateActionItem{
		SuggestionID: sug.ID,
		Draft:        actions.Draft{Title: "add pattern"},
		Actor:        "lead",
	})
	require.NoError(t, err)
	itemID := res.ActionItems[0].ID

	result, err = srv.handleSetActionItemStatus(ctx, callToolReq("intentcfg_set_action_item_status", map[string]any{
		"item_id": itemID, "status": "completed",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError, "completion notes are required")

	result, err = srv.handleSetActionItemStatus(ctx, callToolReq("intentcfg_set_action_item_status", map[string]any{
		"item_id": itemID, "status": "completed", "completion_notes": "added",
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	var item models.ActionItem
	resultJSON(t, result, &item)
	assert.Equal(t, models.ActionItemStatusCompleted, item.Status)

	result, err = srv.handleListSuggestions(ctx, callToolReq("intentcfg_list_suggestions", map[string]any{"status": "approved"}))
	require.NoError(t, err)
	var list []models.Suggestion
	resultJSON(t, result, &list)
	assert.Len(t, list, 1)
}

func TestHandleTestClassify(t *testing.T) {
	srv, svc, _ := newTestServer(t)
	ctx := context.Background()

	v, err := svc.CreateVersion(ctx, "v1", "", "")
	require.NoError(t, err)
	require.NoError(t, svc.AddPattern(ctx, &models.Pattern{
		VersionID: v.ID, Handler: "greeter", Intent: "hello", Kind: models.PatternKindPositive,
		Expression: `\bhello\b`, Enabled: true,
	}))

	result, err := srv.handleTestClassify(ctx, callToolReq("intentcfg_test_classify", map[string]any{
		"message": "Hello there", "version_id": v.ID,
	}))
	require.NoError(t, err)
	require.False(t, result.IsError, resultText(t, result))
	var res harness.Result
	resultJSON(t, result, &res)
	assert.Equal(t, harness.SourceRouter, res.FinalDecision.Source)
	assert.Equal(t, "greeter", res.FinalDecision.Handler)

	result, err = srv.handleTestClassify(ctx, callToolReq("intentcfg_test_classify", nil))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

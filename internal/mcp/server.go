package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/intentcfg/internal/compiler"
	"github.com/joescharf/intentcfg/internal/configver"
	"github.com/joescharf/intentcfg/internal/harness"
	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/store"
	"github.com/joescharf/intentcfg/internal/suggestions"
)

// Server exposes configuration and review operations as MCP tools.
type Server struct {
	versions     *configver.Service
	commands     *suggestions.Dispatcher
	harness      *harness.Harness
	defaultActor string
	version      string
}

// NewServer creates the MCP server wrapper. defaultActor is recorded on
// writes when a tool call carries no actor argument.
func NewServer(versions *configver.Service, commands *suggestions.Dispatcher, h *harness.Harness, defaultActor, version string) *Server {
	if version == "" {
		version = "dev"
	}
	return &Server{
		versions:     versions,
		commands:     commands,
		harness:      h,
		defaultActor: defaultActor,
		version:      version,
	}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("intentcfg", s.version, server.WithToolCapabilities(true))

	srv.AddTool(s.listVersionsTool())
	srv.AddTool(s.listPatternsTool())
	srv.AddTool(s.compileRulesTool())
	srv.AddTool(s.compilePhrasesTool())
	srv.AddTool(s.listSuggestionsTool())
	srv.AddTool(s.createSuggestionTool())
	srv.AddTool(s.reviewSuggestionTool())
	srv.AddTool(s.setActionItemStatusTool())
	srv.AddTool(s.testClassifyTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) actor(request mcp.CallToolRequest) string {
	return request.GetString("actor", s.defaultActor)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// intentcfg_list_versions
func (s *Server) listVersionsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("intentcfg_list_versions",
		mcp.WithDescription("List configuration versions, oldest first. Each has id, name, status (candidate/active/archived), notes, pattern_count and template_count."),
		mcp.WithString("status", mcp.Description("Status filter: candidate, active, archived")),
	)
	return tool, s.handleListVersions
}

func (s *Server) handleListVersions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	versions, err := s.versions.ListVersions(ctx, models.VersionStatus(request.GetString("status", "")))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list versions: %v", err)), nil
	}
	if versions == nil {
		versions = []*models.ConfigVersion{}
	}
	return jsonResult(versions)
}

// intentcfg_list_patterns
func (s *Server) listPatternsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("intentcfg_list_patterns",
		mcp.WithDescription("List the patterns of a configuration version in routing order (highest priority first). Defaults to the active version."),
		mcp.WithString("version_id", mcp.Description("Version id (default: active version)")),
		mcp.WithString("handler", mcp.Description("Handler filter")),
		mcp.WithString("intent", mcp.Description("Intent filter")),
	)
	return tool, s.handleListPatterns
}

func (s *Server) handleListPatterns(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	v, err := s.harness.ResolveVersion(ctx, request.GetString("version_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	patterns, err := s.versions.ListPatterns(ctx, store.PatternListFilter{
		VersionID:      v.ID,
		Handler:        request.GetString("handler", ""),
		Intent:         request.GetString("intent", ""),
		SortByPriority: true,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list patterns: %v", err)), nil
	}
	if patterns == nil {
		patterns = []*models.Pattern{}
	}
	return jsonResult(patterns)
}

// intentcfg_compile_rules
func (s *Server) compileRulesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("intentcfg_compile_rules",
		mcp.WithDescription("Compile simple-mode rules into a matching expression. Rules are one per line or separated by `;`: `[optional] <match_type> "<value>"`, with match types exact, contains, starts_with, ends_with, any_of (comma-separated alternatives)."),
		mcp.WithString("rules", mcp.Required(), mcp.Description("Rule lines")),
	)
	return tool, s.handleCompileRules
}

func (s *Server) handleCompileRules(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	src, err := request.RequireString("rules")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: rules"), nil
	}
	rules, err := compiler.ParseRules(src)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	expr, err := compiler.CompileRules(rules)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{"expression": expr, "rules": rules})
}

// intentcfg_compile_phrases
func (s *Server) compilePhrasesTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("intentcfg_compile_phrases",
		mcp.WithDescription("Propose a matching expression from example phrases. Returns expression, confidence, explanation, and any errors. Nothing is stored."),
		mcp.WithArray("phrases", mcp.Required(), mcp.WithStringItems(), mcp.Description("Example user phrases")),
		mcp.WithString("intent", mcp.Description("Intent the phrases express")),
		mcp.WithString("kind", mcp.Description("Pattern kind: positive (default), negative, synonym")),
	)
	return tool, s.handleCompilePhrases
}

func (s *Server) handleCompilePhrases(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	phrases := request.GetStringSlice("phrases", nil)
	if len(phrases) == 0 {
		return mcp.NewToolResultError("missing required parameter: phrases"), nil
	}
	res, err := s.versions.SuggestPhrases(ctx, phrases,
		request.GetString("intent", ""),
		request.GetString("kind", string(models.PatternKindPositive)))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

// intentcfg_list_suggestions
func (s *Server) listSuggestionsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("intentcfg_list_suggestions",
		mcp.WithDescription("List improvement suggestions, most urgent first."),
		mcp.WithString("status", mcp.Description("Status filter: pending, needs_analysis, approved, rejected, implemented")),
		mcp.WithString("handler", mcp.Description("Target handler filter")),
	)
	return tool, s.handleListSuggestions
}

func (s *Server) handleListSuggestions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list, err := s.commands.Workflow().List(ctx, store.SuggestionListFilter{
		Status:  models.SuggestionStatus(request.GetString("status", "")),
		Handler: request.GetString("handler", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list suggestions: %v", err)), nil
	}
	if list == nil {
		list = []*models.Suggestion{}
	}
	return jsonResult(list)
}

// intentcfg_create_suggestion
func (s *Server) createSuggestionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("intentcfg_create_suggestion",
		mcp.WithDescription("Report an improvement suggestion. It starts pending review."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Short title")),
		mcp.WithString("suggestion_type", mcp.Required(), mcp.Description("pattern, template, intent_mapping, handler_improvement")),
		mcp.WithString("description", mcp.Description("What went wrong and what should change")),
		mcp.WithString("priority", mcp.Description("low, medium (default), high, critical")),
		mcp.WithString("target_handler", mcp.Description("Handler the suggestion concerns")),
		mcp.WithString("target_intent", mcp.Description("Intent the suggestion concerns")),
		mcp.WithString("proposed_pattern", mcp.Description("Proposed matching expression")),
		mcp.WithString("message_ref", mcp.Description("Reference to the triggering message")),
		mcp.WithString("actor", mcp.Description("Who is reporting")),
	)
	return tool, s.handleCreateSuggestion
}

func (s *Server) handleCreateSuggestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}
	typ, err := request.RequireString("suggestion_type")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: suggestion_type"), nil
	}
	res, err := s.commands.Apply(ctx, suggestions.CreateSuggestion{
		Input: suggestions.NewSuggestion{
			Title:           title,
			Type:            models.SuggestionType(typ),
			Description:     request.GetString("description", ""),
			Priority:        models.Priority(request.GetString("priority", "")),
			TargetHandler:   request.GetString("target_handler", ""),
			TargetIntent:    request.GetString("target_intent", ""),
			ProposedPattern: request.GetString("proposed_pattern", ""),
			MessageRef:      request.GetString("message_ref", ""),
		},
		Reporter: s.actor(request),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res.Suggestion)
}

// intentcfg_review_suggestion
func (s *Server) reviewSuggestionTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("intentcfg_review_suggestion",
		mcp.WithDescription("Record a review decision on a pending or needs_analysis suggestion. Approval requires admin_analysis."),
		mcp.WithString("suggestion_id", mcp.Required(), mcp.Description("Suggestion id")),
		mcp.WithString("decision", mcp.Required(), mcp.Description("approved, rejected, needs_analysis")),
		mcp.WithString("admin_analysis", mcp.Description("Reviewer analysis")),
		mcp.WithString("implementation_notes", mcp.Description("Notes for implementers")),
		mcp.WithString("actor", mcp.Description("Who is reviewing")),
	)
	return tool, s.handleReviewSuggestion
}

func (s *Server) handleReviewSuggestion(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("suggestion_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: suggestion_id"), nil
	}
	decision, err := request.RequireString("decision")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: decision"), nil
	}
	res, err := s.commands.Apply(ctx, suggestions.ReviewSuggestion{Input: suggestions.ReviewInput{
		SuggestionID:        id,
		Decision:            models.SuggestionStatus(decision),
		AdminAnalysis:       request.GetString("admin_analysis", ""),
		ImplementationNotes: request.GetString("implementation_notes", ""),
		Reviewer:            s.actor(request),
	}})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res.Suggestion)
}

// intentcfg_set_action_item_status
func (s *Server) setActionItemStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("intentcfg_set_action_item_status",
		mcp.WithDescription("Move an action item to a new status. Completing requires completion_notes."),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("Action item id")),
		mcp.WithString("status", mcp.Required(), mcp.Description("pending, in_progress, completed, cancelled")),
		mcp.WithString("completion_notes", mcp.Description("What was done")),
		mcp.WithString("actor", mcp.Description("Who is updating")),
	)
	return tool, s.handleSetActionItemStatus
}

func (s *Server) handleSetActionItemStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("item_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: item_id"), nil
	}
	status, err := request.RequireString("status")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: status"), nil
	}
	var notes *string
	if n, ok := request.GetArguments()["completion_notes"].(string); ok {
		notes = &n
	}
	res, err := s.commands.Apply(ctx, suggestions.SetActionItemStatus{
		ItemID:          id,
		Status:          models.ActionItemStatus(status),
		CompletionNotes: notes,
		Actor:           s.actor(request),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res.ActionItems[0])
}

// intentcfg_test_classify
func (s *Server) testClassifyTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("intentcfg_test_classify",
		mcp.WithDescription("Run a message through the router (and classifier fallback) against a version without side effects. Returns the full decision trace."),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message to classify")),
		mcp.WithString("version_id", mcp.Description("Version id (default: active version)")),
	)
	return tool, s.handleTestClassify
}

func (s *Server) handleTestClassify(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	msg, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: message"), nil
	}
	res, err := s.harness.TestClassify(ctx, msg, request.GetString("version_id", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res)
}

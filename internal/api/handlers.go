package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/joescharf/intentcfg/internal/actions"
	"github.com/joescharf/intentcfg/internal/compiler"
	"github.com/joescharf/intentcfg/internal/harness"
	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/store"
	"github.com/joescharf/intentcfg/internal/suggestions"
)

// Compiler

type compileRulesRequest struct {
	Rules []compiler.Rule `json:"rules"`
	// DSL is the line-oriented rule syntax, used when Rules is empty.
	DSL string `json:"dsl,omitempty"`
}

type compileRulesResponse struct {
	Expression string          `json:"expression"`
	Rules      []compiler.Rule `json:"rules"`
}

func (s *Server) compileRules(w http.ResponseWriter, r *http.Request) {
	var req compileRulesRequest
	if !decode(w, r, &req) {
		return
	}
	rules := req.Rules
	if len(rules) == 0 && strings.TrimSpace(req.DSL) != "" {
		parsed, err := compiler.ParseRules(req.DSL)
		if err != nil {
			s.writeErr(w, r, err)
			return
		}
		rules = parsed
	}
	expr, err := compiler.CompileRules(rules)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, compileRulesResponse{Expression: expr, Rules: rules})
}

type compilePhrasesRequest struct {
	Phrases []string `json:"phrases"`
	Intent  string   `json:"intent"`
	Kind    string   `json:"kind"`
}

// compilePhrases returns the phrase result as-is; a result carrying Errors is still 200.
func (s *Server) compilePhrases(w http.ResponseWriter, r *http.Request) {
	var req compilePhrasesRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Kind == "" {
		req.Kind = string(models.PatternKindPositive)
	}
	res, err := s.versions.SuggestPhrases(r.Context(), req.Phrases, req.Intent, req.Kind)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type expressionRequest struct {
	Expression string `json:"expression"`
}

func (s *Server) assessMode(w http.ResponseWriter, r *http.Request) {
	var req expressionRequest
	if !decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, compiler.AssessMode(req.Expression))
}

type parseRulesRequest struct {
	DSL string `json:"dsl"`
}

type parseRulesResponse struct {
	Rules     []compiler.Rule `json:"rules"`
	Canonical string          `json:"canonical"`
}

func (s *Server) parseRules(w http.ResponseWriter, r *http.Request) {
	var req parseRulesRequest
	if !decode(w, r, &req) {
		return
	}
	rules, err := compiler.ParseRules(req.DSL)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, parseRulesResponse{Rules: rules, Canonical: compiler.FormatRules(rules)})
}

// Suggestions

func (s *Server) listSuggestions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.commands.Workflow().List(r.Context(), store.SuggestionListFilter{
		Status:   models.SuggestionStatus(q.Get("status")),
		Type:     models.SuggestionType(q.Get("type")),
		Priority: models.Priority(q.Get("priority")),
		Handler:  q.Get("handler"),
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if list == nil {
		list = []*models.Suggestion{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) createSuggestion(w http.ResponseWriter, r *http.Request) {
	var in suggestions.NewSuggestion
	if !decode(w, r, &in) {
		return
	}
	res, err := s.commands.Apply(r.Context(), suggestions.CreateSuggestion{Input: in, Reporter: actorFrom(r)})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res.Suggestion)
}

func (s *Server) similarSuggestions(w http.ResponseWriter, r *http.Request) {
	matches, err := s.commands.Workflow().Similar(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if matches == nil {
		matches = []suggestions.Match{}
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) getSuggestion(w http.ResponseWriter, r *http.Request) {
	sug, err := s.commands.Workflow().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sug)
}

func (s *Server) reviewSuggestion(w http.ResponseWriter, r *http.Request) {
	var in suggestions.ReviewInput
	if !decode(w, r, &in) {
		return
	}
	in.SuggestionID = chi.URLParam(r, "id")
	in.Reviewer = actorFrom(r)
	res, err := s.commands.Apply(r.Context(), suggestions.ReviewSuggestion{Input: in})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) reopenSuggestion(w http.ResponseWriter, r *http.Request) {
	res, err := s.commands.Apply(r.Context(), suggestions.ReopenSuggestion{
		SuggestionID: chi.URLParam(r, "id"),
		Actor:        actorFrom(r),
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Suggestion)
}

type addressedRequest struct {
	CompletionNotes string `json:"completion_notes"`
}

func (s *Server) markAddressed(w http.ResponseWriter, r *http.Request) {
	var req addressedRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.commands.Apply(r.Context(), suggestions.MarkSuggestionAddressed{
		SuggestionID:    chi.URLParam(r, "id"),
		CompletionNotes: req.CompletionNotes,
		Actor:           actorFrom(r),
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.Suggestion)
}

// Action items

func (s *Server) listSuggestionActionItems(w http.ResponseWriter, r *http.Request) {
	s.writeActionItems(w, r, store.ActionItemListFilter{SuggestionID: chi.URLParam(r, "id")})
}

func (s *Server) listActionItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.writeActionItems(w, r, store.ActionItemListFilter{
		SuggestionID: q.Get("suggestion_id"),
		Status:       models.ActionItemStatus(q.Get("status")),
		AssignedTo:   q.Get("assigned_to"),
	})
}

func (s *Server) writeActionItems(w http.ResponseWriter, r *http.Request, f store.ActionItemListFilter) {
	items, err := s.commands.Tracker().List(r.Context(), f)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if items == nil {
		items = []*models.ActionItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) createActionItem(w http.ResponseWriter, r *http.Request) {
	var d actions.Draft
	if !decode(w, r, &d) {
		return
	}
	res, err := s.commands.Apply(r.Context(), suggestions.CreateActionItem{
		SuggestionID: chi.URLParam(r, "id"),
		Draft:        d,
		Actor:        actorFrom(r),
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res.ActionItems[0])
}

func (s *Server) getActionItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.commands.Tracker().Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

type statusRequest struct {
	Status          models.ActionItemStatus `json:"status"`
	CompletionNotes *string                 `json:"completion_notes,omitempty"`
}

func (s *Server) setActionItemStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.commands.Apply(r.Context(), suggestions.SetActionItemStatus{
		ItemID:          chi.URLParam(r, "id"),
		Status:          req.Status,
		CompletionNotes: req.CompletionNotes,
		Actor:           actorFrom(r),
	})
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res.ActionItems[0])
}

// Classification

type classifyRequest struct {
	Message   string `json:"message"`
	VersionID string `json:"version_id,omitempty"`
}

func (s *Server) testClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := s.harness.TestClassify(r.Context(), req.Message, req.VersionID)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type suiteRequest struct {
	VersionID   string         `json:"version_id,omitempty"`
	Concurrency int            `json:"concurrency,omitempty"`
	Cases       []harness.Case `json:"cases"`
}

func (s *Server) runSuite(w http.ResponseWriter, r *http.Request) {
	var req suiteRequest
	if !decode(w, r, &req) {
		return
	}
	report, err := s.harness.RunSuite(r.Context(), req.Cases, req.VersionID, req.Concurrency)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

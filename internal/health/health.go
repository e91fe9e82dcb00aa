// Package health scores how maintainable and complete a configuration
// version is before it is promoted.
package health

import (
	"context"
	"fmt"
	"regexp"
	"sort"

	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/store"
)

// VersionSource reads a version and its contents.
type VersionSource interface {
	GetVersion(ctx context.Context, id string) (*models.ConfigVersion, error)
	ListPatterns(ctx context.Context, filter store.PatternListFilter) ([]*models.Pattern, error)
	ListTemplates(ctx context.Context, filter store.TemplateListFilter) ([]*models.Template, error)
}

// SuggestionLister lists suggestions.
type SuggestionLister interface {
	List(ctx context.Context, filter store.SuggestionListFilter) ([]*models.Suggestion, error)
}

// HealthScore is the computed health of a version.
type HealthScore struct {
	VersionID          string   `json:"version_id"`
	Total              int      `json:"total"`
	ExpressionValidity int      `json:"expression_validity"` // 0-25
	TemplateCoverage   int      `json:"template_coverage"`   // 0-20
	Ambiguity          int      `json:"ambiguity"`           // 0-20
	Maintainability    int      `json:"maintainability"`     // 0-15
	SuggestionBacklog  int      `json:"suggestion_backlog"`  // 0-20
	Findings           []string `json:"findings,omitempty"`
}

// Scorer computes health scores for versions.
type Scorer struct {
	versions    VersionSource
	suggestions SuggestionLister
}

// NewScorer returns a Scorer. suggestions may be nil, which scores the backlog as empty.
func NewScorer(versions VersionSource, suggestions SuggestionLister) *Scorer {
	return &Scorer{versions: versions, suggestions: suggestions}
}

// Assess loads a version and scores it.
func (s *Scorer) Assess(ctx context.Context, versionID string) (*HealthScore, error) {
	v, err := s.versions.GetVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	patterns, err := s.versions.ListPatterns(ctx, store.PatternListFilter{VersionID: v.ID})
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	templates, err := s.versions.ListTemplates(ctx, store.TemplateListFilter{VersionID: v.ID})
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	var open []*models.Suggestion
	if s.suggestions != nil {
		for _, st := range []models.SuggestionStatus{models.SuggestionStatusPending, models.SuggestionStatusNeedsAnalysis} {
			list, err := s.suggestions.List(ctx, store.SuggestionListFilter{Status: st})
			if err != nil {
				return nil, fmt.Errorf("list suggestions: %w", err)
			}
			open = append(open, list...)
		}
	}
	h := Score(patterns, templates, open)
	h.VersionID = v.ID
	return h, nil
}

// Score computes a health score (0-100) from a version's contents and the
// open suggestions.
func Score(patterns []*models.Pattern, templates []*models.Template, open []*models.Suggestion) *HealthScore {
	h := &HealthScore{}
	var enabled []*models.Pattern
	for _, p := range patterns {
		if p.Enabled {
			enabled = append(enabled, p)
		}
	}

	// Expression validity (25 pts) - every enabled pattern must compile
	invalid := 0
	for _, p := range enabled {
		if _, err := regexp.Compile("(?i)" + p.Expression); err != nil {
			invalid++
			h.Findings = append(h.Findings, fmt.Sprintf("pattern %s does not compile and will be skipped", p.ID))
		}
	}
	h.ExpressionValidity = scoreRatio(len(enabled)-invalid, len(enabled), 25)

	// Template coverage (20 pts) - routed handlers should have a system template
	handlers := routedHandlers(enabled)
	covered := 0
	for _, handler := range handlers {
		if hasSystemTemplate(templates, handler) {
			covered++
		} else {
			h.Findings = append(h.Findings, fmt.Sprintf("handler %s has no enabled system template", handler))
		}
	}
	h.TemplateCoverage = scoreRatio(covered, len(handlers), 20)

	// Ambiguity (20 pts) - one expression routing to several targets
	conflicts := ambiguousExpressions(enabled)
	for _, expr := range conflicts {
		h.Findings = append(h.Findings, fmt.Sprintf("expression %q routes to more than one handler/intent", expr))
	}
	h.Ambiguity = scorePenalty(len(conflicts), 20)

	// Maintainability (15 pts) - share of patterns editable as rules or phrases
	generated := 0
	for _, p := range patterns {
		if !p.HandWritten() {
			generated++
		}
	}
	h.Maintainability = scoreRatio(generated, len(patterns), 15)

	// Suggestion backlog (20 pts) - unreviewed suggestions, urgent ones weigh more
	h.SuggestionBacklog = scoreBacklog(open, 20)
	if n := len(open); n > 0 {
		h.Findings = append(h.Findings, fmt.Sprintf("%d suggestion(s) awaiting review", n))
	}

	if len(enabled) == 0 {
		h.Findings = append(h.Findings, "version has no enabled patterns")
	}

	h.Total = h.ExpressionValidity + h.TemplateCoverage + h.Ambiguity + h.Maintainability + h.SuggestionBacklog
	return h
}

// scoreRatio awards maxPoints*good/total; an empty set scores full points.
func scoreRatio(good, total, maxPoints int) int {
	if total == 0 {
		return maxPoints
	}
	return maxPoints * good / total
}

// scorePenalty removes a quarter of maxPoints per problem.
func scorePenalty(problems, maxPoints int) int {
	switch {
	case problems == 0:
		return maxPoints
	case problems == 1:
		return int(float64(maxPoints) * 0.75)
	case problems == 2:
		return int(float64(maxPoints) * 0.5)
	case problems == 3:
		return int(float64(maxPoints) * 0.25)
	default:
		return 0
	}
}

// scoreBacklog penalizes open suggestions; high and critical count double.
func scoreBacklog(open []*models.Suggestion, maxPoints int) int {
	weight := 0
	for _, s := range open {
		switch s.Priority {
		case models.PriorityHigh, models.PriorityCritical:
			weight += 2
		default:
			weight++
		}
	}
	switch {
	case weight == 0:
		return maxPoints
	case weight <= 2:
		return int(float64(maxPoints) * 0.8)
	case weight <= 5:
		return int(float64(maxPoints) * 0.6)
	case weight <= 10:
		return int(float64(maxPoints) * 0.4)
	default:
		return int(float64(maxPoints) * 0.2)
	}
}

func routedHandlers(patterns []*models.Pattern) []string {
	seen := map[string]bool{}
	var out []string
	for _, p := range patterns {
		if p.Kind == models.PatternKindNegative || seen[p.Handler] {
			continue
		}
		seen[p.Handler] = true
		out = append(out, p.Handler)
	}
	sort.Strings(out)
	return out
}

func hasSystemTemplate(templates []*models.Template, handler string) bool {
	for _, t := range templates {
		if t.Enabled && t.Handler == handler && t.Type == models.TemplateTypeSystem {
			return true
		}
	}
	return false
}

// ambiguousExpressions returns positive expressions shared by different targets.
func ambiguousExpressions(patterns []*models.Pattern) []string {
	targets := map[string]map[string]bool{}
	for _, p := range patterns {
		if p.Kind == models.PatternKindNegative {
			continue
		}
		if targets[p.Expression] == nil {
			targets[p.Expression] = map[string]bool{}
		}
		targets[p.Expression][p.Handler+"/"+p.Intent] = true
	}
	var out []string
	for expr, t := range targets {
		if len(t) > 1 {
			out = append(out, expr)
		}
	}
	sort.Strings(out)
	return out
}

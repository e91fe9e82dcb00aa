// Package router is the rule router used by the classification harness. It
// evaluates the enabled patterns of a version against a message.
package router

import (
	"context"
	"fmt"
	"regexp"
	"sync"

	"github.com/joescharf/intentcfg/internal/harness"
	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/store"
)

// PatternLister lists the patterns of a version.
type PatternLister interface {
	ListPatterns(ctx context.Context, filter store.PatternListFilter) ([]*models.Pattern, error)
}

// Router matches messages case-insensitively anywhere in the text. Negative
// patterns veto their handler/intent; synonyms count as positive matches.
// The highest priority surviving match wins, ties going to the earlier pattern.
type Router struct {
	patterns PatternLister

	mu    sync.Mutex
	cache map[string]compiled
}

type compiled struct {
	re  *regexp.Regexp
	err error
}

// New creates a Router over pl.
func New(pl PatternLister) *Router {
	return &Router{patterns: pl, cache: map[string]compiled{}}
}

func (r *Router) compile(expr string) (*regexp.Regexp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.cache[expr]; ok {
		return c.re, c.err
	}
	re, err := regexp.Compile("(?i)" + expr)
	r.cache[expr] = compiled{re: re, err: err}
	return re, err
}

type pair struct{ handler, intent string }

// Route implements harness.Router.
func (r *Router) Route(ctx context.Context, message string, version *models.ConfigVersion) (*harness.RouterResult, error) {
	patterns, err := r.patterns.ListPatterns(ctx, store.PatternListFilter{
		VersionID:      version.ID,
		EnabledOnly:    true,
		SortByPriority: true,
	})
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}

	res := &harness.RouterResult{Evaluated: len(patterns)}
	vetoed := map[pair]bool{}
	seen := map[pair]bool{}

	for _, p := range patterns {
		key := pair{p.Handler, p.Intent}
		if p.Kind != models.PatternKindNegative && !seen[key] {
			seen[key] = true
			res.Candidates = append(res.Candidates, harness.Candidate{Handler: p.Handler, Intent: p.Intent})
		}

		re, err := r.compile(p.Expression)
		if err != nil {
			res.Skipped = append(res.Skipped, harness.SkippedPattern{
				PatternID: p.ID,
				Reason:    fmt.Sprintf("invalid expression: %v", err),
			})
			continue
		}
		if !re.MatchString(message) {
			continue
		}

		hit := harness.PatternHit{
			PatternID:  p.ID,
			Handler:    p.Handler,
			Intent:     p.Intent,
			Kind:       p.Kind,
			Priority:   p.Priority,
			Expression: p.Expression,
		}
		if p.Kind == models.PatternKindNegative {
			vetoed[key] = true
			res.Vetoes = append(res.Vetoes, hit)
			continue
		}
		res.Matches = append(res.Matches, hit)
	}

	for i := range res.Matches {
		m := res.Matches[i]
		if !vetoed[pair{m.Handler, m.Intent}] {
			res.Winner = &m
			break
		}
	}
	return res, nil
}

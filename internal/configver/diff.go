package configver

import (
	"context"
	"fmt"

	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/store"
)

// PatternChange pairs the same pattern as it appears in two versions.
type PatternChange struct {
	From *models.Pattern `json:"from"`
	To   *models.Pattern `json:"to"`
}

// VersionDiff lists pattern differences from one version to another.
// Patterns are identified by handler, intent, kind and expression.
type VersionDiff struct {
	FromID  string            `json:"from_id"`
	ToID    string            `json:"to_id"`
	Added   []*models.Pattern `json:"added"`
	Removed []*models.Pattern `json:"removed"`
	Changed []PatternChange   `json:"changed"`
}

// Empty reports whether the versions have identical patterns.
func (d *VersionDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

func patternKey(p *models.Pattern) string {
	return fmt.Sprintf("%s\x00%s\x00%s\x00%s", p.Handler, p.Intent, p.Kind, p.Expression)
}

func patternSettingsEqual(a, b *models.Pattern) bool {
	return a.Priority == b.Priority && a.Enabled == b.Enabled && a.Scope == b.Scope
}

// DiffVersions compares the patterns of two versions.
func (s *Service) DiffVersions(ctx context.Context, fromID, toID string) (*VersionDiff, error) {
	if _, err := s.store.GetVersion(ctx, fromID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetVersion(ctx, toID); err != nil {
		return nil, err
	}
	from, err := s.store.ListPatterns(ctx, store.PatternListFilter{VersionID: fromID})
	if err != nil {
		return nil, err
	}
	to, err := s.store.ListPatterns(ctx, store.PatternListFilter{VersionID: toID})
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*models.Pattern, len(from))
	for _, p := range from {
		byKey[patternKey(p)] = p
	}

	d := &VersionDiff{FromID: fromID, ToID: toID}
	seen := make(map[string]bool, len(to))
	for _, p := range to {
		k := patternKey(p)
		seen[k] = true
		old, ok := byKey[k]
		switch {
		case !ok:
			d.Added = append(d.Added, p)
		case !patternSettingsEqual(old, p):
			d.Changed = append(d.Changed, PatternChange{From: old, To: p})
		}
	}
	for _, p := range from {
		if !seen[patternKey(p)] {
			d.Removed = append(d.Removed, p)
		}
	}
	return d, nil
}

package configver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/intentcfg/internal/compiler"
	"github.com/joescharf/intentcfg/internal/errs"
	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(newTestStore(t))
}

func positive(versionID, handler, intent string) *models.Pattern {
	return &models.Pattern{
		VersionID: versionID,
		Handler:   handler,
		Intent:    intent,
		Kind:      models.PatternKindPositive,
		Enabled:   true,
	}
}

func TestCreateVersion_RequiresName(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.CreateVersion(context.Background(), "  ", "", "")
	assert.True(t, errs.Is(err, errs.Validation))
}

func TestPromoteAndArchive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	v1, err := svc.CreateVersion(ctx, "v1", "", "")
	require.NoError(t, err)
	v2, err := svc.CreateVersion(ctx, "v2", "", "")
	require.NoError(t, err)

	active, err := svc.Promote(ctx, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VersionStatusActive, active.Status)

	_, err = svc.Promote(ctx, v1.ID)
	assert.True(t, errs.Is(err, errs.InvalidState), "already active")

	assert.True(t, errs.Is(svc.Archive(ctx, v1.ID), errs.InvalidState), "active needs replacement first")

	_, err = svc.Promote(ctx, v2.ID)
	require.NoError(t, err)

	_, err = svc.Promote(ctx, v1.ID)
	assert.True(t, errs.Is(err, errs.InvalidState), "archived cannot be promoted")

	require.NoError(t, svc.ForceArchive(ctx, v2.ID))
	_, err = svc.ActiveVersion(ctx)
	assert.True(t, errs.Is(err, errs.NotFound), "force archive leaves no active version")
}

func TestAddPatternFromRules(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	v, err := svc.CreateVersion(ctx, "v1", "", "")
	require.NoError(t, err)

	p := positive(v.ID, "students", "count_students")
	err = svc.AddPatternFromRules(ctx, p, []compiler.Rule{
		{MatchType: compiler.MatchStartsWith, Value: "how"},
		{MatchType: compiler.MatchContains, Value: "students"},
	})
	require.NoError(t, err)
	assert.Equal(t, `(?:^how.*)(?:.*students.*)`, p.Expression)

	stored, err := svc.GetPattern(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Rules, stored.Rules)

	regen, err := svc.RegeneratePattern(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, stored.Expression, regen.Expression, "recompiling after storage is identical")

	bad := positive(v.ID, "students", "count_students")
	err = svc.AddPatternFromRules(ctx, bad, []compiler.Rule{{MatchType: compiler.MatchContains, Value: ""}})
	assert.True(t, errs.Is(err, errs.Validation))
}

func TestAddPatternFromPhrases(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	v, err := svc.CreateVersion(ctx, "v1", "", "")
	require.NoError(t, err)

	p := positive(v.ID, "students", "count_students")
	res, err := svc.AddPatternFromPhrases(ctx, p, []string{"How many students", "number of students"})
	require.NoError(t, err)
	assert.Equal(t, `(?:.*(how many students|number of students).*)`, p.Expression)
	assert.Equal(t, res.Confidence, p.Confidence)
	assert.NotEmpty(t, p.Rationale)

	empty := positive(v.ID, "students", "count_students")
	_, err = svc.AddPatternFromPhrases(ctx, empty, []string{"  ", ""})
	assert.True(t, errs.Is(err, errs.Validation))

	list, err := svc.ListPatterns(ctx, store.PatternListFilter{VersionID: v.ID})
	require.NoError(t, err)
	assert.Len(t, list, 1, "failed phrase compilation stores nothing")
}

func TestAddPattern_Validation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	v, err := svc.CreateVersion(ctx, "v1", "", "")
	require.NoError(t, err)

	tests := []struct {
		name string
		mut  func(p *models.Pattern)
	}{
		{"missing handler", func(p *models.Pattern) { p.Handler = "" }},
		{"missing intent", func(p *models.Pattern) { p.Intent = " " }},
		{"bad kind", func(p *models.Pattern) { p.Kind = "maybe" }},
		{"empty expression", func(p *models.Pattern) { p.Expression = "" }},
		{"broken expression", func(p *models.Pattern) { p.Expression = "(unclosed" }},
		{"confidence range", func(p *models.Pattern) { p.Confidence = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := positive(v.ID, "h", "i")
			p.Expression = "refund"
			tt.mut(p)
			assert.True(t, errs.Is(svc.AddPattern(ctx, p), errs.Validation))
		})
	}
}

func TestRegeneratePattern_HandWritten(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	v, err := svc.CreateVersion(ctx, "v1", "", "")
	require.NoError(t, err)

	p := positive(v.ID, "billing", "refund")
	p.Expression = `refund\s+please`
	require.NoError(t, svc.AddPattern(ctx, p))

	_, err = svc.RegeneratePattern(ctx, p.ID)
	assert.True(t, errs.Is(err, errs.Validation))
}

func TestRegeneratePattern_RecoversRules(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	v, err := svc.CreateVersion(ctx, "v1", "", "")
	require.NoError(t, err)

	rules := []compiler.Rule{
		{MatchType: compiler.MatchStartsWith, Value: "how many"},
		{MatchType: compiler.MatchContains, Value: "students", Optional: true},
	}
	expr, err := compiler.CompileRules(rules)
	require.NoError(t, err)

	p := positive(v.ID, "students", "count")
	p.Expression = expr
	require.NoError(t, svc.AddPattern(ctx, p))
	require.True(t, p.HandWritten())

	regen, err := svc.RegeneratePattern(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, rules, regen.Rules)
	assert.Equal(t, expr, regen.Expression)
	assert.False(t, regen.HandWritten())
}

func TestArchivedVersion_RejectsPatternMutation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	v, err := svc.CreateVersion(ctx, "v1", "", "")
	require.NoError(t, err)
	p := positive(v.ID, "billing", "refund")
	p.Expression = "refund"
	require.NoError(t, svc.AddPattern(ctx, p))
	require.NoError(t, svc.Archive(ctx, v.ID))

	q := positive(v.ID, "billing", "refund")
	q.Expression = "money back"
	assert.True(t, errs.Is(svc.AddPattern(ctx, q), errs.ImmutableVersion))
	assert.True(t, errs.Is(svc.DeletePattern(ctx, p.ID), errs.ImmutableVersion))
	assert.True(t, errs.Is(svc.AddTemplate(ctx, &models.Template{VersionID: v.ID, Handler: "billing", Type: models.TemplateTypeUser, Body: "x"}), errs.ImmutableVersion))
}

func TestTemplates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	v, err := svc.CreateVersion(ctx, "v1", "", "")
	require.NoError(t, err)

	err = svc.AddTemplate(ctx, &models.Template{VersionID: v.ID, Handler: "billing", Type: "banner", Body: "x"})
	assert.True(t, errs.Is(err, errs.Validation))

	tmpl := &models.Template{VersionID: v.ID, Handler: "billing", Type: models.TemplateTypeSystem, Body: "Answer about {topic}.", Enabled: true}
	require.NoError(t, svc.AddTemplate(ctx, tmpl))

	tmpl.Body = " "
	assert.True(t, errs.Is(svc.UpdateTemplate(ctx, tmpl), errs.Validation))

	list, err := svc.ListTemplates(ctx, store.TemplateListFilter{VersionID: v.ID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{"topic"}, list[0].Placeholders())
}

func TestExportImportRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	v, err := svc.CreateVersion(ctx, "v1", "launch set", "")
	require.NoError(t, err)

	_, err = svc.AddPatternFromPhrases(ctx, positive(v.ID, "students", "count_students"), []string{"how many students"})
	require.NoError(t, err)
	hand := positive(v.ID, "billing", "refund")
	hand.Expression = `refund\s+now`
	hand.Priority = 5
	require.NoError(t, svc.AddPattern(ctx, hand))
	require.NoError(t, svc.AddTemplate(ctx, &models.Template{VersionID: v.ID, Handler: "billing", Type: models.TemplateTypeUser, Body: "{q}", Enabled: true}))

	data, err := svc.ExportVersion(ctx, v.ID)
	require.NoError(t, err)
	assert.Contains(t, string(data), "name: v1")

	imported, err := svc.ImportVersion(ctx, data, "v1-copy")
	require.NoError(t, err)
	assert.Equal(t, models.VersionStatusCandidate, imported.Status)
	assert.Equal(t, 2, imported.PatternCount)
	assert.Equal(t, 1, imported.TemplateCount)

	diff, err := svc.DiffVersions(ctx, v.ID, imported.ID)
	require.NoError(t, err)
	assert.True(t, diff.Empty(), "imported copy has the same patterns")
}

func TestImportVersion_ValidatesBeforeWriting(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	bad := []byte(`
name: broken
patterns:
  - handler: billing
    intent: refund
    kind: positive
    expression: "("
templates: []
`)
	_, err := svc.ImportVersion(ctx, bad, "")
	assert.True(t, errs.Is(err, errs.Validation))

	versions, err := svc.ListVersions(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, versions)

	_, err = svc.ImportVersion(ctx, []byte("name: [unclosed"), "")
	assert.True(t, errs.Is(err, errs.Validation))
}

func TestDiffVersions(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.CreateVersion(ctx, "a", "", "")
	require.NoError(t, err)
	keep := positive(a.ID, "billing", "refund")
	keep.Expression = "refund"
	require.NoError(t, svc.AddPattern(ctx, keep))
	gone := positive(a.ID, "billing", "invoice")
	gone.Expression = "invoice"
	require.NoError(t, svc.AddPattern(ctx, gone))

	b, err := svc.CreateVersion(ctx, "b", "", a.ID)
	require.NoError(t, err)
	patterns, err := svc.ListPatterns(ctx, store.PatternListFilter{VersionID: b.ID})
	require.NoError(t, err)
	require.Len(t, patterns, 2)

	patterns[0].Priority = 9
	require.NoError(t, svc.UpdatePattern(ctx, patterns[0]))
	require.NoError(t, svc.DeletePattern(ctx, patterns[1].ID))
	added := positive(b.ID, "billing", "receipt")
	added.Expression = "receipt"
	require.NoError(t, svc.AddPattern(ctx, added))

	diff, err := svc.DiffVersions(ctx, a.ID, b.ID)
	require.NoError(t, err)
	require.Len(t, diff.Added, 1)
	assert.Equal(t, "receipt", diff.Added[0].Intent)
	require.Len(t, diff.Removed, 1)
	assert.Equal(t, "invoice", diff.Removed[0].Intent)
	require.Len(t, diff.Changed, 1)
	assert.Equal(t, 9, diff.Changed[0].To.Priority)

	_, err = svc.DiffVersions(ctx, a.ID, "missing")
	assert.True(t, errs.Is(err, errs.NotFound))
}

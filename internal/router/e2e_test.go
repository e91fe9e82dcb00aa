package router

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/intentcfg/internal/configver"
	"github.com/joescharf/intentcfg/internal/harness"
	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/store"
)

// Candidate version -> phrase-compiled pattern -> promote -> test classify.
func TestPhrasePatternRoutesAfterPromotion(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(ctx))
	t.Cleanup(func() { st.Close() })

	svc := configver.NewService(st)
	v1, err := svc.CreateVersion(ctx, "V1", "", "")
	require.NoError(t, err)

	p := &models.Pattern{
		VersionID: v1.ID,
		Handler:   "students",
		Intent:    "count_students",
		Kind:      models.PatternKindPositive,
		Enabled:   true,
	}
	_, err = svc.AddPatternFromPhrases(ctx, p, []string{"how many students", "number of students"})
	require.NoError(t, err)

	_, err = svc.Promote(ctx, v1.ID)
	require.NoError(t, err)

	h := harness.New(harness.Config{Versions: svc, Router: New(svc)})
	res, err := h.TestClassify(ctx, "how many students do we have?", v1.ID)
	require.NoError(t, err)

	d := res.FinalDecision
	assert.Equal(t, harness.SourceRouter, d.Source)
	assert.Equal(t, p.ID, d.PatternID)
	assert.Equal(t, "students", d.Handler)
	assert.Equal(t, "count_students", d.Intent)
	assert.Equal(t, v1.ID, res.VersionID)
	assert.Contains(t, d.Reason, p.ID)

	// With no version id the active version is used.
	res, err = h.TestClassify(ctx, "What is the NUMBER OF STUDENTS?", "")
	require.NoError(t, err)
	assert.Equal(t, harness.SourceRouter, res.FinalDecision.Source)
}

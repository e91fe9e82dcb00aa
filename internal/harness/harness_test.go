package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/intentcfg/internal/errs"
	"github.com/joescharf/intentcfg/internal/models"
)

type fakeVersions struct {
	active *models.ConfigVersion
	byID   map[string]*models.ConfigVersion
}

func (f *fakeVersions) GetVersion(_ context.Context, id string) (*models.ConfigVersion, error) {
	if v, ok := f.byID[id]; ok {
		return v, nil
	}
	return nil, errs.E(errs.NotFound, "get version", "version not found: %s", id)
}

func (f *fakeVersions) ActiveVersion(_ context.Context) (*models.ConfigVersion, error) {
	if f.active == nil {
		return nil, errs.E(errs.NotFound, "get active version", "no active version")
	}
	return f.active, nil
}

type routerFunc func(ctx context.Context, message string, v *models.ConfigVersion) (*RouterResult, error)

func (f routerFunc) Route(ctx context.Context, message string, v *models.ConfigVersion) (*RouterResult, error) {
	return f(ctx, message, v)
}

type classifierFunc func(ctx context.Context, message string, cs []Candidate) (*ClassifierResult, error)

func (f classifierFunc) Classify(ctx context.Context, message string, cs []Candidate) (*ClassifierResult, error) {
	return f(ctx, message, cs)
}

var (
	active    = &models.ConfigVersion{ID: "v-active", Name: "live", Status: models.VersionStatusActive}
	candidate = &models.ConfigVersion{ID: "v-cand", Name: "next", Status: models.VersionStatusCandidate}
	versions  = &fakeVersions{active: active, byID: map[string]*models.ConfigVersion{active.ID: active, candidate.ID: candidate}}
)

func noMatch(_ context.Context, _ string, _ *models.ConfigVersion) (*RouterResult, error) {
	return &RouterResult{Evaluated: 3, Candidates: []Candidate{{"billing", "refund"}, {"students", "count"}}}, nil
}

func TestTestClassify_RouterWins(t *testing.T) {
	var classifierCalled bool
	h := New(Config{
		Versions: versions,
		Router: routerFunc(func(_ context.Context, _ string, v *models.ConfigVersion) (*RouterResult, error) {
			w := PatternHit{PatternID: "p1", Handler: "billing", Intent: "refund", Priority: 7}
			return &RouterResult{Evaluated: 2, Winner: &w, Matches: []PatternHit{w}}, nil
		}),
		Classifier: classifierFunc(func(context.Context, string, []Candidate) (*ClassifierResult, error) {
			classifierCalled = true
			return nil, nil
		}),
	})

	res, err := h.TestClassify(context.Background(), "refund please", "")
	require.NoError(t, err)
	assert.False(t, classifierCalled, "classifier only runs when the router is inconclusive")
	assert.Equal(t, active.ID, res.VersionID)
	assert.Equal(t, FinalDecision{
		Source:     SourceRouter,
		Handler:    "billing",
		Intent:     "refund",
		PatternID:  "p1",
		Priority:   7,
		Confidence: 1,
		Reason:     "router matched pattern p1 at priority 7",
	}, res.FinalDecision)
	assert.Equal(t, []string{
		"using version v-active (live, active)",
		"router evaluated 2 enabled pattern(s)",
		"router matched pattern p1 at priority 7 (billing/refund)",
		"final decision: router matched pattern p1 at priority 7",
	}, res.ProcessingSteps)
}

func TestTestClassify_ClassifierAboveThreshold(t *testing.T) {
	var got []Candidate
	h := New(Config{
		Versions: versions,
		Router:   routerFunc(noMatch),
		Classifier: classifierFunc(func(_ context.Context, _ string, cs []Candidate) (*ClassifierResult, error) {
			got = cs
			return &ClassifierResult{Handler: "students", Intent: "count", Confidence: 0.82}, nil
		}),
	})

	res, err := h.TestClassify(context.Background(), "how big is the class", candidate.ID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, SourceClassifier, res.FinalDecision.Source)
	assert.Equal(t, "students", res.FinalDecision.Handler)
	assert.Equal(t, "classifier confidence 0.82 met threshold 0.70", res.FinalDecision.Reason)
	require.NotNil(t, res.ClassifierResult)
	assert.Equal(t, []string{
		"using version v-cand (next, candidate)",
		"router evaluated 3 enabled pattern(s)",
		"router inconclusive: 0 match(es), 0 veto(es)",
		"calling classifier with 2 candidate(s)",
		"classifier chose students/count with confidence 0.82",
		"final decision: classifier confidence 0.82 met threshold 0.70",
	}, res.ProcessingSteps)
}

func TestTestClassify_Fallbacks(t *testing.T) {
	tests := []struct {
		name       string
		router     Router
		classifier Classifier
		reason     string
	}{
		{
			name:   "no classifier",
			router: routerFunc(noMatch),
			reason: "router inconclusive and no classifier configured",
		},
		{
			name:   "classifier error",
			router: routerFunc(noMatch),
			classifier: classifierFunc(func(context.Context, string, []Candidate) (*ClassifierResult, error) {
				return nil, errors.New("timeout")
			}),
			reason: "router inconclusive and classifier failed",
		},
		{
			name:   "low confidence",
			router: routerFunc(noMatch),
			classifier: classifierFunc(func(context.Context, string, []Candidate) (*ClassifierResult, error) {
				return &ClassifierResult{Handler: "billing", Intent: "refund", Confidence: 0.4}, nil
			}),
			reason: "classifier confidence 0.40 below threshold 0.70",
		},
		{
			name:   "unknown handler",
			router: routerFunc(noMatch),
			classifier: classifierFunc(func(context.Context, string, []Candidate) (*ClassifierResult, error) {
				return &ClassifierResult{Handler: "weather", Confidence: 0.99}, nil
			}),
			reason: "classifier chose an unknown handler",
		},
		{
			name: "router error",
			router: routerFunc(func(context.Context, string, *models.ConfigVersion) (*RouterResult, error) {
				return nil, errors.New("db down")
			}),
			reason: "router inconclusive and no classifier configured",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(Config{Versions: versions, Router: tt.router, Classifier: tt.classifier, FallbackHandler: "general"})
			res, err := h.TestClassify(context.Background(), "hmm", "")
			require.NoError(t, err)
			assert.Equal(t, SourceFallback, res.FinalDecision.Source)
			assert.Equal(t, "general", res.FinalDecision.Handler)
			assert.Equal(t, tt.reason, res.FinalDecision.Reason)
			last := res.ProcessingSteps[len(res.ProcessingSteps)-1]
			assert.True(t, strings.HasPrefix(last, "final decision: fallback to general"), last)
		})
	}
}

func TestTestClassify_Errors(t *testing.T) {
	h := New(Config{Versions: &fakeVersions{}, Router: routerFunc(noMatch)})
	ctx := context.Background()

	_, err := h.TestClassify(ctx, "hello", "")
	assert.True(t, errs.Is(err, errs.NotFound), "no active version")

	_, err = h.TestClassify(ctx, "hello", "missing")
	assert.True(t, errs.Is(err, errs.NotFound))

	_, err = h.TestClassify(ctx, "  ", "")
	assert.True(t, errs.Is(err, errs.Validation))
}

func TestRunSuite(t *testing.T) {
	var inflight, peak atomic.Int32
	h := New(Config{
		Versions: versions,
		Router: routerFunc(func(_ context.Context, msg string, _ *models.ConfigVersion) (*RouterResult, error) {
			n := inflight.Add(1)
			defer inflight.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			if strings.Contains(msg, "refund") {
				w := PatternHit{PatternID: "p1", Handler: "billing", Intent: "refund"}
				return &RouterResult{Winner: &w, Matches: []PatternHit{w}}, nil
			}
			return &RouterResult{}, nil
		}),
	})

	var cases []Case
	for i := 0; i < 10; i++ {
		cases = append(cases, Case{Name: fmt.Sprintf("refund-%d", i), Message: "refund now", ExpectHandler: "billing", ExpectIntent: "refund"})
	}
	cases = append(cases, Case{Name: "miss", Message: "weather", ExpectHandler: "billing"})

	report, err := h.RunSuite(context.Background(), cases, "", 3)
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, active.ID, report.VersionID)
	assert.Equal(t, 10, report.Passed)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "miss", report.Results[10].Case.Name)
	assert.False(t, report.Results[10].Passed)
	assert.LessOrEqual(t, peak.Load(), int32(3))

	_, err = h.RunSuite(context.Background(), []Case{{Name: "empty"}}, "", 1)
	assert.True(t, errs.Is(err, errs.Validation))
}

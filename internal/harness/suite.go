package harness

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joescharf/intentcfg/internal/errs"
)

// Case is one expected routing outcome. An empty ExpectIntent matches any intent.
type Case struct {
	Name          string `json:"name" yaml:"name"`
	Message       string `json:"message" yaml:"message"`
	ExpectHandler string `json:"expect_handler" yaml:"expect_handler"`
	ExpectIntent  string `json:"expect_intent,omitempty" yaml:"expect_intent,omitempty"`
}

// CaseResult pairs a case with the harness trace.
type CaseResult struct {
	Case   Case    `json:"case"`
	Passed bool    `json:"passed"`
	Result *Result `json:"result"`
}

// SuiteReport summarises a suite run.
type SuiteReport struct {
	RunID     string        `json:"run_id"`
	VersionID string        `json:"version_id"`
	Passed    int           `json:"passed"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
	Results   []CaseResult  `json:"results"`
}

// RunSuite classifies every case against one version, at most concurrency at a time.
// Results keep the order of cases.
func (h *Harness) RunSuite(ctx context.Context, cases []Case, versionID string, concurrency int) (*SuiteReport, error) {
	for i, c := range cases {
		if c.Message == "" {
			return nil, errs.E(errs.Validation, "run suite", "case %d has no message", i+1)
		}
	}
	v, err := h.ResolveVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = 4
	}

	report := &SuiteReport{
		RunID:     uuid.New().String(),
		VersionID: v.ID,
		Results:   make([]CaseResult, len(cases)),
	}
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, c := range cases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := h.classify(gctx, c.Message, v)
			d := res.FinalDecision
			passed := d.Handler == c.ExpectHandler && (c.ExpectIntent == "" || d.Intent == c.ExpectIntent)
			report.Results[i] = CaseResult{Case: c, Passed: passed, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, r := range report.Results {
		if r.Passed {
			report.Passed++
		} else {
			report.Failed++
		}
	}
	report.Duration = time.Since(start)
	h.log.Info("suite finished",
		zap.String("run_id", report.RunID),
		zap.String("version_id", v.ID),
		zap.Int("passed", report.Passed),
		zap.Int("failed", report.Failed))
	return report, nil
}

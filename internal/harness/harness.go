package harness

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/joescharf/intentcfg/internal/errs"
	"github.com/joescharf/intentcfg/internal/logging"
	"github.com/joescharf/intentcfg/internal/models"
)

// DefaultThreshold is the classifier confidence needed to accept its answer.
const DefaultThreshold = 0.7

// Config holds the harness collaborators. Classifier may be nil.
type Config struct {
	Versions        VersionSource
	Router          Router
	Classifier      Classifier
	Threshold       float64
	FallbackHandler string
	Logger          *zap.Logger
}

// Harness runs test classifications.
type Harness struct {
	versions        VersionSource
	router          Router
	classifier      Classifier
	threshold       float64
	fallbackHandler string
	log             *zap.Logger
}

// New creates a Harness, applying defaults.
func New(cfg Config) *Harness {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	return &Harness{
		versions:        cfg.Versions,
		router:          cfg.Router,
		classifier:      cfg.Classifier,
		threshold:       cfg.Threshold,
		fallbackHandler: cfg.FallbackHandler,
		log:             logging.OrNop(cfg.Logger),
	}
}

// ResolveVersion returns the version with the given id, or the active version
// when id is empty.
func (h *Harness) ResolveVersion(ctx context.Context, versionID string) (*models.ConfigVersion, error) {
	if versionID != "" {
		return h.versions.GetVersion(ctx, versionID)
	}
	v, err := h.versions.ActiveVersion(ctx)
	if err != nil {
		if errs.Is(err, errs.NotFound) {
			return nil, errs.E(errs.NotFound, "test classify", "no version given and no version is active")
		}
		return nil, err
	}
	return v, nil
}

// TestClassify runs message through the router and, when the router is
// inconclusive, the classifier. Every decision point is appended to
// ProcessingSteps in the order it is evaluated.
func (h *Harness) TestClassify(ctx context.Context, message, versionID string) (*Result, error) {
	if strings.TrimSpace(message) == "" {
		return nil, errs.E(errs.Validation, "test classify", "message is required")
	}
	v, err := h.ResolveVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	return h.classify(ctx, message, v), nil
}

func (h *Harness) classify(ctx context.Context, message string, v *models.ConfigVersion) *Result {
	res := &Result{VersionID: v.ID, Message: message}
	step := func(format string, a ...any) {
		res.ProcessingSteps = append(res.ProcessingSteps, fmt.Sprintf(format, a...))
	}

	step("using version %s (%s, %s)", v.ID, v.Name, v.Status)

	rr, err := h.router.Route(ctx, message, v)
	if err != nil {
		step("router failed: %v", err)
		h.log.Warn("router failed", zap.String("version_id", v.ID), zap.Error(err))
	} else {
		res.RouterResult = rr
		step("router evaluated %d enabled pattern(s)", rr.Evaluated)
		for _, s := range rr.Skipped {
			step("router skipped pattern %s: %s", s.PatternID, s.Reason)
		}
		for _, veto := range rr.Vetoes {
			step("negative pattern %s vetoed %s/%s", veto.PatternID, veto.Handler, veto.Intent)
		}
		if rr.Conclusive() {
			w := rr.Winner
			reason := fmt.Sprintf("router matched pattern %s at priority %d", w.PatternID, w.Priority)
			step("%s (%s/%s)", reason, w.Handler, w.Intent)
			res.FinalDecision = FinalDecision{
				Source:     SourceRouter,
				Handler:    w.Handler,
				Intent:     w.Intent,
				PatternID:  w.PatternID,
				Priority:   w.Priority,
				Confidence: 1,
				Reason:     reason,
			}
			step("final decision: %s", reason)
			return res
		}
		step("router inconclusive: %d match(es), %d veto(es)", len(rr.Matches), len(rr.Vetoes))
	}

	if h.classifier == nil {
		step("classifier not configured")
		return h.fallback(res, step, "router inconclusive and no classifier configured")
	}

	var candidates []Candidate
	if rr != nil {
		candidates = rr.Candidates
	}
	step("calling classifier with %d candidate(s)", len(candidates))
	cr, err := h.classifier.Classify(ctx, message, candidates)
	if err != nil {
		step("classifier failed: %v", err)
		h.log.Warn("classifier failed", zap.String("version_id", v.ID), zap.Error(err))
		return h.fallback(res, step, "router inconclusive and classifier failed")
	}
	res.ClassifierResult = cr
	step("classifier chose %s/%s with confidence %.2f", cr.Handler, cr.Intent, cr.Confidence)

	if len(candidates) > 0 && !containsCandidate(candidates, cr.Handler, cr.Intent) {
		step("classifier choice %s/%s is not a candidate of this version", cr.Handler, cr.Intent)
		return h.fallback(res, step, "classifier chose an unknown handler")
	}
	if cr.Confidence < h.threshold {
		step("classifier confidence %.2f below threshold %.2f", cr.Confidence, h.threshold)
		return h.fallback(res, step, fmt.Sprintf("classifier confidence %.2f below threshold %.2f", cr.Confidence, h.threshold))
	}

	reason := fmt.Sprintf("classifier confidence %.2f met threshold %.2f", cr.Confidence, h.threshold)
	res.FinalDecision = FinalDecision{
		Source:     SourceClassifier,
		Handler:    cr.Handler,
		Intent:     cr.Intent,
		Confidence: cr.Confidence,
		Reason:     reason,
	}
	step("final decision: %s", reason)
	return res
}

func (h *Harness) fallback(res *Result, step func(string, ...any), reason string) *Result {
	res.FinalDecision = FinalDecision{
		Source:  SourceFallback,
		Handler: h.fallbackHandler,
		Reason:  reason,
	}
	if h.fallbackHandler != "" {
		step("final decision: fallback to %s: %s", h.fallbackHandler, reason)
	} else {
		step("final decision: unhandled: %s", reason)
	}
	return res
}

func containsCandidate(cs []Candidate, handler, intent string) bool {
	for _, c := range cs {
		if c.Handler == handler && (intent == "" || c.Intent == intent) {
			return true
		}
	}
	return false
}

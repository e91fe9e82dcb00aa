// Package harness exercises the classification runtime against a chosen
// configuration version and explains how it reached its decision.
package harness

import (
	"context"

	"github.com/joescharf/intentcfg/internal/models"
)

// Candidate is a handler/intent pair the classifier may choose from.
type Candidate struct {
	Handler string `json:"handler"`
	Intent  string `json:"intent"`
}

// PatternHit is one pattern that matched the message.
type PatternHit struct {
	PatternID  string             `json:"pattern_id"`
	Handler    string             `json:"handler"`
	Intent     string             `json:"intent"`
	Kind       models.PatternKind `json:"kind"`
	Priority   int                `json:"priority"`
	Expression string             `json:"expression"`
}

// SkippedPattern is a pattern the router could not evaluate.
type SkippedPattern struct {
	PatternID string `json:"pattern_id"`
	Reason    string `json:"reason"`
}

// RouterResult is what the rule router reports for one message.
type RouterResult struct {
	Evaluated  int              `json:"evaluated"`
	Winner     *PatternHit      `json:"winner,omitempty"`
	Matches    []PatternHit     `json:"matches,omitempty"`
	Vetoes     []PatternHit     `json:"vetoes,omitempty"`
	Skipped    []SkippedPattern `json:"skipped,omitempty"`
	Candidates []Candidate      `json:"candidates,omitempty"`
}

// Conclusive reports whether the router settled on a pattern.
func (r *RouterResult) Conclusive() bool {
	return r != nil && r.Winner != nil
}

// ClassifierResult is what the learned classifier reports for one message.
type ClassifierResult struct {
	Handler    string  `json:"handler"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason,omitempty"`
	Model      string  `json:"model,omitempty"`
}

// Router routes a message with the patterns of a version.
type Router interface {
	Route(ctx context.Context, message string, version *models.ConfigVersion) (*RouterResult, error)
}

// Classifier picks a candidate for a message the router could not place.
type Classifier interface {
	Classify(ctx context.Context, message string, candidates []Candidate) (*ClassifierResult, error)
}

// VersionSource resolves the version a test runs against.
type VersionSource interface {
	GetVersion(ctx context.Context, id string) (*models.ConfigVersion, error)
	ActiveVersion(ctx context.Context) (*models.ConfigVersion, error)
}

// Source names the component whose answer became the final decision.
type Source string

const (
	SourceRouter     Source = "router"
	SourceClassifier Source = "classifier"
	SourceFallback   Source = "fallback"
)

// FinalDecision is the outcome of a test classification. It is always
// present; when neither component produced a usable answer Source is
// SourceFallback.
type FinalDecision struct {
	Source     Source  `json:"source"`
	Handler    string  `json:"handler,omitempty"`
	Intent     string  `json:"intent,omitempty"`
	PatternID  string  `json:"pattern_id,omitempty"`
	Priority   int     `json:"priority,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Reason     string  `json:"reason"`
}

// Result is the full trace of one test classification.
type Result struct {
	VersionID        string            `json:"version_id"`
	Message          string            `json:"message"`
	RouterResult     *RouterResult     `json:"config_router_result,omitempty"`
	ClassifierResult *ClassifierResult `json:"llm_classifier_result,omitempty"`
	FinalDecision    FinalDecision     `json:"final_decision"`
	ProcessingSteps  []string          `json:"processing_steps"`
}

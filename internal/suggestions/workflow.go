// Package suggestions implements the review workflow for field-reported
// improvement suggestions.
package suggestions

import (
	"context"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sahilm/fuzzy"
	"go.uber.org/zap"

	"github.com/joescharf/intentcfg/internal/actions"
	"github.com/joescharf/intentcfg/internal/errs"
	"github.com/joescharf/intentcfg/internal/logging"
	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/store"
)

var transitions = map[models.SuggestionStatus]mapset.Set[models.SuggestionStatus]{
	models.SuggestionStatusPending: mapset.NewSet(
		models.SuggestionStatusApproved,
		models.SuggestionStatusRejected,
		models.SuggestionStatusNeedsAnalysis,
	),
	models.SuggestionStatusNeedsAnalysis: mapset.NewSet(
		models.SuggestionStatusApproved,
		models.SuggestionStatusRejected,
		models.SuggestionStatusNeedsAnalysis,
		models.SuggestionStatusPending,
	),
	models.SuggestionStatusApproved: mapset.NewSet(
		models.SuggestionStatusImplemented,
	),
}

// TransitionAllowed reports whether a suggestion may move from one status to
// another. Rejected and implemented are terminal.
func TransitionAllowed(from, to models.SuggestionStatus) bool {
	next, ok := transitions[from]
	return ok && next.Contains(to)
}

// NewSuggestion holds the reporter-supplied fields of a suggestion.
type NewSuggestion struct {
	MessageRef       string                `json:"message_ref,omitempty"`
	Type             models.SuggestionType `json:"suggestion_type"`
	Title            string                `json:"title"`
	Description      string                `json:"description"`
	TargetHandler    string                `json:"target_handler,omitempty"`
	TargetIntent     string                `json:"target_intent,omitempty"`
	ProposedPattern  string                `json:"proposed_pattern,omitempty"`
	ProposedTemplate string                `json:"proposed_template,omitempty"`
	Priority         models.Priority       `json:"priority"`
}

// ReviewInput is a review decision on a pending or needs_analysis suggestion.
// ActionItems are only accepted with an approved decision and are created in
// the same transaction as the status change.
type ReviewInput struct {
	SuggestionID        string                  `json:"suggestion_id"`
	Decision            models.SuggestionStatus `json:"decision"`
	AdminAnalysis       string                  `json:"admin_analysis,omitempty"`
	ImplementationNotes string                  `json:"implementation_notes,omitempty"`
	Reviewer            string                  `json:"reviewer"`
	ActionItems         []actions.Draft         `json:"action_items,omitempty"`
}

// Workflow runs the suggestion state machine.
type Workflow struct {
	store   store.Store
	tracker *actions.Tracker
	log     *zap.Logger
}

// NewWorkflow creates a Workflow. The tracker supplies the readiness check
// used by MarkAddressed.
func NewWorkflow(st store.Store, tracker *actions.Tracker, log *zap.Logger) *Workflow {
	return &Workflow{store: st, tracker: tracker, log: logging.OrNop(log)}
}

// Create records a new pending suggestion.
func (w *Workflow) Create(ctx context.Context, in NewSuggestion, reporter string) (*models.Suggestion, error) {
	const op = "create suggestion"
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, errs.E(errs.Validation, op, "title is required")
	}
	if !in.Type.Valid() {
		return nil, errs.E(errs.Validation, op, "unknown suggestion type %q", in.Type)
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	if !in.Priority.Valid() {
		return nil, errs.E(errs.Validation, op, "unknown priority %q", in.Priority)
	}

	s := &models.Suggestion{
		MessageRef:       in.MessageRef,
		Type:             in.Type,
		Title:            in.Title,
		Description:      in.Description,
		TargetHandler:    in.TargetHandler,
		TargetIntent:     in.TargetIntent,
		ProposedPattern:  in.ProposedPattern,
		ProposedTemplate: in.ProposedTemplate,
		Priority:         in.Priority,
		ReportedBy:       reporter,
		Status:           models.SuggestionStatusPending,
	}
	if err := w.store.CreateSuggestion(ctx, s); err != nil {
		return nil, err
	}
	w.log.Info("suggestion created",
		zap.String("suggestion_id", s.ID),
		zap.String("type", string(s.Type)),
		zap.String("reported_by", reporter))
	return s, nil
}

// Get returns a suggestion by id.
func (w *Workflow) Get(ctx context.Context, id string) (*models.Suggestion, error) {
	return w.store.GetSuggestion(ctx, id)
}

// List returns suggestions matching the filter.
func (w *Workflow) List(ctx context.Context, filter store.SuggestionListFilter) ([]*models.Suggestion, error) {
	return w.store.ListSuggestions(ctx, filter)
}

// Review applies a review decision. Approving requires a non-blank analysis.
// It returns the updated suggestion and any action items created with it.
func (w *Workflow) Review(ctx context.Context, in ReviewInput) (*models.Suggestion, []*models.ActionItem, error) {
	const op = "review suggestion"
	switch in.Decision {
	case models.SuggestionStatusApproved, models.SuggestionStatusRejected, models.SuggestionStatusNeedsAnalysis:
	default:
		return nil, nil, errs.E(errs.Validation, op, "decision must be approved, rejected or needs_analysis, got %q", in.Decision)
	}

	s, err := w.store.GetSuggestion(ctx, in.SuggestionID)
	if err != nil {
		return nil, nil, err
	}
	if s.Status != models.SuggestionStatusPending && s.Status != models.SuggestionStatusNeedsAnalysis {
		return nil, nil, errs.E(errs.InvalidTransition, op, "suggestion %s is %s and cannot be reviewed", s.ID, s.Status)
	}
	if !TransitionAllowed(s.Status, in.Decision) {
		return nil, nil, errs.E(errs.InvalidTransition, op, "cannot move suggestion from %s to %s", s.Status, in.Decision)
	}
	if in.Decision == models.SuggestionStatusApproved && strings.TrimSpace(in.AdminAnalysis) == "" {
		return nil, nil, errs.E(errs.MissingAnalysis, op, "approving suggestion %s requires an admin analysis", s.ID)
	}
	if len(in.ActionItems) > 0 && in.Decision != models.SuggestionStatusApproved {
		return nil, nil, errs.E(errs.Validation, op, "action items can only be created with an approved decision")
	}

	items := make([]*models.ActionItem, 0, len(in.ActionItems))
	for i := range in.ActionItems {
		d := in.ActionItems[i]
		if err := d.Validate(); err != nil {
			return nil, nil, errs.E(errs.Validation, op, "action item %d: %v", i+1, err)
		}
		items = append(items, d.Item(s.ID, in.Reviewer))
	}

	now := time.Now().UTC()
	from := s.Status
	s.Status = in.Decision
	if strings.TrimSpace(in.AdminAnalysis) != "" {
		s.AdminAnalysis = in.AdminAnalysis
	}
	if in.ImplementationNotes != "" {
		s.ImplementationNotes = in.ImplementationNotes
	}
	s.ReviewedBy = in.Reviewer
	s.ReviewedAt = &now
	if in.Decision == models.SuggestionStatusRejected {
		s.ResolvedAt = &now
	}

	if err := w.store.UpdateSuggestionState(ctx, s, items); err != nil {
		return nil, nil, err
	}
	w.log.Info("suggestion reviewed",
		zap.String("suggestion_id", s.ID),
		zap.String("from", string(from)),
		zap.String("to", string(s.Status)),
		zap.String("reviewer", in.Reviewer),
		zap.Int("action_items", len(items)))
	return s, items, nil
}

// Reopen moves a needs_analysis suggestion back to pending.
func (w *Workflow) Reopen(ctx context.Context, id, actor string) (*models.Suggestion, error) {
	const op = "reopen suggestion"
	s, err := w.store.GetSuggestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status != models.SuggestionStatusNeedsAnalysis {
		return nil, errs.E(errs.InvalidTransition, op, "only needs_analysis suggestions can be reopened, %s is %s", id, s.Status)
	}
	s.Status = models.SuggestionStatusPending
	if err := w.store.UpdateSuggestionState(ctx, s, nil); err != nil {
		return nil, err
	}
	w.log.Info("suggestion reopened", zap.String("suggestion_id", id), zap.String("actor", actor))
	return s, nil
}

// MarkAddressed marks an approved suggestion implemented. At least one of its
// action items must be completed.
func (w *Workflow) MarkAddressed(ctx context.Context, id, completionNotes, actor string) (*models.Suggestion, error) {
	const op = "mark suggestion addressed"
	s, err := w.store.GetSuggestion(ctx, id)
	if err != nil {
		return nil, err
	}
	if s.Status != models.SuggestionStatusApproved {
		return nil, errs.E(errs.InvalidTransition, op, "suggestion %s is %s, only approved suggestions can be addressed", id, s.Status)
	}
	ready, err := w.tracker.IsSuggestionReadyToAddress(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ready {
		return nil, errs.E(errs.PreconditionFailed, op, "suggestion %s has no completed action items", id)
	}

	now := time.Now().UTC()
	s.Status = models.SuggestionStatusImplemented
	s.CompletionNotes = completionNotes
	s.ResolvedAt = &now
	if err := w.store.UpdateSuggestionState(ctx, s, nil); err != nil {
		return nil, err
	}
	w.log.Info("suggestion implemented", zap.String("suggestion_id", id), zap.String("actor", actor))
	return s, nil
}

// Match is a suggestion whose title resembles a query.
type Match struct {
	Suggestion *models.Suggestion `json:"suggestion"`
	Score      int                `json:"score"`
}

type titleSource []*models.Suggestion

func (t titleSource) String(i int) string { return strings.ToLower(t[i].Title) }
func (t titleSource) Len() int            { return len(t) }

// Similar finds open suggestions (pending, needs_analysis or approved) whose
// titles fuzzy-match query, best first. It is used to flag likely duplicates.
func (w *Workflow) Similar(ctx context.Context, query string) ([]Match, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}

	var open titleSource
	for _, status := range []models.SuggestionStatus{
		models.SuggestionStatusPending,
		models.SuggestionStatusNeedsAnalysis,
		models.SuggestionStatusApproved,
	} {
		list, err := w.store.ListSuggestions(ctx, store.SuggestionListFilter{Status: status})
		if err != nil {
			return nil, err
		}
		open = append(open, list...)
	}

	var matches []Match
	for _, m := range fuzzy.FindFrom(query, open) {
		matches = append(matches, Match{Suggestion: open[m.Index], Score: m.Score})
	}
	return matches, nil
}

// Package actions tracks implementation work items under approved suggestions.
package actions

import (
	"context"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/joescharf/intentcfg/internal/errs"
	"github.com/joescharf/intentcfg/internal/logging"
	"github.com/joescharf/intentcfg/internal/models"
	"github.com/joescharf/intentcfg/internal/store"
)

// transitions lists the statuses reachable from each non-terminal status.
var transitions = map[models.ActionItemStatus]mapset.Set[models.ActionItemStatus]{
	models.ActionItemStatusPending: mapset.NewSet(
		models.ActionItemStatusInProgress,
		models.ActionItemStatusCompleted,
		models.ActionItemStatusCancelled,
	),
	models.ActionItemStatusInProgress: mapset.NewSet(
		models.ActionItemStatusCompleted,
		models.ActionItemStatusCancelled,
	),
}

// TransitionAllowed reports whether an item may move from one status to another.
func TransitionAllowed(from, to models.ActionItemStatus) bool {
	next, ok := transitions[from]
	return ok && next.Contains(to)
}

// ValidStatus reports whether s is a known action item status.
func ValidStatus(s models.ActionItemStatus) bool {
	switch s {
	case models.ActionItemStatusPending, models.ActionItemStatusInProgress,
		models.ActionItemStatusCompleted, models.ActionItemStatusCancelled:
		return true
	}
	return false
}

// Draft holds the caller-supplied fields of a new action item.
type Draft struct {
	Title              string                    `json:"title"`
	Description        string                    `json:"description"`
	Priority           models.Priority           `json:"priority"`
	ImplementationType models.ImplementationType `json:"implementation_type"`
	AssignedTo         string                    `json:"assigned_to,omitempty"`
	DueDate            *time.Time                `json:"due_date,omitempty"`
}

// Validate checks the draft's fields. Blank priority and type default to
// medium and other.
func (d *Draft) Validate() error {
	d.Title = strings.TrimSpace(d.Title)
	if d.Title == "" {
		return errs.E(errs.Validation, "validate action item", "title is required")
	}
	if d.Priority == "" {
		d.Priority = models.PriorityMedium
	}
	if !d.Priority.Valid() {
		return errs.E(errs.Validation, "validate action item", "unknown priority %q", d.Priority)
	}
	if d.ImplementationType == "" {
		d.ImplementationType = models.ImplementationTypeOther
	}
	if !d.ImplementationType.Valid() {
		return errs.E(errs.Validation, "validate action item", "unknown implementation type %q", d.ImplementationType)
	}
	return nil
}

// Item builds a pending action item from a validated draft.
func (d Draft) Item(suggestionID, createdBy string) *models.ActionItem {
	return &models.ActionItem{
		SuggestionID:       suggestionID,
		Title:              d.Title,
		Description:        d.Description,
		Priority:           d.Priority,
		ImplementationType: d.ImplementationType,
		Status:             models.ActionItemStatusPending,
		AssignedTo:         d.AssignedTo,
		DueDate:            d.DueDate,
		CreatedBy:          createdBy,
	}
}

// Tracker runs the action item state machine.
type Tracker struct {
	store store.Store
	log   *zap.Logger
}

// NewTracker creates a Tracker. A nil logger disables logging.
func NewTracker(st store.Store, log *zap.Logger) *Tracker {
	return &Tracker{store: st, log: logging.OrNop(log)}
}

// Create adds a pending item under an approved suggestion.
func (t *Tracker) Create(ctx context.Context, suggestionID string, d Draft, actor string) (*models.ActionItem, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	item := d.Item(suggestionID, actor)
	if err := t.store.CreateActionItem(ctx, item); err != nil {
		return nil, err
	}
	t.log.Info("action item created",
		zap.String("item_id", item.ID),
		zap.String("suggestion_id", suggestionID),
		zap.String("actor", actor))
	return item, nil
}

// Get returns an item by id.
func (t *Tracker) Get(ctx context.Context, id string) (*models.ActionItem, error) {
	return t.store.GetActionItem(ctx, id)
}

// List returns items matching the filter.
func (t *Tracker) List(ctx context.Context, filter store.ActionItemListFilter) ([]*models.ActionItem, error) {
	return t.store.ListActionItems(ctx, filter)
}

// SetStatus moves an item to status. Completing an item requires notes,
// which may point at an empty string. The write only lands if the item still
// has the status observed here; a lost race returns Conflict.
func (t *Tracker) SetStatus(ctx context.Context, id string, status models.ActionItemStatus, notes *string, actor string) (*models.ActionItem, error) {
	const op = "set action item status"
	if !ValidStatus(status) {
		return nil, errs.E(errs.Validation, op, "unknown status %q", status)
	}

	item, err := t.store.GetActionItem(ctx, id)
	if err != nil {
		return nil, err
	}
	observed := item.Status
	if observed.Terminal() {
		return nil, errs.E(errs.InvalidTransition, op, "action item %s is %s and cannot change", id, observed)
	}
	if !TransitionAllowed(observed, status) {
		return nil, errs.E(errs.InvalidTransition, op, "cannot move action item from %s to %s", observed, status)
	}
	if status == models.ActionItemStatusCompleted && notes == nil {
		return nil, errs.E(errs.Validation, op, "completion notes are required to complete an item")
	}

	item.Status = status
	if notes != nil {
		n := *notes
		item.CompletionNotes = &n
	}
	if status == models.ActionItemStatusCompleted {
		now := time.Now().UTC()
		item.CompletedAt = &now
	}

	if err := t.store.UpdateActionItemStatus(ctx, item, observed); err != nil {
		return nil, err
	}
	t.log.Info("action item status changed",
		zap.String("item_id", id),
		zap.String("from", string(observed)),
		zap.String("to", string(status)),
		zap.String("actor", actor))
	return item, nil
}

// IsSuggestionReadyToAddress reports whether at least one item under the
// suggestion is completed.
func (t *Tracker) IsSuggestionReadyToAddress(ctx context.Context, suggestionID string) (bool, error) {
	n, err := t.store.CountActionItems(ctx, suggestionID, models.ActionItemStatusCompleted)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

package suggestions

import (
	"context"
	"fmt"

	"github.com/joescharf/intentcfg/internal/actions"
	"github.com/joescharf/intentcfg/internal/models"
)

// Command is one operation on the suggestion or action item state machines.
// The set of variants is closed.
type Command interface {
	command()
}

// CreateSuggestion records a new pending suggestion.
type CreateSuggestion struct {
	Input    NewSuggestion
	Reporter string
}

// ReviewSuggestion applies a review decision.
type ReviewSuggestion struct {
	Input ReviewInput
}

// ReopenSuggestion returns a needs_analysis suggestion to pending.
type ReopenSuggestion struct {
	SuggestionID string
	Actor        string
}

// MarkSuggestionAddressed moves an approved suggestion to implemented.
type MarkSuggestionAddressed struct {
	SuggestionID    string
	CompletionNotes string
	Actor           string
}

// CreateActionItem adds an action item under an approved suggestion.
type CreateActionItem struct {
	SuggestionID string
	Draft        actions.Draft
	Actor        string
}

// SetActionItemStatus moves an action item to a new status.
type SetActionItemStatus struct {
	ItemID          string
	Status          models.ActionItemStatus
	CompletionNotes *string
	Actor           string
}

func (CreateSuggestion) command()        {}
func (ReviewSuggestion) command()        {}
func (ReopenSuggestion) command()        {}
func (MarkSuggestionAddressed) command() {}
func (CreateActionItem) command()        {}
func (SetActionItemStatus) command()     {}

// Result carries whatever a command produced.
type Result struct {
	Suggestion  *models.Suggestion   `json:"suggestion,omitempty"`
	ActionItems []*models.ActionItem `json:"action_items,omitempty"`
}

// Dispatcher routes commands to the workflow and the tracker.
type Dispatcher struct {
	workflow *Workflow
	tracker  *actions.Tracker
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(w *Workflow, t *actions.Tracker) *Dispatcher {
	return &Dispatcher{workflow: w, tracker: t}
}

// Workflow returns the underlying suggestion workflow.
func (d *Dispatcher) Workflow() *Workflow { return d.workflow }

// Tracker returns the underlying action item tracker.
func (d *Dispatcher) Tracker() *actions.Tracker { return d.tracker }

// Apply executes cmd.
func (d *Dispatcher) Apply(ctx context.Context, cmd Command) (*Result, error) {
	switch c := cmd.(type) {
	case CreateSuggestion:
		s, err := d.workflow.Create(ctx, c.Input, c.Reporter)
		if err != nil {
			return nil, err
		}
		return &Result{Suggestion: s}, nil
	case ReviewSuggestion:
		s, items, err := d.workflow.Review(ctx, c.Input)
		if err != nil {
			return nil, err
		}
		return &Result{Suggestion: s, ActionItems: items}, nil
	case ReopenSuggestion:
		s, err := d.workflow.Reopen(ctx, c.SuggestionID, c.Actor)
		if err != nil {
			return nil, err
		}
		return &Result{Suggestion: s}, nil
	case MarkSuggestionAddressed:
		s, err := d.workflow.MarkAddressed(ctx, c.SuggestionID, c.CompletionNotes, c.Actor)
		if err != nil {
			return nil, err
		}
		return &Result{Suggestion: s}, nil
	case CreateActionItem:
		item, err := d.tracker.Create(ctx, c.SuggestionID, c.Draft, c.Actor)
		if err != nil {
			return nil, err
		}
		return &Result{ActionItems: []*models.ActionItem{item}}, nil
	case SetActionItemStatus:
		item, err := d.tracker.SetStatus(ctx, c.ItemID, c.Status, c.CompletionNotes, c.Actor)
		if err != nil {
			return nil, err
		}
		return &Result{ActionItems: []*models.ActionItem{item}}, nil
	default:
		panic(fmt.Sprintf("suggestions: unhandled command %T", cmd))
	}
}

package models

import "time"

// ImplementationType is the kind of work an action item represents.
type ImplementationType string

const (
	ImplementationTypePattern       ImplementationType = "pattern"
	ImplementationTypeTemplate      ImplementationType = "template"
	ImplementationTypeCodeFix       ImplementationType = "code_fix"
	ImplementationTypeDocumentation ImplementationType = "documentation"
	ImplementationTypeOther         ImplementationType = "other"
)

// Valid reports whether t is a known implementation type.
func (t ImplementationType) Valid() bool {
	switch t {
	case ImplementationTypePattern, ImplementationTypeTemplate, ImplementationTypeCodeFix,
		ImplementationTypeDocumentation, ImplementationTypeOther:
		return true
	}
	return false
}

// ActionItemStatus is the progress state of an action item.
type ActionItemStatus string

const (
	ActionItemStatusPending    ActionItemStatus = "pending"
	ActionItemStatusInProgress ActionItemStatus = "in_progress"
	ActionItemStatusCompleted  ActionItemStatus = "completed"
	ActionItemStatusCancelled  ActionItemStatus = "cancelled"
)

// Terminal reports whether no further transitions are allowed from s.
func (s ActionItemStatus) Terminal() bool {
	return s == ActionItemStatusCompleted || s == ActionItemStatusCancelled
}

// ActionItem is a unit of implementation work derived from an approved Suggestion.
type ActionItem struct {
	ID                 string             `json:"id"`
	SuggestionID       string             `json:"suggestion_id"`
	Title              string             `json:"title"`
	Description        string             `json:"description"`
	Priority           Priority           `json:"priority"`
	ImplementationType ImplementationType `json:"implementation_type"`
	Status             ActionItemStatus   `json:"status"`
	AssignedTo         string             `json:"assigned_to,omitempty"`
	DueDate            *time.Time         `json:"due_date,omitempty"`
	CompletionNotes    *string            `json:"completion_notes,omitempty"`
	CreatedBy          string             `json:"created_by"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
	CompletedAt        *time.Time         `json:"completed_at,omitempty"`
}

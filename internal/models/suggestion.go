package models

import "time"

// SuggestionType is what a suggestion proposes to change.
type SuggestionType string

const (
	SuggestionTypePattern            SuggestionType = "pattern"
	SuggestionTypeTemplate           SuggestionType = "template"
	SuggestionTypeIntentMapping      SuggestionType = "intent_mapping"
	SuggestionTypeHandlerImprovement SuggestionType = "handler_improvement"
)

// Valid reports whether t is a known suggestion type.
func (t SuggestionType) Valid() bool {
	switch t {
	case SuggestionTypePattern, SuggestionTypeTemplate, SuggestionTypeIntentMapping, SuggestionTypeHandlerImprovement:
		return true
	}
	return false
}

// Priority is shared by suggestions and action items.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// SuggestionStatus is the review state of a suggestion.
type SuggestionStatus string

const (
	SuggestionStatusPending       SuggestionStatus = "pending"
	SuggestionStatusApproved      SuggestionStatus = "approved"
	SuggestionStatusRejected      SuggestionStatus = "rejected"
	SuggestionStatusNeedsAnalysis SuggestionStatus = "needs_analysis"
	SuggestionStatusImplemented   SuggestionStatus = "implemented"
)

// Suggestion is a field-reported improvement proposal. Suggestions are never deleted.
type Suggestion struct {
	ID                  string           `json:"id"`
	MessageRef          string           `json:"message_ref,omitempty"`
	Type                SuggestionType   `json:"suggestion_type"`
	Title               string           `json:"title"`
	Description         string           `json:"description"`
	TargetHandler       string           `json:"target_handler,omitempty"`
	TargetIntent        string           `json:"target_intent,omitempty"`
	ProposedPattern     string           `json:"proposed_pattern,omitempty"`
	ProposedTemplate    string           `json:"proposed_template,omitempty"`
	Priority            Priority         `json:"priority"`
	ReportedBy          string           `json:"reported_by"`
	Status              SuggestionStatus `json:"status"`
	AdminAnalysis       string           `json:"admin_analysis,omitempty"`
	ImplementationNotes string           `json:"implementation_notes,omitempty"`
	CompletionNotes     string           `json:"completion_notes,omitempty"`
	ReviewedBy          string           `json:"reviewed_by,omitempty"`
	Revision            int              `json:"revision"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	ReviewedAt          *time.Time       `json:"reviewed_at,omitempty"`
	ResolvedAt          *time.Time       `json:"resolved_at,omitempty"`
}

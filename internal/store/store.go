package store

import (
	"context"

	"github.com/joescharf/intentcfg/internal/models"
)

// PatternListFilter specifies filters for listing patterns. Results keep
// insertion order unless SortByPriority is set.
type PatternListFilter struct {
	VersionID      string
	Handler        string
	Intent         string
	Kind           models.PatternKind
	EnabledOnly    bool
	SortByPriority bool
}

// TemplateListFilter specifies filters for listing templates.
type TemplateListFilter struct {
	VersionID   string
	Handler     string
	Intent      string
	Type        models.TemplateType
	EnabledOnly bool
}

// SuggestionListFilter specifies filters for listing suggestions.
type SuggestionListFilter struct {
	Status   models.SuggestionStatus
	Type     models.SuggestionType
	Priority models.Priority
	Handler  string
}

// ActionItemListFilter specifies filters for listing action items.
type ActionItemListFilter struct {
	SuggestionID string
	Status       models.ActionItemStatus
	AssignedTo   string
}

// Store defines the persistence interface. Implementations enforce the
// cross-row invariants: a single active version, immutable archived
// versions, and action items only under approved suggestions.
type Store interface {
	// Config versions
	CreateVersion(ctx context.Context, v *models.ConfigVersion, copyFromID string) error
	GetVersion(ctx context.Context, id string) (*models.ConfigVersion, error)
	GetActiveVersion(ctx context.Context) (*models.ConfigVersion, error)
	ListVersions(ctx context.Context, status models.VersionStatus) ([]*models.ConfigVersion, error)
	UpdateVersionNotes(ctx context.Context, id, name, notes string) error
	// PromoteVersion activates a candidate and archives the previously active
	// version in one transaction. It returns the archived version's id, if any.
	PromoteVersion(ctx context.Context, id string) (string, error)
	// ArchiveVersion archives a version. Archiving the active version requires force.
	ArchiveVersion(ctx context.Context, id string, force bool) error

	// Patterns
	CreatePattern(ctx context.Context, p *models.Pattern) error
	GetPattern(ctx context.Context, id string) (*models.Pattern, error)
	ListPatterns(ctx context.Context, filter PatternListFilter) ([]*models.Pattern, error)
	UpdatePattern(ctx context.Context, p *models.Pattern) error
	DeletePattern(ctx context.Context, id string) error

	// Templates
	CreateTemplate(ctx context.Context, t *models.Template) error
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	ListTemplates(ctx context.Context, filter TemplateListFilter) ([]*models.Template, error)
	UpdateTemplate(ctx context.Context, t *models.Template) error
	DeleteTemplate(ctx context.Context, id string) error

	// Suggestions
	CreateSuggestion(ctx context.Context, s *models.Suggestion) error
	GetSuggestion(ctx context.Context, id string) (*models.Suggestion, error)
	ListSuggestions(ctx context.Context, filter SuggestionListFilter) ([]*models.Suggestion, error)
	// UpdateSuggestionState writes s if its stored revision still equals
	// s.Revision, then inserts items in the same transaction.
	UpdateSuggestionState(ctx context.Context, s *models.Suggestion, items []*models.ActionItem) error

	// Action items
	CreateActionItem(ctx context.Context, item *models.ActionItem) error
	GetActionItem(ctx context.Context, id string) (*models.ActionItem, error)
	ListActionItems(ctx context.Context, filter ActionItemListFilter) ([]*models.ActionItem, error)
	// UpdateActionItemStatus applies item's status fields only if the stored
	// status still equals expected.
	UpdateActionItemStatus(ctx context.Context, item *models.ActionItem, expected models.ActionItemStatus) error
	CountActionItems(ctx context.Context, suggestionID string, status models.ActionItemStatus) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

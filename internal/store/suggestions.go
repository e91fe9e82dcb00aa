package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/intentcfg/internal/errs"
	"github.com/joescharf/intentcfg/internal/models"
)

const suggestionColumns = `id, message_ref, suggestion_type, title, description, target_handler, target_intent,
	proposed_pattern, proposed_template, priority, reported_by, status, admin_analysis, implementation_notes,
	completion_notes, reviewed_by, revision, created_at, updated_at, reviewed_at, resolved_at`

func scanSuggestion(row rowScanner) (*models.Suggestion, error) {
	s := &models.Suggestion{}
	var sugType, priority, status string
	var reviewedAt, resolvedAt sql.NullTime
	if err := row.Scan(&s.ID, &s.MessageRef, &sugType, &s.Title, &s.Description, &s.TargetHandler, &s.TargetIntent,
		&s.ProposedPattern, &s.ProposedTemplate, &priority, &s.ReportedBy, &status, &s.AdminAnalysis,
		&s.ImplementationNotes, &s.CompletionNotes, &s.ReviewedBy, &s.Revision, &s.CreatedAt, &s.UpdatedAt,
		&reviewedAt, &resolvedAt); err != nil {
		return nil, err
	}
	s.Type = models.SuggestionType(sugType)
	s.Priority = models.Priority(priority)
	s.Status = models.SuggestionStatus(status)
	s.ReviewedAt = nullTime(reviewedAt)
	s.ResolvedAt = nullTime(resolvedAt)
	return s, nil
}

// CreateSuggestion inserts a new suggestion.
func (s *SQLiteStore) CreateSuggestion(ctx context.Context, sug *models.Suggestion) error {
	if sug.ID == "" {
		sug.ID = newULID()
	}
	now := time.Now().UTC()
	sug.CreatedAt = now
	sug.UpdatedAt = now
	sug.Revision = 0

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO suggestions (id, message_ref, suggestion_type, title, description, target_handler, target_intent,
		proposed_pattern, proposed_template, priority, reported_by, status, admin_analysis, implementation_notes,
		completion_notes, reviewed_by, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		sug.ID, sug.MessageRef, string(sug.Type), sug.Title, sug.Description, sug.TargetHandler, sug.TargetIntent,
		sug.ProposedPattern, sug.ProposedTemplate, string(sug.Priority), sug.ReportedBy, string(sug.Status),
		sug.AdminAnalysis, sug.ImplementationNotes, sug.CompletionNotes, sug.ReviewedBy, sug.CreatedAt, sug.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errs.E(errs.Conflict, "create suggestion", "suggestion already exists: %s", sug.ID)
	}
	if err != nil {
		return fmt.Errorf("create suggestion: %w", err)
	}
	return nil
}

func getSuggestion(ctx context.Context, q querier, op, id string) (*models.Suggestion, error) {
	sug, err := scanSuggestion(q.QueryRowContext(ctx, "SELECT "+suggestionColumns+" FROM suggestions WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, errs.E(errs.NotFound, op, "suggestion not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sug, nil
}

// GetSuggestion retrieves a suggestion by ID.
func (s *SQLiteStore) GetSuggestion(ctx context.Context, id string) (*models.Suggestion, error) {
	return getSuggestion(ctx, s.db, "get suggestion", id)
}

// ListSuggestions returns suggestions ordered by priority then age.
func (s *SQLiteStore) ListSuggestions(ctx context.Context, filter SuggestionListFilter) ([]*models.Suggestion, error) {
	query := "SELECT " + suggestionColumns + " FROM suggestions"
	var conditions []string
	var args []any

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Type != "" {
		conditions = append(conditions, "suggestion_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(filter.Priority))
	}
	if filter.Handler != "" {
		conditions = append(conditions, "target_handler = ?")
		args = append(args, filter.Handler)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY
		CASE priority WHEN 'critical' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 WHEN 'low' THEN 3 ELSE 4 END,
		created_at, rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var suggestions []*models.Suggestion
	for rows.Next() {
		sug, err := scanSuggestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan suggestion: %w", err)
		}
		suggestions = append(suggestions, sug)
	}
	return suggestions, rows.Err()
}

// UpdateSuggestionState stores the mutable workflow fields of sug, guarded
// by its revision, and inserts items under it in the same transaction. On
// success sug.Revision is advanced.
func (s *SQLiteStore) UpdateSuggestionState(ctx context.Context, sug *models.Suggestion, items []*models.ActionItem) error {
	const op = "update suggestion"
	now := time.Now().UTC()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE suggestions SET status = ?, admin_analysis = ?, implementation_notes = ?, completion_notes = ?,
			reviewed_by = ?, reviewed_at = ?, resolved_at = ?, revision = revision + 1, updated_at = ?
			WHERE id = ? AND revision = ?`,
			string(sug.Status), sug.AdminAnalysis, sug.ImplementationNotes, sug.CompletionNotes,
			sug.ReviewedBy, timeArg(sug.ReviewedAt), timeArg(sug.ResolvedAt), now, sug.ID, sug.Revision,
		)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			if _, err := getSuggestion(ctx, tx, op, sug.ID); err != nil {
				return err
			}
			return errs.E(errs.Conflict, op, "suggestion %s was modified concurrently", sug.ID)
		}

		for _, item := range items {
			item.SuggestionID = sug.ID
			if err := insertActionItem(ctx, tx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	sug.Revision++
	sug.UpdatedAt = now
	return nil
}

// --- Action items ---

const actionItemColumns = `id, suggestion_id, title, description, priority, implementation_type, status,
	assigned_to, due_date, completion_notes, created_by, created_at, updated_at, completed_at`

func scanActionItem(row rowScanner) (*models.ActionItem, error) {
	item := &models.ActionItem{}
	var priority, implType, status string
	var dueDate, completedAt sql.NullTime
	var notes sql.NullString
	if err := row.Scan(&item.ID, &item.SuggestionID, &item.Title, &item.Description, &priority, &implType, &status,
		&item.AssignedTo, &dueDate, &notes, &item.CreatedBy, &item.CreatedAt, &item.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}
	item.Priority = models.Priority(priority)
	item.ImplementationType = models.ImplementationType(implType)
	item.Status = models.ActionItemStatus(status)
	item.DueDate = nullTime(dueDate)
	item.CompletedAt = nullTime(completedAt)
	if notes.Valid {
		n := notes.String
		item.CompletionNotes = &n
	}
	return item, nil
}

func insertActionItem(ctx context.Context, q querier, item *models.ActionItem) error {
	if item.ID == "" {
		item.ID = newULID()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := q.ExecContext(ctx,
		`INSERT INTO action_items (id, suggestion_id, title, description, priority, implementation_type, status,
		assigned_to, due_date, completion_notes, created_by, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.SuggestionID, item.Title, item.Description, string(item.Priority),
		string(item.ImplementationType), string(item.Status), item.AssignedTo, timeArg(item.DueDate),
		stringArg(item.CompletionNotes), item.CreatedBy, item.CreatedAt, item.UpdatedAt, timeArg(item.CompletedAt),
	)
	if isUniqueViolation(err) {
		return errs.E(errs.Conflict, "create action item", "action item already exists: %s", item.ID)
	}
	if err != nil {
		return fmt.Errorf("create action item: %w", err)
	}
	return nil
}

// CreateActionItem inserts an action item. The parent suggestion must be approved.
func (s *SQLiteStore) CreateActionItem(ctx context.Context, item *models.ActionItem) error {
	const op = "create action item"
	return s.inTx(ctx, func(tx *sql.Tx) error {
		sug, err := getSuggestion(ctx, tx, op, item.SuggestionID)
		if err != nil {
			return err
		}
		if sug.Status != models.SuggestionStatusApproved {
			return errs.E(errs.InvalidState, op, "suggestion %s is %s, action items require an approved suggestion", sug.ID, sug.Status)
		}
		return insertActionItem(ctx, tx, item)
	})
}

// GetActionItem retrieves an action item by ID.
func (s *SQLiteStore) GetActionItem(ctx context.Context, id string) (*models.ActionItem, error) {
	item, err := scanActionItem(s.db.QueryRowContext(ctx, "SELECT "+actionItemColumns+" FROM action_items WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, errs.E(errs.NotFound, "get action item", "action item not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get action item: %w", err)
	}
	return item, nil
}

// ListActionItems returns action items in creation order.
func (s *SQLiteStore) ListActionItems(ctx context.Context, filter ActionItemListFilter) ([]*models.ActionItem, error) {
	query := "SELECT " + actionItemColumns + " FROM action_items"
	var conditions []string
	var args []any

	if filter.SuggestionID != "" {
		conditions = append(conditions, "suggestion_id = ?")
		args = append(args, filter.SuggestionID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.AssignedTo != "" {
		conditions = append(conditions, "assigned_to = ?")
		args = append(args, filter.AssignedTo)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at, rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list action items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []*models.ActionItem
	for rows.Next() {
		item, err := scanActionItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan action item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// UpdateActionItemStatus writes item's status, notes and completion time if
// the stored status still equals expected.
func (s *SQLiteStore) UpdateActionItemStatus(ctx context.Context, item *models.ActionItem, expected models.ActionItemStatus) error {
	const op = "update action item"
	item.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`UPDATE action_items SET status = ?, completion_notes = ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(item.Status), stringArg(item.CompletionNotes), timeArg(item.CompletedAt), item.UpdatedAt, item.ID, string(expected),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := s.GetActionItem(ctx, item.ID); err != nil {
			return err
		}
		return errs.E(errs.Conflict, op, "action item %s is no longer %s", item.ID, expected)
	}
	return nil
}

// CountActionItems counts items under a suggestion. An empty status counts all.
func (s *SQLiteStore) CountActionItems(ctx context.Context, suggestionID string, status models.ActionItemStatus) (int, error) {
	query := "SELECT COUNT(*) FROM action_items WHERE suggestion_id = ?"
	args := []any{suggestionID}
	if status != "" {
		query += " AND status = ?"
		args = append(args, string(status))
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count action items: %w", err)
	}
	return n, nil
}

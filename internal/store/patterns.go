package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/joescharf/intentcfg/internal/errs"
	"github.com/joescharf/intentcfg/internal/models"
)

const patternColumns = `id, version_id, handler, intent, kind, expression, phrases, rules, priority, enabled,
	scope, confidence, rationale, created_at, updated_at`

func scanPattern(row rowScanner) (*models.Pattern, error) {
	p := &models.Pattern{}
	var kind, phrases, rules string
	var enabled int
	if err := row.Scan(&p.ID, &p.VersionID, &p.Handler, &p.Intent, &kind, &p.Expression, &phrases, &rules,
		&p.Priority, &enabled, &p.Scope, &p.Confidence, &p.Rationale, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Kind = models.PatternKind(kind)
	p.Enabled = enabled != 0
	if err := json.Unmarshal([]byte(phrases), &p.Phrases); err != nil {
		return nil, fmt.Errorf("decode phrases of pattern %s: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(rules), &p.Rules); err != nil {
		return nil, fmt.Errorf("decode rules of pattern %s: %w", p.ID, err)
	}
	return p, nil
}

func insertPattern(ctx context.Context, q querier, p *models.Pattern) error {
	if p.ID == "" {
		p.ID = newULID()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now

	phrases, err := marshalList(p.Phrases)
	if err != nil {
		return fmt.Errorf("encode phrases: %w", err)
	}
	rules, err := marshalList(p.Rules)
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO patterns (id, version_id, handler, intent, kind, expression, phrases, rules, priority, enabled, scope, confidence, rationale, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.VersionID, p.Handler, p.Intent, string(p.Kind), p.Expression, phrases, rules,
		p.Priority, boolToInt(p.Enabled), p.Scope, p.Confidence, p.Rationale, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errs.E(errs.Conflict, "create pattern", "pattern already exists: %s", p.ID)
	}
	if err != nil {
		return fmt.Errorf("create pattern: %w", err)
	}
	return nil
}

func listPatterns(ctx context.Context, q querier, filter PatternListFilter) ([]*models.Pattern, error) {
	query := "SELECT " + patternColumns + " FROM patterns"
	var conditions []string
	var args []any

	if filter.VersionID != "" {
		conditions = append(conditions, "version_id = ?")
		args = append(args, filter.VersionID)
	}
	if filter.Handler != "" {
		conditions = append(conditions, "handler = ?")
		args = append(args, filter.Handler)
	}
	if filter.Intent != "" {
		conditions = append(conditions, "intent = ?")
		args = append(args, filter.Intent)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.EnabledOnly {
		conditions = append(conditions, "enabled = 1")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if filter.SortByPriority {
		query += " ORDER BY priority DESC, rowid"
	} else {
		query += " ORDER BY rowid"
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []*models.Pattern
	for rows.Next() {
		p, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func getPattern(ctx context.Context, q querier, op, id string) (*models.Pattern, error) {
	p, err := scanPattern(q.QueryRowContext(ctx, "SELECT "+patternColumns+" FROM patterns WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, errs.E(errs.NotFound, op, "pattern not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// CreatePattern inserts a pattern into a non-archived version.
func (s *SQLiteStore) CreatePattern(ctx context.Context, p *models.Pattern) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := versionGuard(ctx, tx, "create pattern", p.VersionID); err != nil {
			return err
		}
		return insertPattern(ctx, tx, p)
	})
}

// GetPattern retrieves a pattern by ID.
func (s *SQLiteStore) GetPattern(ctx context.Context, id string) (*models.Pattern, error) {
	return getPattern(ctx, s.db, "get pattern", id)
}

// ListPatterns returns patterns matching the filter.
func (s *SQLiteStore) ListPatterns(ctx context.Context, filter PatternListFilter) ([]*models.Pattern, error) {
	return listPatterns(ctx, s.db, filter)
}

// UpdatePattern rewrites a pattern. The pattern keeps its stored version;
// p.VersionID is ignored.
func (s *SQLiteStore) UpdatePattern(ctx context.Context, p *models.Pattern) error {
	const op = "update pattern"
	return s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getPattern(ctx, tx, op, p.ID)
		if err != nil {
			return err
		}
		if err := versionGuard(ctx, tx, op, current.VersionID); err != nil {
			return err
		}

		phrases, err := marshalList(p.Phrases)
		if err != nil {
			return fmt.Errorf("encode phrases: %w", err)
		}
		rules, err := marshalList(p.Rules)
		if err != nil {
			return fmt.Errorf("encode rules: %w", err)
		}

		p.VersionID = current.VersionID
		p.CreatedAt = current.CreatedAt
		p.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx,
			`UPDATE patterns SET handler = ?, intent = ?, kind = ?, expression = ?, phrases = ?, rules = ?,
			priority = ?, enabled = ?, scope = ?, confidence = ?, rationale = ?, updated_at = ?
			WHERE id = ?`,
			p.Handler, p.Intent, string(p.Kind), p.Expression, phrases, rules,
			p.Priority, boolToInt(p.Enabled), p.Scope, p.Confidence, p.Rationale, p.UpdatedAt, p.ID,
		)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}

// DeletePattern removes a pattern from a non-archived version.
func (s *SQLiteStore) DeletePattern(ctx context.Context, id string) error {
	const op = "delete pattern"
	return s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getPattern(ctx, tx, op, id)
		if err != nil {
			return err
		}
		if err := versionGuard(ctx, tx, op, current.VersionID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM patterns WHERE id = ?", id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}

// --- Templates ---

const templateColumns = `id, version_id, handler, intent, template_type, body, enabled, created_at, updated_at`

func scanTemplate(row rowScanner) (*models.Template, error) {
	t := &models.Template{}
	var templateType string
	var enabled int
	if err := row.Scan(&t.ID, &t.VersionID, &t.Handler, &t.Intent, &templateType, &t.Body, &enabled,
		&t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Type = models.TemplateType(templateType)
	t.Enabled = enabled != 0
	return t, nil
}

func insertTemplate(ctx context.Context, q querier, t *models.Template) error {
	if t.ID == "" {
		t.ID = newULID()
	}
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	_, err := q.ExecContext(ctx,
		`INSERT INTO templates (id, version_id, handler, intent, template_type, body, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.VersionID, t.Handler, t.Intent, string(t.Type), t.Body, boolToInt(t.Enabled), t.CreatedAt, t.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return errs.E(errs.Conflict, "create template", "template already exists: %s", t.ID)
	}
	if err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

func listTemplates(ctx context.Context, q querier, filter TemplateListFilter) ([]*models.Template, error) {
	query := "SELECT " + templateColumns + " FROM templates"
	var conditions []string
	var args []any

	if filter.VersionID != "" {
		conditions = append(conditions, "version_id = ?")
		args = append(args, filter.VersionID)
	}
	if filter.Handler != "" {
		conditions = append(conditions, "handler = ?")
		args = append(args, filter.Handler)
	}
	if filter.Intent != "" {
		conditions = append(conditions, "intent = ?")
		args = append(args, filter.Intent)
	}
	if filter.Type != "" {
		conditions = append(conditions, "template_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.EnabledOnly {
		conditions = append(conditions, "enabled = 1")
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY rowid"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var templates []*models.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func getTemplate(ctx context.Context, q querier, op, id string) (*models.Template, error) {
	t, err := scanTemplate(q.QueryRowContext(ctx, "SELECT "+templateColumns+" FROM templates WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, errs.E(errs.NotFound, op, "template not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return t, nil
}

// CreateTemplate inserts a template into a non-archived version.
func (s *SQLiteStore) CreateTemplate(ctx context.Context, t *models.Template) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := versionGuard(ctx, tx, "create template", t.VersionID); err != nil {
			return err
		}
		return insertTemplate(ctx, tx, t)
	})
}

// GetTemplate retrieves a template by ID.
func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*models.Template, error) {
	return getTemplate(ctx, s.db, "get template", id)
}

// ListTemplates returns templates matching the filter in insertion order.
func (s *SQLiteStore) ListTemplates(ctx context.Context, filter TemplateListFilter) ([]*models.Template, error) {
	return listTemplates(ctx, s.db, filter)
}

// UpdateTemplate rewrites a template in place.
func (s *SQLiteStore) UpdateTemplate(ctx context.Context, t *models.Template) error {
	const op = "update template"
	return s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getTemplate(ctx, tx, op, t.ID)
		if err != nil {
			return err
		}
		if err := versionGuard(ctx, tx, op, current.VersionID); err != nil {
			return err
		}
		t.VersionID = current.VersionID
		t.CreatedAt = current.CreatedAt
		t.UpdatedAt = time.Now().UTC()
		_, err = tx.ExecContext(ctx,
			`UPDATE templates SET handler = ?, intent = ?, template_type = ?, body = ?, enabled = ?, updated_at = ?
			WHERE id = ?`,
			t.Handler, t.Intent, string(t.Type), t.Body, boolToInt(t.Enabled), t.UpdatedAt, t.ID,
		)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}

// DeleteTemplate removes a template from a non-archived version.
func (s *SQLiteStore) DeleteTemplate(ctx context.Context, id string) error {
	const op = "delete template"
	return s.inTx(ctx, func(tx *sql.Tx) error {
		current, err := getTemplate(ctx, tx, op, id)
		if err != nil {
			return err
		}
		if err := versionGuard(ctx, tx, op, current.VersionID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM templates WHERE id = ?", id); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}

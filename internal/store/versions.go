package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/joescharf/intentcfg/internal/errs"
	"github.com/joescharf/intentcfg/internal/models"
)

const versionColumns = `id, name, status, notes, revision, created_at, updated_at, activated_at, archived_at,
	(SELECT COUNT(*) FROM patterns WHERE patterns.version_id = config_versions.id),
	(SELECT COUNT(*) FROM templates WHERE templates.version_id = config_versions.id)`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*models.ConfigVersion, error) {
	v := &models.ConfigVersion{}
	var status string
	var activatedAt, archivedAt sql.NullTime
	if err := row.Scan(&v.ID, &v.Name, &status, &v.Notes, &v.Revision, &v.CreatedAt, &v.UpdatedAt,
		&activatedAt, &archivedAt, &v.PatternCount, &v.TemplateCount); err != nil {
		return nil, err
	}
	v.Status = models.VersionStatus(status)
	v.ActivatedAt = nullTime(activatedAt)
	v.ArchivedAt = nullTime(archivedAt)
	return v, nil
}

func getVersion(ctx context.Context, q querier, op, id string) (*models.ConfigVersion, error) {
	v, err := scanVersion(q.QueryRowContext(ctx, "SELECT "+versionColumns+" FROM config_versions WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, errs.E(errs.NotFound, op, "version not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

// CreateVersion inserts a candidate version. When copyFromID is set, every
// pattern and template of that version is cloned into the new one in the
// same transaction.
func (s *SQLiteStore) CreateVersion(ctx context.Context, v *models.ConfigVersion, copyFromID string) error {
	const op = "create version"
	if v.ID == "" {
		v.ID = newULID()
	}
	now := time.Now().UTC()
	v.Status = models.VersionStatusCandidate
	v.Revision = 0
	v.CreatedAt = now
	v.UpdatedAt = now
	v.ActivatedAt = nil
	v.ArchivedAt = nil

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if copyFromID != "" {
			if _, err := getVersion(ctx, tx, op, copyFromID); err != nil {
				return err
			}
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO config_versions (id, name, status, notes, revision, created_at, updated_at)
			VALUES (?, ?, ?, ?, 0, ?, ?)`,
			v.ID, v.Name, string(v.Status), v.Notes, v.CreatedAt, v.UpdatedAt,
		)
		if isUniqueViolation(err) {
			return errs.E(errs.Conflict, op, "version already exists: %s", v.ID)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if copyFromID == "" {
			return nil
		}

		patterns, err := listPatterns(ctx, tx, PatternListFilter{VersionID: copyFromID})
		if err != nil {
			return err
		}
		for _, p := range patterns {
			clone := *p
			clone.ID = ""
			clone.VersionID = v.ID
			if err := insertPattern(ctx, tx, &clone); err != nil {
				return err
			}
		}
		templates, err := listTemplates(ctx, tx, TemplateListFilter{VersionID: copyFromID})
		if err != nil {
			return err
		}
		for _, t := range templates {
			clone := *t
			clone.ID = ""
			clone.VersionID = v.ID
			if err := insertTemplate(ctx, tx, &clone); err != nil {
				return err
			}
		}
		v.PatternCount = len(patterns)
		v.TemplateCount = len(templates)
		return nil
	})
}

// GetVersion retrieves a version by ID.
func (s *SQLiteStore) GetVersion(ctx context.Context, id string) (*models.ConfigVersion, error) {
	return getVersion(ctx, s.db, "get version", id)
}

// GetActiveVersion returns the active version, or a NotFound error when none is active.
func (s *SQLiteStore) GetActiveVersion(ctx context.Context) (*models.ConfigVersion, error) {
	v, err := scanVersion(s.db.QueryRowContext(ctx,
		"SELECT "+versionColumns+" FROM config_versions WHERE status = 'active'"))
	if err == sql.ErrNoRows {
		return nil, errs.E(errs.NotFound, "get active version", "no active version")
	}
	if err != nil {
		return nil, fmt.Errorf("get active version: %w", err)
	}
	return v, nil
}

// ListVersions returns versions in creation order, optionally filtered by status.
func (s *SQLiteStore) ListVersions(ctx context.Context, status models.VersionStatus) ([]*models.ConfigVersion, error) {
	query := "SELECT " + versionColumns + " FROM config_versions"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at, rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []*models.ConfigVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// UpdateVersionNotes renames a version or edits its notes. Archived versions are read-only.
func (s *SQLiteStore) UpdateVersionNotes(ctx context.Context, id, name, notes string) error {
	const op = "update version"
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := versionGuard(ctx, tx, op, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE config_versions SET name = ?, notes = ?, revision = revision + 1, updated_at = ? WHERE id = ?`,
			name, notes, time.Now().UTC(), id,
		)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
}

// PromoteVersion activates a candidate. The previously active version, if
// any, is archived in the same transaction, so observers never see two
// active versions or a gap between them.
func (s *SQLiteStore) PromoteVersion(ctx context.Context, id string) (string, error) {
	const op = "promote version"
	var archivedID string

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		v, err := getVersion(ctx, tx, op, id)
		if err != nil {
			return err
		}
		if v.Status != models.VersionStatusCandidate {
			return errs.E(errs.InvalidState, op, "version %s is %s, only candidates can be promoted", id, v.Status)
		}

		now := time.Now().UTC()
		err = tx.QueryRowContext(ctx, "SELECT id FROM config_versions WHERE status = 'active'").Scan(&archivedID)
		switch {
		case err == sql.ErrNoRows:
			archivedID = ""
		case err != nil:
			return fmt.Errorf("%s: load active: %w", op, err)
		default:
			if _, err := tx.ExecContext(ctx,
				`UPDATE config_versions SET status = 'archived', archived_at = ?, updated_at = ?, revision = revision + 1
				WHERE id = ? AND status = 'active'`,
				now, now, archivedID,
			); err != nil {
				return fmt.Errorf("%s: archive previous: %w", op, err)
			}
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE config_versions SET status = 'active', activated_at = ?, updated_at = ?, revision = revision + 1
			WHERE id = ? AND status = 'candidate' AND revision = ?`,
			now, now, id, v.Revision,
		)
		if isUniqueViolation(err) {
			return errs.E(errs.Conflict, op, "another version became active concurrently")
		}
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errs.E(errs.Conflict, op, "version %s changed concurrently", id)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return archivedID, nil
}

// ArchiveVersion archives a candidate, or the active version when force is
// set. Force-archiving the active version leaves the system with no active
// version.
func (s *SQLiteStore) ArchiveVersion(ctx context.Context, id string, force bool) error {
	const op = "archive version"
	return s.inTx(ctx, func(tx *sql.Tx) error {
		v, err := getVersion(ctx, tx, op, id)
		if err != nil {
			return err
		}
		switch v.Status {
		case models.VersionStatusArchived:
			return errs.E(errs.InvalidState, op, "version %s is already archived", id)
		case models.VersionStatusActive:
			if !force {
				return errs.E(errs.InvalidState, op, "version %s is active; promote another version or force the archive", id)
			}
		}

		now := time.Now().UTC()
		res, err := tx.ExecContext(ctx,
			`UPDATE config_versions SET status = 'archived', archived_at = ?, updated_at = ?, revision = revision + 1
			WHERE id = ? AND revision = ?`,
			now, now, id, v.Revision,
		)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errs.E(errs.Conflict, op, "version %s changed concurrently", id)
		}
		return nil
	})
}

package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/errors"
)

const relationshipColumns = `id, name, level, xp, reminder_interval, photo_url, tags_json, version, created_at, updated_at`

// CreateRelationship inserts rel with its initial categories. Each category
// link gets an "added" history row stamped with rel.CreatedAt. rel.Categories
// is rewritten to the vocabulary's canonical spelling.
func (d *DB) CreateRelationship(ctx context.Context, rel *domain.Relationship) error {
	tags, err := encodeTags(rel.Tags)
	if err != nil {
		return errors.NewInternal(err)
	}

	err = d.inTx(ctx, func(tx *sql.Tx) error {
		_, err := d.exec(ctx, tx, `
			INSERT INTO relationships (`+relationshipColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rel.ID, rel.Name, rel.Level, rel.XP, nullInterval(rel.ReminderInterval),
			toNullString(rel.PhotoURL), tags, rel.Version,
			toMillis(rel.CreatedAt), toMillis(rel.UpdatedAt),
		)
		if err != nil {
			if isUniqueConstraintError(err) {
				return errors.NewConflict("relationship already exists: " + rel.ID)
			}
			return err
		}

		canonical := make([]string, 0, len(rel.Categories))
		for i, name := range rel.Categories {
			cat, err := d.ensureCategory(ctx, tx, name, rel.CreatedAt)
			if err != nil {
				return err
			}
			if err := d.linkCategory(ctx, tx, rel.ID, cat, i, rel.CreatedAt); err != nil {
				return err
			}
			if err := d.appendCategoryHistory(ctx, tx, rel.ID, cat.Name, domain.CategoryAdded, true, rel.CreatedAt); err != nil {
				return err
			}
			canonical = append(canonical, cat.Name)
		}
		rel.Categories = canonical
		return nil
	})
	return internal(err)
}

// GetRelationship loads a relationship with its active categories.
func (d *DB) GetRelationship(ctx context.Context, id string) (*domain.Relationship, error) {
	row := d.queryRow(ctx, d.sql, `SELECT `+relationshipColumns+` FROM relationships WHERE id = ?`, id)
	rel, err := scanRelationship(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("relationship", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	cats, err := d.categoriesFor(ctx, []string{id})
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	rel.Categories = cats[id]
	return rel, nil
}

// ListRelationships returns a page of relationships, newest first, and the
// total count.
func (d *DB) ListRelationships(ctx context.Context, limit, offset int) ([]domain.Relationship, int, error) {
	var total int
	if err := d.queryRow(ctx, d.sql, `SELECT COUNT(*) FROM relationships`).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	rels, err := d.listRelationships(ctx,
		`SELECT `+relationshipColumns+` FROM relationships
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return rels, total, nil
}

// AllRelationships returns every relationship, oldest first.
func (d *DB) AllRelationships(ctx context.Context) ([]domain.Relationship, error) {
	return d.listRelationships(ctx,
		`SELECT `+relationshipColumns+` FROM relationships ORDER BY created_at ASC, id ASC`)
}

func (d *DB) listRelationships(ctx context.Context, query string, args ...any) ([]domain.Relationship, error) {
	rows, err := d.query(ctx, d.sql, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var rels []domain.Relationship
	var ids []string
	for rows.Next() {
		rel, err := scanRelationship(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		rels = append(rels, *rel)
		ids = append(ids, rel.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	cats, err := d.categoriesFor(ctx, ids)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	for i := range rels {
		rels[i].Categories = cats[rels[i].ID]
	}
	return rels, nil
}

// UpdateRelationshipProfile writes the user-editable fields. XP, level and
// version are untouched.
func (d *DB) UpdateRelationshipProfile(ctx context.Context, rel *domain.Relationship) error {
	tags, err := encodeTags(rel.Tags)
	if err != nil {
		return errors.NewInternal(err)
	}

	result, err := d.exec(ctx, d.sql, `
		UPDATE relationships
		SET name = ?, reminder_interval = ?, photo_url = ?, tags_json = ?, updated_at = ?
		WHERE id = ?`,
		rel.Name, nullInterval(rel.ReminderInterval), toNullString(rel.PhotoURL), tags,
		toMillis(rel.UpdatedAt), rel.ID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(result, "relationship", rel.ID)
}

// DeleteRelationship removes a relationship. Dependent rows cascade.
func (d *DB) DeleteRelationship(ctx context.Context, id string) error {
	result, err := d.exec(ctx, d.sql, `DELETE FROM relationships WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(result, "relationship", id)
}

// relationshipExists checks for id inside q.
func (d *DB) relationshipExists(ctx context.Context, q querier, id string) (bool, error) {
	var one int
	err := d.queryRow(ctx, q, `SELECT 1 FROM relationships WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func scanRelationship(s scanner) (*domain.Relationship, error) {
	var (
		rel       domain.Relationship
		interval  sql.NullString
		photoURL  sql.NullString
		tagsJSON  sql.NullString
		createdAt int64
		updatedAt int64
	)
	err := s.Scan(
		&rel.ID, &rel.Name, &rel.Level, &rel.XP, &interval, &photoURL, &tagsJSON,
		&rel.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rel.ReminderInterval = domain.ReminderInterval(interval.String)
	rel.PhotoURL = fromNullString(photoURL)
	if rel.Tags, err = decodeTags(tagsJSON); err != nil {
		return nil, err
	}
	rel.CreatedAt = fromMillis(createdAt)
	rel.UpdatedAt = fromMillis(updatedAt)
	return &rel, nil
}

func nullInterval(i domain.ReminderInterval) sql.NullString {
	if i == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(i), Valid: true}
}

// requireAffected maps a zero-row write to NOT_FOUND.
func requireAffected(result sql.Result, kind, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if n == 0 {
		return errors.NewNotFound(kind, id)
	}
	return nil
}

// touchRelationship bumps updated_at without touching the version.
func (d *DB) touchRelationship(ctx context.Context, q querier, id string, at time.Time) error {
	_, err := d.exec(ctx, q, `UPDATE relationships SET updated_at = ? WHERE id = ?`, toMillis(at), id)
	return err
}

package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/errors"
)

// ListCategories returns the category vocabulary ordered by name.
func (d *DB) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := d.query(ctx, d.sql, `SELECT id, name, created_at FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var cats []domain.Category
	for rows.Next() {
		var (
			c         domain.Category
			createdAt int64
		)
		if err := rows.Scan(&c.ID, &c.Name, &createdAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		c.CreatedAt = fromMillis(createdAt)
		cats = append(cats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return cats, nil
}

// ReplaceCategories makes names the relationship's active categories. Links
// present before and after keep their original timestamps; every addition
// and removal is appended to category_history. Returns the canonical names
// in the requested order.
func (d *DB) ReplaceCategories(ctx context.Context, relID string, names []string, userConfirmed bool, at time.Time) ([]string, error) {
	var canonical []string

	err := d.inTx(ctx, func(tx *sql.Tx) error {
		exists, err := d.relationshipExists(ctx, tx, relID)
		if err != nil {
			return err
		}
		if !exists {
			return errors.NewNotFound("relationship", relID)
		}

		current, err := d.links(ctx, tx, relID)
		if err != nil {
			return err
		}

		wanted := make(map[string]bool, len(names))
		for i, name := range names {
			cat, err := d.ensureCategory(ctx, tx, name, at)
			if err != nil {
				return err
			}
			if wanted[cat.ID] {
				continue
			}
			wanted[cat.ID] = true
			canonical = append(canonical, cat.Name)

			if _, linked := current[cat.ID]; linked {
				if _, err := d.exec(ctx, tx,
					`UPDATE relationship_categories SET position = ? WHERE relationship_id = ? AND category_id = ?`,
					i, relID, cat.ID); err != nil {
					return err
				}
				continue
			}
			if err := d.linkCategory(ctx, tx, relID, cat, i, at); err != nil {
				return err
			}
			if err := d.appendCategoryHistory(ctx, tx, relID, cat.Name, domain.CategoryAdded, userConfirmed, at); err != nil {
				return err
			}
		}

		for id, name := range current {
			if wanted[id] {
				continue
			}
			if _, err := d.exec(ctx, tx,
				`DELETE FROM relationship_categories WHERE relationship_id = ? AND category_id = ?`,
				relID, id); err != nil {
				return err
			}
			if err := d.appendCategoryHistory(ctx, tx, relID, name, domain.CategoryRemoved, userConfirmed, at); err != nil {
				return err
			}
		}

		return d.touchRelationship(ctx, tx, relID, at)
	})
	if err != nil {
		return nil, internal(err)
	}
	return canonical, nil
}

// ListCategoryHistory returns a relationship's category changes, oldest first.
func (d *DB) ListCategoryHistory(ctx context.Context, relID string) ([]domain.CategoryHistoryEntry, error) {
	rows, err := d.query(ctx, d.sql, `
		SELECT id, relationship_id, category, change_type, user_confirmed, created_at
		FROM category_history
		WHERE relationship_id = ?
		ORDER BY created_at ASC, id ASC`, relID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []domain.CategoryHistoryEntry
	for rows.Next() {
		var (
			e         domain.CategoryHistoryEntry
			change    string
			confirmed int
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.RelationshipID, &e.Category, &change, &confirmed, &createdAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		e.ChangeType = domain.CategoryChange(change)
		e.UserConfirmed = confirmed != 0
		e.CreatedAt = fromMillis(createdAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// ensureCategory returns the vocabulary entry for name, adding it if new.
func (d *DB) ensureCategory(ctx context.Context, q querier, name string, at time.Time) (domain.Category, error) {
	clean := domain.CleanCategory(name)
	norm := domain.NormalizeCategory(name)

	if _, err := d.exec(ctx, q,
		`INSERT INTO categories (id, name, name_norm, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (name_norm) DO NOTHING`,
		domain.NewID(), clean, norm, toMillis(at)); err != nil {
		return domain.Category{}, err
	}

	var (
		c         domain.Category
		createdAt int64
	)
	err := d.queryRow(ctx, q, `SELECT id, name, created_at FROM categories WHERE name_norm = ?`, norm).
		Scan(&c.ID, &c.Name, &createdAt)
	if err != nil {
		return domain.Category{}, err
	}
	c.CreatedAt = fromMillis(createdAt)
	return c, nil
}

func (d *DB) linkCategory(ctx context.Context, q querier, relID string, cat domain.Category, position int, at time.Time) error {
	_, err := d.exec(ctx, q, `
		INSERT INTO relationship_categories (relationship_id, category_id, position, created_at)
		VALUES (?, ?, ?, ?)`,
		relID, cat.ID, position, toMillis(at))
	return err
}

func (d *DB) appendCategoryHistory(ctx context.Context, q querier, relID, category string, change domain.CategoryChange, confirmed bool, at time.Time) error {
	_, err := d.exec(ctx, q, `
		INSERT INTO category_history (id, relationship_id, category, change_type, user_confirmed, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		domain.NewID(), relID, category, string(change), boolInt(confirmed), toMillis(at))
	return err
}

// links maps category id to name for a relationship's current links.
func (d *DB) links(ctx context.Context, q querier, relID string) (map[string]string, error) {
	rows, err := d.query(ctx, q, `
		SELECT c.id, c.name
		FROM relationship_categories rc
		JOIN categories c ON c.id = rc.category_id
		WHERE rc.relationship_id = ?`, relID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

// categoriesFor returns active category names per relationship, in link order.
func (d *DB) categoriesFor(ctx context.Context, relIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(relIDs))
	if len(relIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(relIDs))
	for i, id := range relIDs {
		args[i] = id
	}
	rows, err := d.query(ctx, d.sql, `
		SELECT rc.relationship_id, c.name
		FROM relationship_categories rc
		JOIN categories c ON c.id = rc.category_id
		WHERE rc.relationship_id IN (`+placeholders(len(relIDs))+`)
		ORDER BY rc.relationship_id, rc.position ASC, rc.created_at ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var relID, name string
		if err := rows.Scan(&relID, &name); err != nil {
			return nil, err
		}
		out[relID] = append(out[relID], name)
	}
	return out, rows.Err()
}

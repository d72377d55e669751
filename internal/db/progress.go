package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/errors"
)

// CommitProgress applies c in one transaction: the optional quest
// completion, the version-guarded XP/level write and the optional
// level-history row. A version mismatch returns STALE_VERSION and nothing is
// written; a quest that is no longer pending returns CONFLICT.
func (d *DB) CommitProgress(ctx context.Context, c domain.ProgressCommit) error {
	err := d.inTx(ctx, func(tx *sql.Tx) error {
		if c.CompleteQuestID != "" {
			result, err := d.exec(ctx, tx, `
				UPDATE quests SET status = ?, completed_at = ?
				WHERE id = ? AND relationship_id = ? AND status = ?`,
				string(domain.QuestCompleted), toMillis(c.CompletedAt),
				c.CompleteQuestID, c.RelationshipID, string(domain.QuestPending))
			if err != nil {
				return err
			}
			n, err := result.RowsAffected()
			if err != nil {
				return err
			}
			if n == 0 {
				return d.questNotPending(ctx, tx, c.CompleteQuestID)
			}
		}

		result, err := d.exec(ctx, tx, `
			UPDATE relationships
			SET xp = ?, level = ?, version = version + 1, updated_at = ?
			WHERE id = ? AND version = ?`,
			c.XP, c.Level, toMillis(c.UpdatedAt), c.RelationshipID, c.ExpectedVersion)
		if err != nil {
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			exists, err := d.relationshipExists(ctx, tx, c.RelationshipID)
			if err != nil {
				return err
			}
			if !exists {
				return errors.NewNotFound("relationship", c.RelationshipID)
			}
			return errors.NewStaleVersion(c.RelationshipID, c.ExpectedVersion)
		}

		if h := c.History; h != nil {
			if _, err := d.exec(ctx, tx, `
				INSERT INTO level_history (id, relationship_id, old_level, new_level, xp_gained, interaction_id, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				h.ID, h.RelationshipID, h.OldLevel, h.NewLevel, h.XPGained,
				toNullString(h.InteractionID), toMillis(h.CreatedAt)); err != nil {
				return err
			}
		}
		return nil
	})
	return internal(err)
}

func (d *DB) questNotPending(ctx context.Context, q querier, id string) error {
	var status string
	err := d.queryRow(ctx, q, `SELECT status FROM quests WHERE id = ?`, id).Scan(&status)
	if err == sql.ErrNoRows {
		return errors.NewNotFound("quest", id)
	}
	if err != nil {
		return err
	}
	return errors.NewConflict("quest already completed: " + id)
}

// ListLevelHistory returns level-ups for a relationship, oldest first.
func (d *DB) ListLevelHistory(ctx context.Context, relID string) ([]domain.LevelHistoryEntry, error) {
	rows, err := d.query(ctx, d.sql, `
		SELECT id, relationship_id, old_level, new_level, xp_gained, interaction_id, created_at
		FROM level_history
		WHERE relationship_id = ?
		ORDER BY created_at ASC, id ASC`, relID)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []domain.LevelHistoryEntry
	for rows.Next() {
		var (
			e             domain.LevelHistoryEntry
			interactionID sql.NullString
			createdAt     int64
		)
		if err := rows.Scan(&e.ID, &e.RelationshipID, &e.OldLevel, &e.NewLevel, &e.XPGained, &interactionID, &createdAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		e.InteractionID = fromNullString(interactionID)
		e.CreatedAt = fromMillis(createdAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

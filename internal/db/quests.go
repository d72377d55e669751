package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/errors"
)

const questColumns = `id, relationship_id, description, status, milestone_level, created_at, completed_at`

// InsertQuest stores a quest.
func (d *DB) InsertQuest(ctx context.Context, q *domain.Quest) error {
	_, err := d.exec(ctx, d.sql, `
		INSERT INTO quests (`+questColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		q.ID, q.RelationshipID, q.Description, string(q.Status), toNullInt(q.MilestoneLevel),
		toMillis(q.CreatedAt), toNullMillis(q.CompletedAt),
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetQuest loads one quest.
func (d *DB) GetQuest(ctx context.Context, id string) (*domain.Quest, error) {
	row := d.queryRow(ctx, d.sql, `SELECT `+questColumns+` FROM quests WHERE id = ?`, id)
	q, err := scanQuest(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("quest", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return q, nil
}

// ListQuests returns a relationship's quests, newest first. An empty status
// matches every quest.
func (d *DB) ListQuests(ctx context.Context, relID string, status domain.QuestStatus) ([]domain.Quest, error) {
	query := `SELECT ` + questColumns + ` FROM quests WHERE relationship_id = ?`
	args := []any{relID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id DESC`
	return d.listQuests(ctx, query, args...)
}

// ListActiveQuests returns pending quests across all relationships.
func (d *DB) ListActiveQuests(ctx context.Context) ([]domain.Quest, error) {
	return d.listQuests(ctx,
		`SELECT `+questColumns+` FROM quests WHERE status = ? ORDER BY created_at DESC, id DESC`,
		string(domain.QuestPending))
}

func (d *DB) listQuests(ctx context.Context, query string, args ...any) ([]domain.Quest, error) {
	rows, err := d.query(ctx, d.sql, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []domain.Quest
	for rows.Next() {
		q, err := scanQuest(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// DeleteQuest removes a quest.
func (d *DB) DeleteQuest(ctx context.Context, id string) error {
	result, err := d.exec(ctx, d.sql, `DELETE FROM quests WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(result, "quest", id)
}

func scanQuest(s scanner) (*domain.Quest, error) {
	var (
		q           domain.Quest
		status      string
		milestone   sql.NullInt64
		createdAt   int64
		completedAt sql.NullInt64
	)
	if err := s.Scan(&q.ID, &q.RelationshipID, &q.Description, &status, &milestone, &createdAt, &completedAt); err != nil {
		return nil, err
	}
	q.Status = domain.QuestStatus(status)
	q.MilestoneLevel = fromNullInt(milestone)
	q.CreatedAt = fromMillis(createdAt)
	q.CompletedAt = fromNullMillis(completedAt)
	return &q, nil
}

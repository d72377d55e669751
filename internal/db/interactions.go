package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/errors"
)

const interactionColumns = `id, relationship_id, interaction_log, tone_tag,
	sentiment, xp_gain, reasoning, patterns, evolution_suggestion, interaction_suggestion,
	classifier_fallback, classified_at, is_milestone, created_at, updated_at`

// InsertInteraction stores an unclassified interaction.
func (d *DB) InsertInteraction(ctx context.Context, in *domain.Interaction) error {
	_, err := d.exec(ctx, d.sql, `
		INSERT INTO interactions (id, relationship_id, interaction_log, tone_tag,
			classifier_fallback, is_milestone, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?)`,
		in.ID, in.RelationshipID, in.Log, toNullString(in.ToneTag),
		boolInt(in.IsMilestone), toMillis(in.CreatedAt), toMillis(in.UpdatedAt),
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// AnnotateInteraction writes the classification once. It reports false when
// the interaction was already classified.
func (d *DB) AnnotateInteraction(ctx context.Context, id string, c domain.Classification, fallback bool, at time.Time) (bool, error) {
	result, err := d.exec(ctx, d.sql, `
		UPDATE interactions
		SET sentiment = ?, xp_gain = ?, reasoning = ?, patterns = ?,
			evolution_suggestion = ?, interaction_suggestion = ?,
			classifier_fallback = ?, classified_at = ?, updated_at = ?
		WHERE id = ? AND classified_at IS NULL`,
		c.Sentiment, c.XPGain, c.Reasoning, toNullString(c.Patterns),
		toNullString(c.EvolutionSuggestion), toNullString(c.InteractionSuggestion),
		boolInt(fallback), toMillis(at), toMillis(at), id,
	)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}
	if n > 0 {
		return true, nil
	}
	if _, err := d.GetInteraction(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// GetInteraction loads one interaction.
func (d *DB) GetInteraction(ctx context.Context, id string) (*domain.Interaction, error) {
	row := d.queryRow(ctx, d.sql, `SELECT `+interactionColumns+` FROM interactions WHERE id = ?`, id)
	in, err := scanInteraction(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("interaction", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return in, nil
}

// ListInteractions returns a relationship's interactions, newest first.
// limit <= 0 returns all of them.
func (d *DB) ListInteractions(ctx context.Context, relID string, limit int) ([]domain.Interaction, error) {
	query := `SELECT ` + interactionColumns + ` FROM interactions
		WHERE relationship_id = ?
		ORDER BY created_at DESC, id DESC`
	args := []any{relID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.query(ctx, d.sql, query, args...)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []domain.Interaction
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out = append(out, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// ListInteractionTimes returns id, relationship and timestamp for every
// interaction. The global tree only needs recency.
func (d *DB) ListInteractionTimes(ctx context.Context) ([]domain.Interaction, error) {
	rows, err := d.query(ctx, d.sql, `SELECT id, relationship_id, created_at FROM interactions`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []domain.Interaction
	for rows.Next() {
		var (
			in        domain.Interaction
			createdAt int64
		)
		if err := rows.Scan(&in.ID, &in.RelationshipID, &createdAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		in.CreatedAt = fromMillis(createdAt)
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return out, nil
}

// SetInteractionMilestone flags or unflags an interaction as a milestone.
func (d *DB) SetInteractionMilestone(ctx context.Context, id string, milestone bool, at time.Time) error {
	result, err := d.exec(ctx, d.sql,
		`UPDATE interactions SET is_milestone = ?, updated_at = ? WHERE id = ?`,
		boolInt(milestone), toMillis(at), id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(result, "interaction", id)
}

// DeleteInteraction removes an interaction. Awarded XP is not revoked.
func (d *DB) DeleteInteraction(ctx context.Context, id string) error {
	result, err := d.exec(ctx, d.sql, `DELETE FROM interactions WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	return requireAffected(result, "interaction", id)
}

func scanInteraction(s scanner) (*domain.Interaction, error) {
	var (
		in           domain.Interaction
		toneTag      sql.NullString
		sentiment    sql.NullString
		xpGain       sql.NullInt64
		reasoning    sql.NullString
		patterns     sql.NullString
		evolution    sql.NullString
		suggestion   sql.NullString
		fallback     int
		classifiedAt sql.NullInt64
		milestone    int
		createdAt    int64
		updatedAt    int64
	)
	err := s.Scan(
		&in.ID, &in.RelationshipID, &in.Log, &toneTag,
		&sentiment, &xpGain, &reasoning, &patterns, &evolution, &suggestion,
		&fallback, &classifiedAt, &milestone, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	in.ToneTag = fromNullString(toneTag)
	in.ClassifierFallback = fallback != 0
	in.ClassifiedAt = fromNullMillis(classifiedAt)
	in.IsMilestone = milestone != 0
	in.CreatedAt = fromMillis(createdAt)
	in.UpdatedAt = fromMillis(updatedAt)

	if in.ClassifiedAt != nil {
		in.Classification = &domain.Classification{
			Sentiment:             sentiment.String,
			XPGain:                int(xpGain.Int64),
			Reasoning:             reasoning.String,
			Patterns:              fromNullString(patterns),
			EvolutionSuggestion:   fromNullString(evolution),
			InteractionSuggestion: fromNullString(suggestion),
		}
	}
	return &in, nil
}

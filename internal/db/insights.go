package db

import (
	"context"
	"database/sql"

	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/errors"
)

// GetInsights loads the stored snapshot for a relationship.
func (d *DB) GetInsights(ctx context.Context, relID string) (*domain.InsightsRecord, error) {
	var (
		payload     string
		generatedAt int64
	)
	err := d.queryRow(ctx, d.sql,
		`SELECT payload_json, generated_at FROM insights WHERE relationship_id = ?`, relID).
		Scan(&payload, &generatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("insights", relID)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &domain.InsightsRecord{
		RelationshipID: relID,
		Payload:        []byte(payload),
		GeneratedAt:    fromMillis(generatedAt),
	}, nil
}

// SaveInsights upserts the snapshot for rec.RelationshipID.
func (d *DB) SaveInsights(ctx context.Context, rec *domain.InsightsRecord) error {
	_, err := d.exec(ctx, d.sql, `
		INSERT INTO insights (relationship_id, payload_json, generated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (relationship_id) DO UPDATE
		SET payload_json = excluded.payload_json, generated_at = excluded.generated_at`,
		rec.RelationshipID, string(rec.Payload), toMillis(rec.GeneratedAt))
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

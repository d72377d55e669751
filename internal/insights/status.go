package insights

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hpungsan/grove/internal/domain"
)

// Status tags the outcome of reading a stored snapshot.
type Status string

const (
	StatusOK       Status = "ok"
	StatusStale    Status = "stale"
	StatusNotFound Status = "not_found"
)

// Read is the result of looking up a stored snapshot. Snapshot is nil only
// when Status is StatusNotFound.
type Read struct {
	Status      Status     `json:"status"`
	Snapshot    *Snapshot  `json:"snapshot,omitempty"`
	GeneratedAt *time.Time `json:"generated_at,omitempty"`
}

// Classify decodes rec and tags it by age. A nil rec is not found.
func Classify(rec *domain.InsightsRecord, maxAge time.Duration, now time.Time) (Read, error) {
	if rec == nil {
		return Read{Status: StatusNotFound}, nil
	}
	var snap Snapshot
	if err := json.Unmarshal(rec.Payload, &snap); err != nil {
		return Read{}, fmt.Errorf("decode insights for %s: %w", rec.RelationshipID, err)
	}
	generated := rec.GeneratedAt
	status := StatusOK
	if maxAge > 0 && now.Sub(generated) > maxAge {
		status = StatusStale
	}
	return Read{Status: status, Snapshot: &snap, GeneratedAt: &generated}, nil
}

// Encode turns a snapshot into a storable record.
func Encode(relationshipID string, snap Snapshot) (*domain.InsightsRecord, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("encode insights: %w", err)
	}
	return &domain.InsightsRecord{
		RelationshipID: relationshipID,
		Payload:        payload,
		GeneratedAt:    snap.GeneratedAt,
	}, nil
}

package ops

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/insights"
	"github.com/hpungsan/grove/internal/leveling"
	"github.com/hpungsan/grove/internal/metrics"
)

// GetInsightsInput contains parameters for GetInsights.
type GetInsightsInput struct {
	RelationshipID string
}

// GetInsights returns the stored snapshot tagged ok, stale or not_found.
// Missing and stale snapshots are results, not errors.
func (s *Service) GetInsights(ctx context.Context, input GetInsightsInput) (*insights.Read, error) {
	if strings.TrimSpace(input.RelationshipID) == "" {
		return nil, errors.NewInvalidRequest("relationship_id is required")
	}
	if _, err := s.store.GetRelationship(ctx, input.RelationshipID); err != nil {
		return nil, err
	}

	rec, err := s.store.GetInsights(ctx, input.RelationshipID)
	if err != nil && !errors.Is(err, errors.ErrNotFound) {
		return nil, err
	}
	read, err := insights.Classify(rec, s.cfg.Insights.MaxAge, s.now())
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return &read, nil
}

// RefreshInsightsInput contains parameters for RefreshInsights.
type RefreshInsightsInput struct {
	RelationshipID string
}

// RefreshInsights rebuilds and stores the snapshot now.
func (s *Service) RefreshInsights(ctx context.Context, input RefreshInsightsInput) (*insights.Read, error) {
	if strings.TrimSpace(input.RelationshipID) == "" {
		return nil, errors.NewInvalidRequest("relationship_id is required")
	}
	snap, err := s.regenerateInsights(ctx, input.RelationshipID)
	if err != nil {
		metrics.InsightsRefreshTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	metrics.InsightsRefreshTotal.WithLabelValues("ok").Inc()
	generated := snap.GeneratedAt
	return &insights.Read{Status: insights.StatusOK, Snapshot: snap, GeneratedAt: &generated}, nil
}

func (s *Service) regenerateInsights(ctx context.Context, relID string) (*insights.Snapshot, error) {
	rel, err := s.store.GetRelationship(ctx, relID)
	if err != nil {
		return nil, err
	}
	interactions, err := s.store.ListInteractions(ctx, rel.ID, 0)
	if err != nil {
		return nil, err
	}

	snap := s.insights.Build(ctx, insights.Subject{
		Name:         rel.Name,
		Level:        leveling.LevelForXP(rel.XP),
		Categories:   rel.Categories,
		Interactions: interactions,
	}, s.now())

	rec, err := insights.Encode(rel.ID, snap)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := s.store.SaveInsights(ctx, rec); err != nil {
		return nil, err
	}
	return &snap, nil
}

// scheduleInsights regenerates the snapshot in the background. The caller's
// cancellation does not stop it; Close waits for it.
func (s *Service) scheduleInsights(ctx context.Context, relID string) {
	bg := context.WithoutCancel(ctx)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		if _, err := s.regenerateInsights(bg, relID); err != nil {
			metrics.InsightsRefreshTotal.WithLabelValues("error").Inc()
			s.logger.Warn("insights regeneration failed", zap.String("relationship_id", relID), zap.Error(err))
			return
		}
		metrics.InsightsRefreshTotal.WithLabelValues("ok").Inc()
	}()
}

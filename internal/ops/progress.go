package ops

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/metrics"
	"github.com/hpungsan/grove/internal/progression"
	"github.com/hpungsan/grove/internal/quest"
)

// XP award sources, used as the metrics label.
const (
	sourceInteraction = "interaction"
	sourceQuest       = "quest"
)

// award is one XP grant to a relationship.
type award struct {
	relationshipID string
	delta          int
	source         string
	// interactionID is recorded on the level-history row.
	interactionID *string
	// completeQuestID is completed in the same commit as the XP write.
	completeQuestID string
}

// awardXP applies a through compare-and-set, re-reading and retrying when
// another writer got there first. It returns the relationship as committed.
func (s *Service) awardXP(ctx context.Context, a award) (*domain.Relationship, progression.Result, error) {
	retries := s.cfg.Progression.CASMaxRetries
	for attempt := 0; ; attempt++ {
		rel, err := s.store.GetRelationship(ctx, a.relationshipID)
		if err != nil {
			return nil, progression.Result{}, err
		}

		res, err := progression.Apply(*rel, a.delta)
		if err != nil {
			return nil, progression.Result{}, err
		}
		if res.Repaired {
			s.logger.Warn("repairing stored level from xp",
				zap.String("relationship_id", rel.ID),
				zap.Int("stored_level", rel.Level),
				zap.Int("derived_level", res.OldLevel))
		}

		now := s.now()
		err = s.store.CommitProgress(ctx, domain.ProgressCommit{
			RelationshipID:  rel.ID,
			ExpectedVersion: rel.Version,
			XP:              res.NewXP,
			Level:           res.NewLevel,
			UpdatedAt:       now,
			History:         res.HistoryEntry(rel.ID, a.interactionID, now),
			CompleteQuestID: a.completeQuestID,
			CompletedAt:     now,
		})
		if err == nil {
			rel.XP = res.NewXP
			rel.Level = res.NewLevel
			rel.Version++
			rel.UpdatedAt = now
			s.recordAward(a, res)
			return rel, res, nil
		}
		if !errors.Is(err, errors.ErrStaleVersion) || attempt >= retries {
			return nil, progression.Result{}, err
		}

		metrics.CASRetriesTotal.Inc()
		s.logger.Debug("xp award lost a race, retrying",
			zap.String("relationship_id", a.relationshipID),
			zap.Int("attempt", attempt+1))
	}
}

func (s *Service) recordAward(a award, res progression.Result) {
	metrics.XPAwardedTotal.WithLabelValues(a.source).Add(float64(res.XPGained))
	if !res.LeveledUp {
		return
	}
	metrics.LevelUpsTotal.WithLabelValues(strconv.Itoa(res.NewLevel)).Inc()
	s.logger.Info("level up",
		zap.String("relationship_id", a.relationshipID),
		zap.Int("old_level", res.OldLevel),
		zap.Int("new_level", res.NewLevel),
		zap.String("source", a.source))
}

// milestoneQuest generates and stores the quest for a milestone just reached.
// Generation never fails; a store error is returned.
func (s *Service) milestoneQuest(ctx context.Context, rel *domain.Relationship, level int) (*domain.Quest, error) {
	logs, err := s.recentLogs(ctx, rel.ID)
	if err != nil {
		s.logger.Warn("loading recent logs for milestone quest failed", zap.String("relationship_id", rel.ID), zap.Error(err))
	}

	result := s.quests.Generate(ctx, quest.Request{
		Mode:       quest.ModeMilestone,
		Level:      level,
		Categories: rel.Categories,
		RecentLogs: logs,
	})
	return s.storeQuest(ctx, rel.ID, result, level)
}

// storeQuest persists a generated quest. Milestone quests record the level
// they were generated for.
func (s *Service) storeQuest(ctx context.Context, relID string, result quest.Result, level int) (*domain.Quest, error) {
	metrics.QuestsGeneratedTotal.WithLabelValues(string(result.Mode), strconv.FormatBool(result.Fallback)).Inc()

	q := &domain.Quest{
		ID:             domain.NewID(),
		RelationshipID: relID,
		Description:    result.Description,
		Status:         domain.QuestPending,
		CreatedAt:      s.now(),
	}
	if result.Mode == quest.ModeMilestone {
		l := level
		q.MilestoneLevel = &l
	}
	if err := s.store.InsertQuest(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// recentLogs returns the newest interaction logs, most recent first.
func (s *Service) recentLogs(ctx context.Context, relID string) ([]string, error) {
	recent, err := s.store.ListInteractions(ctx, relID, recentLogCount)
	if err != nil {
		return nil, err
	}
	logs := make([]string, 0, len(recent))
	for _, in := range recent {
		logs = append(logs, in.Log)
	}
	return logs, nil
}

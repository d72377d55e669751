package ops

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/leveling"
	"github.com/hpungsan/grove/internal/progression"
	"github.com/hpungsan/grove/internal/quest"
)

const maxQuestChars = 500

// CreateQuestInput contains parameters for CreateQuest.
type CreateQuestInput struct {
	RelationshipID string
	Description    string
	MilestoneLevel *int
}

// CreateQuest adds a hand-written quest.
func (s *Service) CreateQuest(ctx context.Context, input CreateQuestInput) (*domain.Quest, error) {
	if strings.TrimSpace(input.RelationshipID) == "" {
		return nil, errors.NewInvalidRequest("relationship_id is required")
	}
	desc := strings.TrimSpace(input.Description)
	if desc == "" {
		return nil, errors.NewInvalidRequest("quest_description is required")
	}
	if len([]rune(desc)) > maxQuestChars {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("quest_description must be at most %d characters", maxQuestChars))
	}
	if m := input.MilestoneLevel; m != nil && !leveling.IsMilestone(*m) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("milestone_level must be one of %v", leveling.Milestones()))
	}
	if _, err := s.store.GetRelationship(ctx, input.RelationshipID); err != nil {
		return nil, err
	}

	q := &domain.Quest{
		ID:             domain.NewID(),
		RelationshipID: input.RelationshipID,
		Description:    desc,
		Status:         domain.QuestPending,
		MilestoneLevel: input.MilestoneLevel,
		CreatedAt:      s.now(),
	}
	if err := s.store.InsertQuest(ctx, q); err != nil {
		return nil, err
	}
	s.invalidate(ctx, q.RelationshipID)
	return q, nil
}

// GenerateQuestInput contains parameters for GenerateQuest.
type GenerateQuestInput struct {
	RelationshipID string
	// Mode is regular, milestone or recurring. Empty selects by level.
	Mode string
}

// GenerateQuestOutput contains the result of GenerateQuest.
type GenerateQuestOutput struct {
	Quest    domain.Quest `json:"quest"`
	Mode     quest.Mode   `json:"mode"`
	Fallback bool         `json:"fallback"`
}

// GenerateQuest writes and stores a new quest for the relationship's
// current level.
func (s *Service) GenerateQuest(ctx context.Context, input GenerateQuestInput) (*GenerateQuestOutput, error) {
	if strings.TrimSpace(input.RelationshipID) == "" {
		return nil, errors.NewInvalidRequest("relationship_id is required")
	}
	mode, err := quest.ParseMode(input.Mode)
	if err != nil {
		return nil, errors.NewInvalidRequest(err.Error())
	}

	rel, err := s.store.GetRelationship(ctx, input.RelationshipID)
	if err != nil {
		return nil, err
	}
	level := leveling.LevelForXP(rel.XP)

	logs, err := s.recentLogs(ctx, rel.ID)
	if err != nil {
		return nil, err
	}

	result := s.quests.Generate(ctx, quest.Request{
		Mode:       mode,
		Level:      level,
		Categories: rel.Categories,
		RecentLogs: logs,
	})
	q, err := s.storeQuest(ctx, rel.ID, result, level)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, rel.ID)
	return &GenerateQuestOutput{Quest: *q, Mode: result.Mode, Fallback: result.Fallback}, nil
}

// CompleteQuestInput contains parameters for CompleteQuest.
type CompleteQuestInput struct {
	ID string
}

// CompleteQuestOutput contains the result of CompleteQuest.
type CompleteQuestOutput struct {
	Quest          domain.Quest       `json:"quest"`
	Relationship   RelationshipView   `json:"relationship"`
	Progression    progression.Result `json:"progression"`
	MilestoneQuest *domain.Quest      `json:"milestone_quest,omitempty"`
}

// CompleteQuest marks a pending quest completed and awards its XP. Completing
// a quest twice is a conflict and awards nothing.
func (s *Service) CompleteQuest(ctx context.Context, input CompleteQuestInput) (*CompleteQuestOutput, error) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	q, err := s.store.GetQuest(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if q.Status == domain.QuestCompleted {
		return nil, errors.NewConflict("quest already completed: " + q.ID)
	}

	reward := s.cfg.Progression.QuestRewardXP
	if q.IsMilestone() {
		reward = s.cfg.Progression.MilestoneQuestRewardXP
	}

	rel, res, err := s.awardXP(ctx, award{
		relationshipID:  q.RelationshipID,
		delta:           reward,
		source:          sourceQuest,
		completeQuestID: q.ID,
	})
	if err != nil {
		return nil, err
	}

	completedAt := rel.UpdatedAt
	q.Status = domain.QuestCompleted
	q.CompletedAt = &completedAt

	out := &CompleteQuestOutput{
		Quest:        *q,
		Relationship: newRelationshipView(*rel),
		Progression:  res,
	}
	if res.MilestoneHit != nil {
		mq, err := s.milestoneQuest(ctx, rel, *res.MilestoneHit)
		if err != nil {
			s.logger.Warn("storing milestone quest failed", zap.String("relationship_id", rel.ID), zap.Error(err))
		} else {
			out.MilestoneQuest = mq
		}
	}

	s.invalidate(ctx, rel.ID)
	s.scheduleInsights(ctx, rel.ID)
	return out, nil
}

// DeleteQuestInput contains parameters for DeleteQuest.
type DeleteQuestInput struct {
	ID string
}

// DeleteQuest removes a quest. XP from a completed quest is kept.
func (s *Service) DeleteQuest(ctx context.Context, input DeleteQuestInput) (*DeleteOutput, error) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	q, err := s.store.GetQuest(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteQuest(ctx, q.ID); err != nil {
		return nil, err
	}
	s.invalidate(ctx, q.RelationshipID)
	return &DeleteOutput{Deleted: true, ID: q.ID}, nil
}

// ListQuestsInput contains parameters for ListQuests.
type ListQuestsInput struct {
	RelationshipID string
	// Status filters by pending or completed. Empty returns all.
	Status string
}

// ListQuestsOutput contains the result of ListQuests.
type ListQuestsOutput struct {
	Items []domain.Quest `json:"items"`
}

// ListQuests returns a relationship's quests, newest first.
func (s *Service) ListQuests(ctx context.Context, input ListQuestsInput) (*ListQuestsOutput, error) {
	if strings.TrimSpace(input.RelationshipID) == "" {
		return nil, errors.NewInvalidRequest("relationship_id is required")
	}
	status := domain.QuestStatus(strings.ToLower(strings.TrimSpace(input.Status)))
	switch status {
	case "", domain.QuestPending, domain.QuestCompleted:
	default:
		return nil, errors.NewInvalidRequest("status must be one of: pending, completed")
	}
	if _, err := s.store.GetRelationship(ctx, input.RelationshipID); err != nil {
		return nil, err
	}

	items, err := s.store.ListQuests(ctx, input.RelationshipID, status)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Quest{}
	}
	return &ListQuestsOutput{Items: items}, nil
}

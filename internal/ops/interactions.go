package ops

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/evolution"
	"github.com/hpungsan/grove/internal/leveling"
	"github.com/hpungsan/grove/internal/llm"
	"github.com/hpungsan/grove/internal/metrics"
	"github.com/hpungsan/grove/internal/progression"
)

const (
	maxLogChars = 10000
	// recentLogCount is how many logs feed quest generation.
	recentLogCount = 5
)

// fallbackClassification is used when the classifier is missing or fails.
func fallbackClassification() domain.Classification {
	return domain.Classification{
		Sentiment: "Neutral",
		XPGain:    1,
		Reasoning: "Classification unavailable; awarded base XP.",
	}
}

// LogInteractionInput contains parameters for LogInteraction.
type LogInteractionInput struct {
	RelationshipID string
	Log            string
	ToneTag        *string
}

// LogInteractionOutput contains the result of LogInteraction.
type LogInteractionOutput struct {
	Interaction  domain.Interaction `json:"interaction"`
	Relationship RelationshipView   `json:"relationship"`
	Progression  progression.Result `json:"progression"`
	// MilestoneQuest is set when the award landed on a milestone level.
	MilestoneQuest *domain.Quest `json:"milestone_quest,omitempty"`
	// EvolutionSuggestion is the classifier's category proposal, if eligible.
	// It is never applied automatically.
	EvolutionSuggestion *string `json:"evolution_suggestion,omitempty"`
}

// LogInteraction records an interaction and runs the progression pipeline:
// the log is persisted first, then classified, scored and awarded.
func (s *Service) LogInteraction(ctx context.Context, input LogInteractionInput) (*LogInteractionOutput, error) {
	if strings.TrimSpace(input.RelationshipID) == "" {
		return nil, errors.NewInvalidRequest("relationship_id is required")
	}
	text := strings.TrimSpace(input.Log)
	if text == "" {
		return nil, errors.NewInvalidRequest("interaction_log is required")
	}
	if len([]rune(text)) > maxLogChars {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("interaction_log must be at most %d characters", maxLogChars))
	}

	rel, err := s.store.GetRelationship(ctx, input.RelationshipID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	in := &domain.Interaction{
		ID:             domain.NewID(),
		RelationshipID: rel.ID,
		Log:            text,
		ToneTag:        cleanOptionalString(input.ToneTag),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.InsertInteraction(ctx, in); err != nil {
		return nil, err
	}

	c, fallback := s.classify(ctx, in, rel)
	classifiedAt := s.now()
	annotated, err := s.store.AnnotateInteraction(ctx, in.ID, c, fallback, classifiedAt)
	if err != nil {
		return nil, err
	}
	if !annotated {
		// Only one writer may score an interaction.
		return nil, errors.NewConflict("interaction already classified: " + in.ID)
	}
	in.Classification = &c
	in.ClassifierFallback = fallback
	in.ClassifiedAt = &classifiedAt

	updated, res, err := s.awardXP(ctx, award{
		relationshipID: rel.ID,
		delta:          c.XPGain,
		source:         sourceInteraction,
		interactionID:  &in.ID,
	})
	if err != nil {
		s.logger.Warn("interaction stored without its xp",
			zap.String("interaction_id", in.ID),
			zap.String("relationship_id", rel.ID),
			zap.Int("xp_gain", c.XPGain),
			zap.Error(err))
		return nil, unawarded(err, in.ID)
	}

	out := &LogInteractionOutput{
		Interaction:  *in,
		Relationship: newRelationshipView(*updated),
		Progression:  res,
	}

	if res.MilestoneHit != nil {
		q, err := s.milestoneQuest(ctx, updated, *res.MilestoneHit)
		if err != nil {
			s.logger.Warn("storing milestone quest failed", zap.String("relationship_id", rel.ID), zap.Error(err))
		} else {
			out.MilestoneQuest = q
		}
	}

	if suggestion, ok := evolution.Evaluate(in.EvolutionSuggestion(), updated.Categories); ok {
		out.EvolutionSuggestion = &suggestion
	}

	s.invalidate(ctx, rel.ID)
	s.scheduleInsights(ctx, rel.ID)
	return out, nil
}

// unawarded marks an award failure with the interaction that was already
// persisted, so callers do not log it again.
func unawarded(err error, interactionID string) error {
	gErr, ok := errors.As(err)
	if !ok {
		gErr = errors.NewInternal(err)
	}
	out := gErr.WithDetail("interaction_id", interactionID)
	out.Message = fmt.Sprintf("%s (interaction %s was stored without its XP)", out.Message, interactionID)
	return out
}

// classify scores an interaction, reporting whether the fallback was used.
func (s *Service) classify(ctx context.Context, in *domain.Interaction, rel *domain.Relationship) (domain.Classification, bool) {
	if s.classifier == nil {
		metrics.ClassifierFallbacksTotal.Inc()
		return fallbackClassification(), true
	}
	c, err := s.classifier.Classify(ctx, llm.ClassifyRequest{
		Log:        in.Log,
		Level:      leveling.LevelForXP(rel.XP),
		Categories: rel.Categories,
	})
	if err == nil && (c.XPGain < 1 || c.XPGain > 3) {
		err = fmt.Errorf("xp_gain %d out of range", c.XPGain)
	}
	if err != nil {
		metrics.ClassifierFallbacksTotal.Inc()
		s.logger.Warn("classifier failed, using fallback",
			zap.String("interaction_id", in.ID),
			zap.Error(err))
		return fallbackClassification(), true
	}
	return c, false
}

// ListInteractionsInput contains parameters for ListInteractions.
type ListInteractionsInput struct {
	RelationshipID string
	Limit          int
}

// ListInteractionsOutput contains the result of ListInteractions.
type ListInteractionsOutput struct {
	Items []domain.Interaction `json:"items"`
}

// ListInteractions returns a relationship's interactions, newest first.
func (s *Service) ListInteractions(ctx context.Context, input ListInteractionsInput) (*ListInteractionsOutput, error) {
	if strings.TrimSpace(input.RelationshipID) == "" {
		return nil, errors.NewInvalidRequest("relationship_id is required")
	}
	if _, err := s.store.GetRelationship(ctx, input.RelationshipID); err != nil {
		return nil, err
	}
	items, err := s.store.ListInteractions(ctx, input.RelationshipID, clampLimit(input.Limit))
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []domain.Interaction{}
	}
	return &ListInteractionsOutput{Items: items}, nil
}

// DeleteInteractionInput contains parameters for DeleteInteraction.
type DeleteInteractionInput struct {
	ID string
}

// DeleteInteraction removes an interaction. XP already awarded is kept.
func (s *Service) DeleteInteraction(ctx context.Context, input DeleteInteractionInput) (*DeleteOutput, error) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	in, err := s.store.GetInteraction(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteInteraction(ctx, in.ID); err != nil {
		return nil, err
	}
	s.invalidate(ctx, in.RelationshipID)
	return &DeleteOutput{Deleted: true, ID: in.ID}, nil
}

// SetMilestoneInput contains parameters for SetMilestone.
type SetMilestoneInput struct {
	ID          string
	IsMilestone bool
}

// SetMilestone flags or unflags an interaction as a personal milestone.
func (s *Service) SetMilestone(ctx context.Context, input SetMilestoneInput) (*domain.Interaction, error) {
	if strings.TrimSpace(input.ID) == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	if err := s.store.SetInteractionMilestone(ctx, input.ID, input.IsMilestone, s.now()); err != nil {
		return nil, err
	}
	in, err := s.store.GetInteraction(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, in.RelationshipID)
	return in, nil
}

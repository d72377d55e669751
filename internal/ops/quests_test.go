package ops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/quest"
)

func TestCompleteQuest_AwardsOnce(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	rel := env.createRel(t, "Ada", "Friend")

	q, err := env.svc.CreateQuest(ctx, CreateQuestInput{RelationshipID: rel.ID, Description: "Cook dinner together"})
	require.NoError(t, err)
	assert.Equal(t, domain.QuestPending, q.Status)

	out, err := env.svc.CompleteQuest(ctx, CompleteQuestInput{ID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, domain.QuestCompleted, out.Quest.Status)
	require.NotNil(t, out.Quest.CompletedAt)
	assert.Equal(t, 2, out.Progression.XPGained)
	assert.Equal(t, 2, out.Relationship.XP)

	_, err = env.svc.CompleteQuest(ctx, CompleteQuestInput{ID: q.ID})
	requireCode(t, err, errors.ErrConflict)

	got, err := env.svc.GetRelationship(ctx, GetRelationshipInput{ID: rel.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, got.XP)

	stored, err := env.store.GetQuest(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.QuestCompleted, stored.Status)
	assert.NotNil(t, stored.CompletedAt)
}

func TestCompleteQuest_MilestoneReward(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	rel := env.createRel(t, "Ada", "Friend")

	q, err := env.svc.CreateQuest(ctx, CreateQuestInput{
		RelationshipID: rel.ID,
		Description:    "Plan a trip",
		MilestoneLevel: intPtr(3),
	})
	require.NoError(t, err)

	out, err := env.svc.CompleteQuest(ctx, CompleteQuestInput{ID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Progression.XPGained)
}

func TestCompleteQuest_MilestoneRewardWithinLevel(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	rel := env.createRel(t, "Ada", "Friend")
	env.logN(t, rel.ID, 5) // base xp, 5 xp reaches level 2

	before, err := env.store.ListLevelHistory(ctx, rel.ID)
	require.NoError(t, err)
	require.Len(t, before, 1)

	q, err := env.svc.CreateQuest(ctx, CreateQuestInput{
		RelationshipID: rel.ID,
		Description:    "Plan a trip",
		MilestoneLevel: intPtr(3),
	})
	require.NoError(t, err)

	out, err := env.svc.CompleteQuest(ctx, CompleteQuestInput{ID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Progression.XPGained)
	assert.Equal(t, 8, out.Relationship.XP)
	assert.Equal(t, 2, out.Relationship.Level)
	assert.False(t, out.Progression.LeveledUp)
	assert.Nil(t, out.MilestoneQuest)

	after, err := env.store.ListLevelHistory(ctx, rel.ID)
	require.NoError(t, err)
	assert.Len(t, after, len(before))
}

func TestCompleteQuest_TriggersMilestone(t *testing.T) {
	env := newTestEnv(t, &fakeClassifier{xp: 2})
	ctx := context.Background()
	rel := env.createRel(t, "Ada", "Mentor")
	env.logN(t, rel.ID, 5) // 10 xp, level 2

	q, err := env.svc.CreateQuest(ctx, CreateQuestInput{RelationshipID: rel.ID, Description: "Ask for feedback"})
	require.NoError(t, err)

	out, err := env.svc.CompleteQuest(ctx, CompleteQuestInput{ID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, 12, out.Relationship.XP)
	assert.Equal(t, 3, out.Relationship.Level)
	require.NotNil(t, out.MilestoneQuest)
	assert.Equal(t, 3, *out.MilestoneQuest.MilestoneLevel)

	history, err := env.store.ListLevelHistory(ctx, rel.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Nil(t, history[1].InteractionID)
}

func TestDeleteQuest(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	rel := env.createRel(t, "Ada", "Friend")

	q, err := env.svc.CreateQuest(ctx, CreateQuestInput{RelationshipID: rel.ID, Description: "Call on Sunday"})
	require.NoError(t, err)
	_, err = env.svc.CompleteQuest(ctx, CompleteQuestInput{ID: q.ID})
	require.NoError(t, err)

	out, err := env.svc.DeleteQuest(ctx, DeleteQuestInput{ID: q.ID})
	require.NoError(t, err)
	assert.Equal(t, &DeleteOutput{Deleted: true, ID: q.ID}, out)

	list, err := env.svc.ListQuests(ctx, ListQuestsInput{RelationshipID: rel.ID})
	require.NoError(t, err)
	assert.Empty(t, list.Items)

	got, err := env.svc.GetRelationship(ctx, GetRelationshipInput{ID: rel.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, got.XP, "completed quest XP is kept")

	_, err = env.svc.DeleteQuest(ctx, DeleteQuestInput{ID: q.ID})
	requireCode(t, err, errors.ErrNotFound)
	_, err = env.svc.DeleteQuest(ctx, DeleteQuestInput{ID: " "})
	requireCode(t, err, errors.ErrInvalidRequest)
}

func TestCreateQuest_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	rel := env.createRel(t, "Ada", "Friend")
	ctx := context.Background()

	_, err := env.svc.CreateQuest(ctx, CreateQuestInput{RelationshipID: rel.ID, Description: " "})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = env.svc.CreateQuest(ctx, CreateQuestInput{RelationshipID: rel.ID, Description: "x", MilestoneLevel: intPtr(4)})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = env.svc.CreateQuest(ctx, CreateQuestInput{RelationshipID: "missing", Description: "x"})
	requireCode(t, err, errors.ErrNotFound)

	_, err = env.svc.CompleteQuest(ctx, CompleteQuestInput{ID: "missing"})
	requireCode(t, err, errors.ErrNotFound)
}

func TestGenerateQuest(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	rel := env.createRel(t, "Ada", "Friend")

	out, err := env.svc.GenerateQuest(ctx, GenerateQuestInput{RelationshipID: rel.ID})
	require.NoError(t, err)
	assert.Equal(t, quest.ModeRegular, out.Mode)
	assert.True(t, out.Fallback)
	assert.NotEmpty(t, out.Quest.Description)
	assert.Nil(t, out.Quest.MilestoneLevel)

	// Milestone mode off a milestone level degrades to regular.
	out, err = env.svc.GenerateQuest(ctx, GenerateQuestInput{RelationshipID: rel.ID, Mode: "milestone"})
	require.NoError(t, err)
	assert.Equal(t, quest.ModeRegular, out.Mode)

	out, err = env.svc.GenerateQuest(ctx, GenerateQuestInput{RelationshipID: rel.ID, Mode: "recurring"})
	require.NoError(t, err)
	assert.Equal(t, quest.ModeRecurring, out.Mode)
	assert.Contains(t, quest.RecurringPool([]string{"Friend"}), out.Quest.Description)

	_, err = env.svc.GenerateQuest(ctx, GenerateQuestInput{RelationshipID: rel.ID, Mode: "epic"})
	requireCode(t, err, errors.ErrInvalidRequest)

	list, err := env.svc.ListQuests(ctx, ListQuestsInput{RelationshipID: rel.ID})
	require.NoError(t, err)
	assert.Len(t, list.Items, 3)

	_, err = env.svc.ListQuests(ctx, ListQuestsInput{RelationshipID: rel.ID, Status: "done"})
	requireCode(t, err, errors.ErrInvalidRequest)
}

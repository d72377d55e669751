package ops

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hpungsan/grove/internal/db"
	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/llm"
)

func TestLogInteraction_AwardsAndLevelsUp(t *testing.T) {
	env := newTestEnv(t, &fakeClassifier{xp: 2})
	ctx := context.Background()
	rel := env.createRel(t, "Ada", "Friend")

	outs := env.logN(t, rel.ID, 3)

	first := outs[0]
	assert.Equal(t, 2, first.Progression.XPGained)
	assert.False(t, first.Progression.LeveledUp)
	require.NotNil(t, first.Interaction.Classification)
	assert.Equal(t, "Warm", first.Interaction.Classification.Sentiment)
	assert.False(t, first.Interaction.ClassifierFallback)

	last := outs[2]
	assert.True(t, last.Progression.LeveledUp)
	assert.Equal(t, 1, last.Progression.OldLevel)
	assert.Equal(t, 2, last.Progression.NewLevel)
	assert.Nil(t, last.Progression.MilestoneHit)
	assert.Nil(t, last.MilestoneQuest)
	assert.Equal(t, 6, last.Relationship.XP)
	assert.Equal(t, 2, last.Relationship.Level)

	got, err := env.svc.GetRelationship(ctx, GetRelationshipInput{ID: rel.ID})
	require.NoError(t, err)
	assert.Equal(t, 6, got.XP)
	assert.Equal(t, 2, got.Level)
	assert.Equal(t, Progress{Earned: 1, Needed: 7, Percent: 14, NextLevelXP: intPtr(12)}, got.Progress)

	history, err := env.store.ListLevelHistory(ctx, rel.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].OldLevel)
	assert.Equal(t, 2, history[0].NewLevel)
	require.NotNil(t, history[0].InteractionID)
	assert.Equal(t, last.Interaction.ID, *history[0].InteractionID)

	stored, err := env.store.GetInteraction(ctx, last.Interaction.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Classification)
	assert.Equal(t, 2, stored.Classification.XPGain)
	assert.NotNil(t, stored.ClassifiedAt)
}

func TestLogInteraction_ClassifierFallback(t *testing.T) {
	tests := []struct {
		name       string
		classifier Classifier
	}{
		{"no classifier", nil},
		{"classifier error", &fakeClassifier{err: fmt.Errorf("model timeout")}},
		{"xp out of range", &fakeClassifier{xp: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.classifier)
			rel := env.createRel(t, "Ada", "Friend")

			out, err := env.svc.LogInteraction(context.Background(), LogInteractionInput{
				RelationshipID: rel.ID,
				Log:            "quick text",
			})
			require.NoError(t, err)
			assert.True(t, out.Interaction.ClassifierFallback)
			assert.Equal(t, "Neutral", out.Interaction.Classification.Sentiment)
			assert.Equal(t, 1, out.Progression.XPGained)
			assert.Equal(t, 1, out.Relationship.XP)

			stored, err := env.store.GetInteraction(context.Background(), out.Interaction.ID)
			require.NoError(t, err)
			assert.True(t, stored.ClassifierFallback)
			assert.Equal(t, "quick text", stored.Log)
		})
	}
}

func TestLogInteraction_Validation(t *testing.T) {
	env := newTestEnv(t, nil)
	rel := env.createRel(t, "Ada", "Friend")
	ctx := context.Background()

	_, err := env.svc.LogInteraction(ctx, LogInteractionInput{RelationshipID: rel.ID, Log: "   "})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = env.svc.LogInteraction(ctx, LogInteractionInput{Log: "hi"})
	requireCode(t, err, errors.ErrInvalidRequest)

	_, err = env.svc.LogInteraction(ctx, LogInteractionInput{RelationshipID: "missing", Log: "hi"})
	requireCode(t, err, errors.ErrNotFound)
}

func TestLogInteraction_MilestoneQuest(t *testing.T) {
	env := newTestEnv(t, &fakeClassifier{xp: 3})
	ctx := context.Background()
	rel := env.createRel(t, "Ada", "Romantic", "Friend")

	// 3, 6, 9, 12: the fourth award lands on level 3.
	outs := env.logN(t, rel.ID, 4)
	for _, out := range outs[:3] {
		assert.Nil(t, out.MilestoneQuest)
	}

	last := outs[3]
	require.NotNil(t, last.Progression.MilestoneHit)
	assert.Equal(t, 3, *last.Progression.MilestoneHit)
	require.NotNil(t, last.MilestoneQuest)
	require.NotNil(t, last.MilestoneQuest.MilestoneLevel)
	assert.Equal(t, 3, *last.MilestoneQuest.MilestoneLevel)
	assert.NotEmpty(t, last.MilestoneQuest.Description)

	quests, err := env.svc.ListQuests(ctx, ListQuestsInput{RelationshipID: rel.ID, Status: "pending"})
	require.NoError(t, err)
	require.Len(t, quests.Items, 1)
	assert.Equal(t, last.MilestoneQuest.ID, quests.Items[0].ID)
}

func TestLogInteraction_EvolutionSuggestion(t *testing.T) {
	ctx := context.Background()

	env := newTestEnv(t, &fakeClassifier{xp: 1, suggestion: "Mentor"})
	rel := env.createRel(t, "Ada", "Friend")
	out, err := env.svc.LogInteraction(ctx, LogInteractionInput{RelationshipID: rel.ID, Log: "taught me Go"})
	require.NoError(t, err)
	require.NotNil(t, out.EvolutionSuggestion)
	assert.Equal(t, "Mentor", *out.EvolutionSuggestion)

	// Suggestions are never applied.
	got, err := env.svc.GetRelationship(ctx, GetRelationshipInput{ID: rel.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"Friend"}, got.Categories)

	env = newTestEnv(t, &fakeClassifier{xp: 1, suggestion: "friend"})
	rel = env.createRel(t, "Bo", "Friend")
	out, err = env.svc.LogInteraction(ctx, LogInteractionInput{RelationshipID: rel.ID, Log: "lunch"})
	require.NoError(t, err)
	assert.Nil(t, out.EvolutionSuggestion)
}

func TestLogInteraction_ConcurrentAwards(t *testing.T) {
	env := newTestEnv(t, &fakeClassifier{xp: 1})
	env.cfg.Progression.CASMaxRetries = 50
	ctx := context.Background()
	rel := env.createRel(t, "Ada", "Friend")

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := env.svc.LogInteraction(ctx, LogInteractionInput{
				RelationshipID: rel.ID,
				Log:            fmt.Sprintf("call %d", i),
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	env.svc.Close()

	got, err := env.svc.GetRelationship(ctx, GetRelationshipInput{ID: rel.ID})
	require.NoError(t, err)
	assert.Equal(t, n, got.XP)
	assert.Equal(t, 2, got.Level)

	history, err := env.store.ListLevelHistory(ctx, rel.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSetMilestoneAndDeleteInteraction(t *testing.T) {
	env := newTestEnv(t, &fakeClassifier{xp: 2})
	ctx := context.Background()
	rel := env.createRel(t, "Ada", "Friend")
	out := env.logN(t, rel.ID, 1)[0]

	in, err := env.svc.SetMilestone(ctx, SetMilestoneInput{ID: out.Interaction.ID, IsMilestone: true})
	require.NoError(t, err)
	assert.True(t, in.IsMilestone)

	list, err := env.svc.ListInteractions(ctx, ListInteractionsInput{RelationshipID: rel.ID})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.True(t, list.Items[0].IsMilestone)

	_, err = env.svc.DeleteInteraction(ctx, DeleteInteractionInput{ID: out.Interaction.ID})
	require.NoError(t, err)

	list, err = env.svc.ListInteractions(ctx, ListInteractionsInput{RelationshipID: rel.ID})
	require.NoError(t, err)
	assert.Empty(t, list.Items)

	// Awarded XP survives the deletion.
	got, err := env.svc.GetRelationship(ctx, GetRelationshipInput{ID: rel.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, got.XP)

	_, err = env.svc.SetMilestone(ctx, SetMilestoneInput{ID: "missing", IsMilestone: true})
	requireCode(t, err, errors.ErrNotFound)
}

// losingCommits loses every compare-and-set.
type losingCommits struct {
	*db.DB
}

func (l losingCommits) CommitProgress(_ context.Context, c domain.ProgressCommit) error {
	return errors.NewStaleVersion(c.RelationshipID, c.ExpectedVersion)
}

func TestLogInteraction_AwardFailureReportsStoredInteraction(t *testing.T) {
	store, err := db.Init(t.TempDir())
	require.NoError(t, err)
	core, logs := observer.New(zap.WarnLevel)
	svc := New(Deps{Store: losingCommits{store}, Logger: zap.New(core)})
	t.Cleanup(func() {
		svc.Close()
		store.Close()
	})
	ctx := context.Background()

	rel, err := svc.CreateRelationship(ctx, CreateRelationshipInput{Name: "Ada", Categories: []string{"Friend"}})
	require.NoError(t, err)

	_, err = svc.LogInteraction(ctx, LogInteractionInput{RelationshipID: rel.ID, Log: "coffee"})
	requireCode(t, err, errors.ErrStaleVersion)

	stored, err := store.ListInteractions(ctx, rel.ID, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)

	gErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, stored[0].ID, gErr.Details["interaction_id"])
	assert.Contains(t, gErr.Message, stored[0].ID)

	entries := logs.FilterMessage("interaction stored without its xp").All()
	require.Len(t, entries, 1)
	assert.Equal(t, stored[0].ID, entries[0].ContextMap()["interaction_id"])

	got, err := store.GetRelationship(ctx, rel.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.XP)
}

// staleLevel reports level 1 regardless of XP.
type staleLevel struct {
	*db.DB
}

func (s staleLevel) GetRelationship(ctx context.Context, id string) (*domain.Relationship, error) {
	rel, err := s.DB.GetRelationship(ctx, id)
	if err != nil {
		return nil, err
	}
	rel.Level = 1
	return rel, nil
}

// levelRecorder scores every interaction 1 XP and remembers the level it saw.
type levelRecorder struct {
	mu    sync.Mutex
	level int
}

func (r *levelRecorder) Classify(_ context.Context, req llm.ClassifyRequest) (domain.Classification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.level = req.Level
	return domain.Classification{Sentiment: "Warm", XPGain: 1, Reasoning: "ok"}, nil
}

func TestLogInteraction_ClassifierSeesLevelFromXP(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	rel := env.createRel(t, "Ada", "Friend")
	env.logN(t, rel.ID, 12) // 12 xp is level 3

	recorder := &levelRecorder{}
	svc := New(Deps{Store: staleLevel{env.store}, Classifier: recorder, Config: env.cfg, Now: env.clock.Now})
	t.Cleanup(svc.Close)

	_, err := svc.LogInteraction(ctx, LogInteractionInput{RelationshipID: rel.ID, Log: "long walk"})
	require.NoError(t, err)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, 3, recorder.level)
}

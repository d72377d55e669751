package ops

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hpungsan/grove/internal/cache"
	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/evolution"
	"github.com/hpungsan/grove/internal/leveling"
	"github.com/hpungsan/grove/internal/tree"
)

// GetTreeInput contains parameters for GetTree.
type GetTreeInput struct {
	RelationshipID string
}

// GetTree returns the relationship's tree. When history cannot be loaded the
// tree is built from the relationship alone and marked degraded; degraded
// trees are not cached.
func (s *Service) GetTree(ctx context.Context, input GetTreeInput) (*tree.View, error) {
	if strings.TrimSpace(input.RelationshipID) == "" {
		return nil, errors.NewInvalidRequest("relationship_id is required")
	}
	key := cache.TreeKey(input.RelationshipID)

	var cached tree.View
	if s.cacheGet(ctx, key, &cached) {
		return &cached, nil
	}

	gen := s.cacheGeneration()
	rel, err := s.store.GetRelationship(ctx, input.RelationshipID)
	if err != nil {
		return nil, err
	}
	s.repairLevel(rel)

	now := s.now()
	in, err := s.treeInput(ctx, rel)
	if err != nil {
		s.logger.Warn("tree history unavailable, serving degraded tree",
			zap.String("relationship_id", rel.ID),
			zap.Error(err))
		v := tree.Minimal(*rel, now)
		return &v, nil
	}

	v := tree.Build(in, now)
	s.cacheSetAt(ctx, gen, key, v)
	return &v, nil
}

// treeInput loads the history a full tree is built from.
func (s *Service) treeInput(ctx context.Context, rel *domain.Relationship) (tree.Input, error) {
	in := tree.Input{Relationship: *rel}
	var err error

	if in.CategoryHistory, err = s.store.ListCategoryHistory(ctx, rel.ID); err != nil {
		return in, err
	}
	if in.Interactions, err = s.store.ListInteractions(ctx, rel.ID, 0); err != nil {
		return in, err
	}
	if in.CompletedQuests, err = s.store.ListQuests(ctx, rel.ID, domain.QuestCompleted); err != nil {
		return in, err
	}
	if in.LevelHistory, err = s.store.ListLevelHistory(ctx, rel.ID); err != nil {
		return in, err
	}
	vocabulary, err := s.store.ListCategories(ctx)
	if err != nil {
		return in, err
	}
	for _, c := range vocabulary {
		in.Vocabulary = append(in.Vocabulary, c.Name)
	}
	return in, nil
}

// GetGlobalTree returns the rollup across every relationship.
func (s *Service) GetGlobalTree(ctx context.Context) (*tree.GlobalView, error) {
	var cached tree.GlobalView
	if s.cacheGet(ctx, cache.GlobalTreeKey, &cached) {
		return &cached, nil
	}

	gen := s.cacheGeneration()
	var (
		relationships []domain.Relationship
		interactions  []domain.Interaction
		quests        []domain.Quest
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		relationships, err = s.store.AllRelationships(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		interactions, err = s.store.ListInteractionTimes(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		quests, err = s.store.ListActiveQuests(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	v := tree.BuildGlobal(relationships, interactions, quests, s.now())
	s.cacheSetAt(ctx, gen, cache.GlobalTreeKey, v)
	return &v, nil
}

// GetEvolutionInput contains parameters for GetEvolution.
type GetEvolutionInput struct {
	RelationshipID string
}

// GetEvolution collects eligible category suggestions from recent interactions.
func (s *Service) GetEvolution(ctx context.Context, input GetEvolutionInput) (*evolution.View, error) {
	if strings.TrimSpace(input.RelationshipID) == "" {
		return nil, errors.NewInvalidRequest("relationship_id is required")
	}
	rel, err := s.store.GetRelationship(ctx, input.RelationshipID)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.ListInteractions(ctx, rel.ID, evolution.RecentWindow)
	if err != nil {
		return nil, err
	}
	v := evolution.Suggest(leveling.LevelForXP(rel.XP), rel.Categories, recent)
	return &v, nil
}

// cacheGet reports a hit. Cache errors are logged and treated as misses.
func (s *Service) cacheGet(ctx context.Context, key string, dst any) bool {
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return ok
}

func (s *Service) cacheGeneration() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.generation
}

// cacheSetAt stores value only if nothing was invalidated since gen was read.
func (s *Service) cacheSetAt(ctx context.Context, gen uint64, key string, value any) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.generation != gen {
		s.logger.Debug("projection outdated by a concurrent write, not cached", zap.String("key", key))
		return
	}
	s.cacheSet(ctx, key, value)
}

func (s *Service) cacheSet(ctx context.Context, key string, value any) {
	if err := s.cache.Set(ctx, key, value, s.cfg.Redis.TTL); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

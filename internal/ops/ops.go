// Package ops implements grove's operations: relationship management, the
// interaction and quest progression pipeline, and the tree and insights
// read models. Transports (MCP, CLI) are thin wrappers over Service.
package ops

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/grove/internal/cache"
	"github.com/hpungsan/grove/internal/config"
	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/insights"
	"github.com/hpungsan/grove/internal/llm"
	"github.com/hpungsan/grove/internal/quest"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Store is the persistence the operations need. *db.DB implements it.
type Store interface {
	CreateRelationship(ctx context.Context, rel *domain.Relationship) error
	GetRelationship(ctx context.Context, id string) (*domain.Relationship, error)
	ListRelationships(ctx context.Context, limit, offset int) ([]domain.Relationship, int, error)
	AllRelationships(ctx context.Context) ([]domain.Relationship, error)
	UpdateRelationshipProfile(ctx context.Context, rel *domain.Relationship) error
	DeleteRelationship(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]domain.Category, error)
	ReplaceCategories(ctx context.Context, relID string, names []string, userConfirmed bool, at time.Time) ([]string, error)
	ListCategoryHistory(ctx context.Context, relID string) ([]domain.CategoryHistoryEntry, error)

	CommitProgress(ctx context.Context, c domain.ProgressCommit) error
	ListLevelHistory(ctx context.Context, relID string) ([]domain.LevelHistoryEntry, error)

	InsertInteraction(ctx context.Context, in *domain.Interaction) error
	AnnotateInteraction(ctx context.Context, id string, c domain.Classification, fallback bool, at time.Time) (bool, error)
	GetInteraction(ctx context.Context, id string) (*domain.Interaction, error)
	ListInteractions(ctx context.Context, relID string, limit int) ([]domain.Interaction, error)
	ListInteractionTimes(ctx context.Context) ([]domain.Interaction, error)
	SetInteractionMilestone(ctx context.Context, id string, milestone bool, at time.Time) error
	DeleteInteraction(ctx context.Context, id string) error

	InsertQuest(ctx context.Context, q *domain.Quest) error
	GetQuest(ctx context.Context, id string) (*domain.Quest, error)
	ListQuests(ctx context.Context, relID string, status domain.QuestStatus) ([]domain.Quest, error)
	ListActiveQuests(ctx context.Context) ([]domain.Quest, error)
	DeleteQuest(ctx context.Context, id string) error

	GetInsights(ctx context.Context, relID string) (*domain.InsightsRecord, error)
	SaveInsights(ctx context.Context, rec *domain.InsightsRecord) error
}

// Classifier scores an interaction. *llm.Classifier implements it.
type Classifier interface {
	Classify(ctx context.Context, req llm.ClassifyRequest) (domain.Classification, error)
}

// Deps wires a Service. Store is required; everything else has a default.
type Deps struct {
	Store      Store
	Classifier Classifier
	Quests     *quest.Generator
	Insights   *insights.Builder
	Cache      cache.Cache
	Config     *config.Config
	Logger     *zap.Logger
	Now        func() time.Time
}

// Service runs grove's operations.
type Service struct {
	store      Store
	classifier Classifier
	quests     *quest.Generator
	insights   *insights.Builder
	cache      cache.Cache
	cfg        *config.Config
	logger     *zap.Logger
	now        func() time.Time

	// background tracks fire-and-forget insight regeneration.
	background sync.WaitGroup

	// generation counts invalidations. A projection built from reads taken
	// before an invalidation is not cached.
	cacheMu    sync.Mutex
	generation uint64
}

// New creates a Service.
func New(d Deps) *Service {
	s := &Service{
		store:      d.Store,
		classifier: d.Classifier,
		quests:     d.Quests,
		insights:   d.Insights,
		cache:      d.Cache,
		cfg:        d.Config,
		logger:     d.Logger,
		now:        d.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.cfg == nil {
		s.cfg = config.DefaultConfig()
	}
	if s.quests == nil {
		s.quests = quest.NewGenerator(nil, s.cfg.Progression.QuestPriority, s.logger)
	}
	if s.insights == nil {
		s.insights = insights.NewBuilder(nil, s.logger)
	}
	if s.cache == nil {
		s.cache = cache.NewMemory()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s
}

// Close waits for background work to finish.
func (s *Service) Close() {
	s.background.Wait()
}

// invalidate drops cached projections affected by a write to relID.
func (s *Service) invalidate(ctx context.Context, relID string) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	s.generation++

	keys := []string{cache.GlobalTreeKey}
	if relID != "" {
		keys = append(keys, cache.TreeKey(relID))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("relationship_id", relID), zap.Error(err))
	}
}

// clampLimit applies list defaults and bounds.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return min(limit, MaxListLimit)
}

// cleanOptionalString trims whitespace and returns nil for empty values.
func cleanOptionalString(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// cleanTags trims, drops empties and deduplicates.
func cleanTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// cleanCategories trims and deduplicates case-insensitively, keeping order.
func cleanCategories(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		clean := domain.CleanCategory(n)
		norm := domain.NormalizeCategory(clean)
		if clean == "" || seen[norm] {
			continue
		}
		seen[norm] = true
		out = append(out, clean)
	}
	return out
}

package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hpungsan/grove/internal/cache"
	"github.com/hpungsan/grove/internal/config"
	"github.com/hpungsan/grove/internal/db"
	"github.com/hpungsan/grove/internal/insights"
	"github.com/hpungsan/grove/internal/llm"
	"github.com/hpungsan/grove/internal/ops"
	"github.com/hpungsan/grove/internal/quest"
)

// app owns the process-wide resources behind the service.
type app struct {
	svc    *ops.Service
	store  *db.DB
	cache  cache.Cache
	closed bool
}

// newLogger builds a JSON logger on stderr; stdout carries MCP or CLI output.
func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}
	return zc.Build()
}

// newApp wires the store, cache, model clients and service from cfg.
func newApp(ctx context.Context, cfg *config.Config, baseDir string, logger *zap.Logger) (*app, error) {
	store, err := db.Open(ctx, cfg, baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	projections, err := cache.New(ctx, cfg.Redis)
	if err != nil {
		store.Close()
		return nil, err
	}

	completer, err := llm.NewCompleter(cfg.LLM, logger)
	if err != nil {
		closeCache(projections)
		store.Close()
		return nil, err
	}

	deps := ops.Deps{
		Store:  store,
		Cache:  projections,
		Config: cfg,
		Logger: logger.Named("ops"),
	}

	// Interfaces stay nil without a model so every step uses its fallback.
	var (
		writer   quest.TextGenerator
		narrator insights.Narrator
	)
	if completer != nil {
		deps.Classifier = llm.NewClassifier(completer, logger)
		writer = llm.NewQuestWriter(completer)
		narrator = llm.NewNarrator(completer)
	}
	deps.Quests = quest.NewGenerator(writer, cfg.Progression.QuestPriority, logger)
	deps.Insights = insights.NewBuilder(narrator, logger)

	logger.Info("grove ready",
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.Bool("redis", cfg.Redis.Addr != ""))

	return &app{svc: ops.New(deps), store: store, cache: projections}, nil
}

// Close waits for background work and releases resources. Safe to call twice.
func (a *app) Close() {
	if a.closed {
		return
	}
	a.closed = true
	a.svc.Close()
	closeCache(a.cache)
	a.store.Close()
}

func closeCache(c cache.Cache) {
	if r, ok := c.(*cache.Redis); ok {
		r.Close()
	}
}

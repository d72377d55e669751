// Package metrics exposes progression counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "grove"

var (
	XPAwardedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progression",
			Name:      "xp_awarded_total",
			Help:      "Total XP awarded, by source",
		},
		[]string{"source"},
	)

	LevelUpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progression",
			Name:      "level_ups_total",
			Help:      "Total level-ups, by level reached",
		},
		[]string{"level"},
	)

	CASRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "progression",
			Name:      "cas_retries_total",
			Help:      "Compare-and-set attempts that lost a race and retried",
		},
	)

	QuestsGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quest",
			Name:      "generated_total",
			Help:      "Quests generated, by mode and whether the fallback table was used",
		},
		[]string{"mode", "fallback"},
	)

	ClassifierFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "fallbacks_total",
			Help:      "Interactions classified with the generic fallback",
		},
	)

	InsightsRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "insights",
			Name:      "refresh_total",
			Help:      "Insight snapshot regenerations, by outcome",
		},
		[]string{"outcome"},
	)
)

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

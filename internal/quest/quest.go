// Package quest chooses and writes quests for relationships.
//
// Text generation is delegated to a model-backed TextGenerator; every
// failure path falls back to the deterministic tables in fallback.go, so
// Generate always returns usable text.
package quest

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hpungsan/grove/internal/leveling"
)

// Mode selects which kind of quest is produced.
type Mode string

const (
	ModeRegular   Mode = "regular"
	ModeMilestone Mode = "milestone"
	ModeRecurring Mode = "recurring"
)

// ParseMode validates s. Empty input returns "".
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "", ModeRegular, ModeMilestone, ModeRecurring:
		return m, nil
	}
	return "", fmt.Errorf("mode must be one of: regular, milestone, recurring")
}

// SelectMode returns ModeMilestone exactly at milestone levels.
func SelectMode(level int) Mode {
	if leveling.IsMilestone(level) {
		return ModeMilestone
	}
	return ModeRegular
}

// maxQuestChars bounds generated text; longer output is treated as unusable.
const maxQuestChars = 500

// Request is everything a quest writer may use.
type Request struct {
	Mode       Mode
	Level      int
	Categories []string
	// RecentLogs are the newest interaction logs, most recent first.
	RecentLogs []string
	// Theme is filled in for milestone requests.
	Theme string
}

// TextGenerator writes quest text. Implementations may fail or return
// anything; the Generator validates the result.
type TextGenerator interface {
	GenerateQuest(ctx context.Context, req Request) (string, error)
}

// Result is a generated quest description.
type Result struct {
	Description string `json:"description"`
	Mode        Mode   `json:"mode"`
	// Fallback is set when the deterministic table was used.
	Fallback bool `json:"fallback"`
}

// Generator produces quest text, falling back deterministically.
type Generator struct {
	text     TextGenerator
	priority []string
	pick     func(n int) int
	logger   *zap.Logger
}

// NewGenerator creates a Generator. text may be nil, in which case every
// regular and milestone quest comes from the fallback tables.
func NewGenerator(text TextGenerator, priority []string, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		text:     text,
		priority: priority,
		pick:     rand.IntN,
		logger:   logger.Named("quest"),
	}
}

// Generate returns quest text for req. A zero req.Mode is resolved with
// SelectMode. Generate never fails.
func (g *Generator) Generate(ctx context.Context, req Request) Result {
	if req.Mode == "" {
		req.Mode = SelectMode(req.Level)
	}
	if req.Mode == ModeMilestone && !leveling.IsMilestone(req.Level) {
		req.Mode = ModeRegular
	}

	if req.Mode == ModeRecurring {
		return Result{Description: g.recurring(req.Categories), Mode: ModeRecurring}
	}

	if req.Mode == ModeMilestone {
		req.Theme = MilestoneTheme(req.Level)
	}

	if g.text != nil {
		text, err := g.text.GenerateQuest(ctx, req)
		if err == nil {
			if cleaned, ok := cleanQuestText(text); ok {
				return Result{Description: cleaned, Mode: req.Mode}
			}
			err = fmt.Errorf("unusable quest text (%d chars)", utf8.RuneCountInString(text))
		}
		g.logger.Warn("quest generation failed, using fallback",
			zap.String("mode", string(req.Mode)),
			zap.Int("level", req.Level),
			zap.Error(err))
	}

	return Result{Description: g.Fallback(req.Mode, req.Level, req.Categories), Mode: req.Mode, Fallback: true}
}

// Fallback returns the deterministic quest for mode and level.
func (g *Generator) Fallback(mode Mode, level int, categories []string) string {
	if mode == ModeMilestone {
		return MilestoneFallback(level, categories, g.priority)
	}
	return RegularFallback(level)
}

func (g *Generator) recurring(categories []string) string {
	pool := RecurringPool(categories)
	if len(pool) == 0 {
		return DefaultRecurringQuest
	}
	return pool[g.pick(len(pool))]
}

// cleanQuestText trims whitespace and wrapping quotes and rejects empty or
// oversized output.
func cleanQuestText(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, "\"'`")
	s = strings.TrimSpace(s)
	if s == "" || utf8.RuneCountInString(s) > maxQuestChars {
		return "", false
	}
	return s, true
}

// Package insights builds the per-relationship insights snapshot: activity
// trends, an emotional summary, forecasts and suggestions. Numbers are
// computed here; prose comes from a Narrator, with fixed fallbacks when it
// is absent or fails.
package insights

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/grove/internal/domain"
)

const (
	minForNarrative  = 3
	minForForecast   = 5
	maxSuggestions   = 4
	reconnectAfter   = 14
	recentLogs       = 5
	recentSentiments = 10
)

// Suggestion types.
const (
	TypeReflection     = "Reflection Prompt"
	TypeMemory         = "Memory Reminder"
	TypeEvolution      = "Evolution Opportunity"
	TypeReconnection   = "Reconnection Nudge"
	TypeGettingStarted = "Getting Started"
)

var validSuggestionTypes = map[string]bool{
	TypeReflection: true, TypeMemory: true, TypeEvolution: true, TypeReconnection: true,
}

// Snapshot is a complete insights document.
type Snapshot struct {
	InteractionTrends     Trends           `json:"interaction_trends"`
	EmotionalSummary      EmotionalSummary `json:"emotional_summary"`
	RelationshipForecasts Forecasts        `json:"relationship_forecasts"`
	SmartSuggestions      Suggestions      `json:"smart_suggestions"`
	GeneratedAt           time.Time        `json:"generated_at"`
}

// Trends summarises interaction activity.
type Trends struct {
	TotalInteractions int     `json:"total_interactions"`
	WeeklyFrequency   int     `json:"weekly_frequency"`
	MonthlyFrequency  int     `json:"monthly_frequency"`
	LongestStreak     int     `json:"longest_streak"`
	LongestGap        int     `json:"longest_gap"`
	AverageXP         float64 `json:"average_xp"`
	TrendInsight      string  `json:"trend_insight"`
}

// DepthRatio is the percentage of interactions at each XP depth (3/2/1).
type DepthRatio struct {
	High   int `json:"high"`
	Medium int `json:"medium"`
	Low    int `json:"low"`
}

// EmotionalSummary describes the emotional texture of a relationship.
type EmotionalSummary struct {
	CommonTone        string     `json:"common_tone"`
	ToneShift         *string    `json:"tone_shift"`
	EmotionalKeywords []string   `json:"emotional_keywords"`
	DepthRatio        DepthRatio `json:"depth_ratio"`
	Summary           string     `json:"summary"`
}

// Forecast is one possible trajectory.
type Forecast struct {
	Path       string `json:"path"`
	Confidence int    `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

// Forecasts wraps the forecast list.
type Forecasts struct {
	Forecasts     []Forecast `json:"forecasts"`
	NotEnoughData bool       `json:"not_enough_data"`
}

// Suggestion is an actionable prompt.
type Suggestion struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

// Suggestions wraps the suggestion list.
type Suggestions struct {
	Suggestions []Suggestion `json:"suggestions"`
}

// Subject is the relationship an insights snapshot is built for.
// Interactions may be in any order.
type Subject struct {
	Name         string
	Level        int
	Categories   []string
	Interactions []domain.Interaction
}

// NarrativeRequest is the context handed to a Narrator.
type NarrativeRequest struct {
	Name          string
	Level         int
	Categories    []string
	Logs          []string
	Sentiments    []string
	DepthRatio    DepthRatio
	XPPace        float64
	DaysSinceLast int
}

// EmotionalNarrative is the Narrator's part of the emotional summary.
type EmotionalNarrative struct {
	CommonTone string   `json:"common_tone"`
	ToneShift  *string  `json:"tone_shift"`
	Keywords   []string `json:"emotional_keywords"`
	Summary    string   `json:"summary"`
}

// Narrator writes the prose sections. Every method may fail.
type Narrator interface {
	EmotionalSummary(ctx context.Context, req NarrativeRequest) (EmotionalNarrative, error)
	Forecasts(ctx context.Context, req NarrativeRequest) ([]Forecast, error)
	Suggestions(ctx context.Context, req NarrativeRequest) ([]Suggestion, error)
}

// Builder assembles snapshots.
type Builder struct {
	narrator Narrator
	logger   *zap.Logger
}

// NewBuilder creates a Builder. narrator may be nil.
func NewBuilder(narrator Narrator, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{narrator: narrator, logger: logger.Named("insights")}
}

// Build computes a full snapshot at now.
func (b *Builder) Build(ctx context.Context, s Subject, now time.Time) Snapshot {
	interactions := append([]domain.Interaction(nil), s.Interactions...)
	sort.SliceStable(interactions, func(i, j int) bool {
		return interactions[i].CreatedAt.After(interactions[j].CreatedAt)
	})
	s.Interactions = interactions

	req := narrativeRequest(s, now)
	return Snapshot{
		InteractionTrends:     buildTrends(s, now),
		EmotionalSummary:      b.emotionalSummary(ctx, s, req),
		RelationshipForecasts: b.forecasts(ctx, s, req),
		SmartSuggestions:      b.suggestions(ctx, s, req),
		GeneratedAt:           now,
	}
}

func narrativeRequest(s Subject, now time.Time) NarrativeRequest {
	req := NarrativeRequest{
		Name:       s.Name,
		Level:      s.Level,
		Categories: s.Categories,
		DepthRatio: depthRatio(s.Interactions),
	}
	total := 0
	for i := range s.Interactions {
		in := &s.Interactions[i]
		total += in.XPGain()
		if len(req.Logs) < recentLogs && in.Log != "" {
			req.Logs = append(req.Logs, in.Log)
		}
		if len(req.Sentiments) < recentSentiments && in.Classification != nil && in.Classification.Sentiment != "" {
			req.Sentiments = append(req.Sentiments, in.Classification.Sentiment)
		}
	}
	if n := len(s.Interactions); n > 0 {
		req.XPPace = float64(total) / float64(n)
		req.DaysSinceLast = wholeDays(now.Sub(s.Interactions[0].CreatedAt))
	}
	return req
}

func buildTrends(s Subject, now time.Time) Trends {
	t := Trends{TotalInteractions: len(s.Interactions)}
	if t.TotalInteractions == 0 {
		t.TrendInsight = "No interactions recorded yet."
		return t
	}

	weekAgo := now.Add(-7 * 24 * time.Hour)
	monthAgo := now.Add(-30 * 24 * time.Hour)
	twoMonthsAgo := now.Add(-60 * 24 * time.Hour)
	prevMonth := 0
	xpSum, xpCount := 0, 0

	for i := range s.Interactions {
		in := &s.Interactions[i]
		switch {
		case in.CreatedAt.After(weekAgo):
			t.WeeklyFrequency++
			t.MonthlyFrequency++
		case in.CreatedAt.After(monthAgo):
			t.MonthlyFrequency++
		case in.CreatedAt.After(twoMonthsAgo):
			prevMonth++
		}
		if in.Classification != nil {
			xpSum += in.Classification.XPGain
			xpCount++
		}
	}
	if xpCount > 0 {
		t.AverageXP = round1(float64(xpSum) / float64(xpCount))
	}
	t.LongestStreak, t.LongestGap = streakAndGap(s.Interactions)
	t.TrendInsight = trendInsight(s.Name, t, prevMonth)
	return t
}

// streakAndGap works on distinct UTC calendar days of interactions sorted
// newest first.
func streakAndGap(interactions []domain.Interaction) (streak, gap int) {
	var days []time.Time
	for i := range interactions {
		d := interactions[i].CreatedAt.UTC().Truncate(24 * time.Hour)
		if len(days) == 0 || !days[len(days)-1].Equal(d) {
			days = append(days, d)
		}
	}

	streak, current := 1, 1
	for i := 1; i < len(days); i++ {
		diff := wholeDays(days[i-1].Sub(days[i]))
		if diff == 1 {
			current++
		} else {
			current = 1
		}
		if current > streak {
			streak = current
		}
		if diff-1 > gap {
			gap = diff - 1
		}
	}
	return streak, gap
}

func trendInsight(name string, t Trends, prevMonth int) string {
	switch {
	case t.TotalInteractions == 1:
		return fmt.Sprintf("You've logged your first interaction with %s. Keep building your connection!", name)
	case t.TotalInteractions < minForNarrative:
		return fmt.Sprintf("You're just getting started with logging interactions with %s.", name)
	case t.MonthlyFrequency > prevMonth:
		return fmt.Sprintf("Your interactions with %s are more frequent than last month. This suggests your relationship is growing stronger.", name)
	case t.MonthlyFrequency < prevMonth:
		return fmt.Sprintf("Your interactions with %s are less frequent than last month. It might be time for a check-in.", name)
	case t.LongestGap > reconnectAfter:
		return fmt.Sprintf("While you maintain a steady relationship with %s, there was a %d-day gap in your interactions. Consider scheduling regular check-ins.", name, t.LongestGap)
	default:
		return fmt.Sprintf("You maintain a consistent connection with %s, with an average of %.1f XP per interaction.", name, t.AverageXP)
	}
}

func depthRatio(interactions []domain.Interaction) DepthRatio {
	var high, medium, low int
	for i := range interactions {
		switch interactions[i].XPGain() {
		case 3:
			high++
		case 2:
			medium++
		case 1:
			low++
		}
	}
	total := high + medium + low
	if total == 0 {
		return DepthRatio{}
	}
	pct := func(n int) int { return int(math.Round(float64(n) / float64(total) * 100)) }
	return DepthRatio{High: pct(high), Medium: pct(medium), Low: pct(low)}
}

func (b *Builder) emotionalSummary(ctx context.Context, s Subject, req NarrativeRequest) EmotionalSummary {
	out := EmotionalSummary{
		CommonTone:        "Not enough data",
		EmotionalKeywords: []string{},
		DepthRatio:        req.DepthRatio,
	}
	if len(s.Interactions) == 0 {
		out.Summary = fmt.Sprintf("No interactions recorded with %s yet.", s.Name)
		return out
	}
	if len(s.Interactions) < minForNarrative || len(req.Sentiments) == 0 {
		out.Summary = fmt.Sprintf("Starting to build emotional data with %s. Log more interactions to get deeper insights.", s.Name)
		return out
	}

	out.CommonTone = "Mixed"
	out.Summary = fmt.Sprintf("Relationship with %s shows a mix of emotions across %d interactions.", s.Name, len(req.Sentiments))
	if b.narrator == nil {
		return out
	}
	n, err := b.narrator.EmotionalSummary(ctx, req)
	if err != nil {
		b.logger.Warn("emotional summary failed, using fallback", zap.Error(err))
		return out
	}
	if n.CommonTone != "" {
		out.CommonTone = n.CommonTone
	}
	out.ToneShift = n.ToneShift
	if n.Keywords != nil {
		out.EmotionalKeywords = n.Keywords
	}
	if n.Summary != "" {
		out.Summary = n.Summary
	}
	return out
}

func (b *Builder) forecasts(ctx context.Context, s Subject, req NarrativeRequest) Forecasts {
	if len(s.Interactions) < minForForecast {
		return Forecasts{
			Forecasts: []Forecast{{
				Path:       "Need more data",
				Confidence: 0,
				Reasoning:  "Log more interactions to generate forecasts.",
			}},
			NotEnoughData: true,
		}
	}

	var cleaned []Forecast
	if b.narrator != nil {
		raw, err := b.narrator.Forecasts(ctx, req)
		if err != nil {
			b.logger.Warn("forecasts failed, using fallback", zap.Error(err))
		}
		for _, f := range raw {
			if strings.TrimSpace(f.Path) == "" || strings.TrimSpace(f.Reasoning) == "" {
				continue
			}
			f.Confidence = max(0, min(100, f.Confidence))
			cleaned = append(cleaned, f)
		}
	}
	if len(cleaned) == 0 {
		first := "relationship"
		if len(s.Categories) > 0 {
			first = s.Categories[0]
		}
		cleaned = []Forecast{{
			Path:       fmt.Sprintf("Continued %s at current level", first),
			Confidence: 80,
			Reasoning:  fmt.Sprintf("Based on consistent interaction patterns with %s.", s.Name),
		}}
	}
	return Forecasts{Forecasts: cleaned}
}

func (b *Builder) suggestions(ctx context.Context, s Subject, req NarrativeRequest) Suggestions {
	if len(s.Interactions) == 0 {
		return Suggestions{Suggestions: []Suggestion{{
			Type:    TypeGettingStarted,
			Content: fmt.Sprintf("Log your first interaction with %s to start building insights.", s.Name),
		}}}
	}

	var out []Suggestion
	if req.DaysSinceLast > reconnectAfter {
		out = append(out, Suggestion{
			Type:    TypeReconnection,
			Content: fmt.Sprintf("You haven't logged anything about %s in over %d days. How are they doing?", s.Name, req.DaysSinceLast),
		})
	}

	reflection := Suggestion{
		Type:    TypeReflection,
		Content: fmt.Sprintf("What do you value most about your relationship with %s?", s.Name),
	}
	if len(s.Interactions) < minForNarrative {
		out = append(out, reflection)
		return Suggestions{Suggestions: out}
	}

	var generated []Suggestion
	var err error
	if b.narrator != nil {
		generated, err = b.narrator.Suggestions(ctx, req)
		if err != nil {
			b.logger.Warn("suggestions failed, using fallback", zap.Error(err))
			generated = nil
		}
	}
	if b.narrator == nil || err != nil {
		generated = []Suggestion{reflection, {
			Type:    TypeEvolution,
			Content: fmt.Sprintf("Consider planning a new type of activity with %s to deepen your connection.", s.Name),
		}}
	}
	for _, g := range generated {
		if strings.TrimSpace(g.Content) == "" {
			continue
		}
		if !validSuggestionTypes[g.Type] {
			g.Type = TypeReflection
		}
		out = append(out, g)
	}
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return Suggestions{Suggestions: out}
}

func wholeDays(d time.Duration) int {
	if d < 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

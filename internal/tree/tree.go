// Package tree builds the read-side projections of relationship history:
// the per-relationship tree and the global rollup. Everything here is a
// pure function of its inputs.
package tree

import (
	"sort"
	"time"

	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/leveling"
)

const (
	maxLeaves      = 10
	maxFireflies   = 3
	leafSummaryLen = 50
	neutral        = "Neutral"
)

// Input is the stored history a tree is built from.
type Input struct {
	Relationship    domain.Relationship
	CategoryHistory []domain.CategoryHistoryEntry
	Interactions    []domain.Interaction
	CompletedQuests []domain.Quest
	LevelHistory    []domain.LevelHistoryEntry
	// Vocabulary is the full category list, used to pad fireflies.
	Vocabulary []string
}

// View is the per-relationship tree.
type View struct {
	RelationshipID      string    `json:"relationship_id"`
	Name                string    `json:"name"`
	Level               int       `json:"level"`
	XP                  int       `json:"xp"`
	Trunk               string    `json:"trunk"`
	TrunkColor          string    `json:"trunk_color"`
	Branches            []Branch  `json:"branches"`
	Leaves              []Leaf    `json:"leaves"`
	Blossoms            []Blossom `json:"blossoms"`
	Fireflies           []Firefly `json:"fireflies"`
	Rings               []Ring    `json:"rings"`
	RelationshipAgeDays int       `json:"relationship_age_days"`
	IsComplete          bool      `json:"is_complete"`
	// Degraded is set when the tree was built without its history.
	Degraded    bool      `json:"degraded,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Branch is an active category added after the trunk.
type Branch struct {
	Category        string     `json:"category"`
	Color           string     `json:"color"`
	AddedAt         *time.Time `json:"added_at,omitempty"`
	UnlockedAtLevel int        `json:"unlocked_at_level"`
}

// Leaf is a notable interaction.
type Leaf struct {
	InteractionID string    `json:"interaction_id"`
	Summary       string    `json:"summary"`
	Sentiment     string    `json:"sentiment"`
	XPGain        int       `json:"xp_gain"`
	Date          time.Time `json:"date"`
}

// Blossom is a completed quest attributed to a category.
type Blossom struct {
	QuestID        string     `json:"quest_id"`
	Description    string     `json:"description"`
	Category       string     `json:"category"`
	MilestoneLevel *int       `json:"milestone_level,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// Firefly is a candidate next category.
type Firefly struct {
	Category string `json:"category"`
	// Suggested is set when the classifier proposed this category recently.
	Suggested bool `json:"suggested"`
}

// Ring is one level's growth ring. Complete rings are fully grown; the
// single incomplete ring carries progress through the current level.
type Ring struct {
	Level           int        `json:"level"`
	Complete        bool       `json:"complete"`
	ReachedAt       *time.Time `json:"reached_at,omitempty"`
	ProgressPercent int        `json:"progress_percent"`
}

// Build assembles the tree for in.Relationship.
func Build(in Input, now time.Time) View {
	rel := in.Relationship
	level := leveling.LevelForXP(rel.XP)

	history := sortedHistory(in.CategoryHistory)
	levels := sortedLevels(in.LevelHistory)

	trunk := pickTrunk(history, rel.Categories)
	v := base(rel, level, trunk, now)
	v.Branches = buildBranches(trunk, rel.Categories, history, levels)
	v.Leaves = buildLeaves(in.Interactions)
	v.Blossoms = buildBlossoms(trunk, v.Branches, in.CompletedQuests)
	v.Fireflies = buildFireflies(rel.Categories, in.Interactions, in.Vocabulary)
	v.Rings = buildRings(rel, level, levels)
	return v
}

// Minimal builds the degraded tree used when history cannot be loaded:
// trunk and branches from the active categories and one incomplete ring.
func Minimal(rel domain.Relationship, now time.Time) View {
	level := leveling.LevelForXP(rel.XP)
	trunk := pickTrunk(nil, rel.Categories)
	v := base(rel, level, trunk, now)
	for _, c := range rel.Categories {
		if c == trunk {
			continue
		}
		v.Branches = append(v.Branches, Branch{Category: c, Color: Color(c), UnlockedAtLevel: 1})
	}
	if level < leveling.MaxLevel {
		v.Rings = []Ring{{Level: level, ProgressPercent: leveling.ProgressPercent(rel.XP, level)}}
	}
	v.Degraded = true
	return v
}

func base(rel domain.Relationship, level int, trunk string, now time.Time) View {
	return View{
		RelationshipID:      rel.ID,
		Name:                rel.Name,
		Level:               level,
		XP:                  rel.XP,
		Trunk:               trunk,
		TrunkColor:          Color(trunk),
		Branches:            []Branch{},
		Leaves:              []Leaf{},
		Blossoms:            []Blossom{},
		Fireflies:           []Firefly{},
		Rings:               []Ring{},
		RelationshipAgeDays: daysBetween(rel.CreatedAt, now),
		IsComplete:          level >= leveling.MaxLevel,
		GeneratedAt:         now,
	}
}

// pickTrunk returns the category of the earliest "added" history row,
// else the first active category, else OtherCategory.
func pickTrunk(history []domain.CategoryHistoryEntry, active []string) string {
	for _, h := range history {
		if h.ChangeType == domain.CategoryAdded {
			return h.Category
		}
	}
	if len(active) > 0 {
		return active[0]
	}
	return OtherCategory
}

func buildBranches(trunk string, active []string, history []domain.CategoryHistoryEntry, levels []domain.LevelHistoryEntry) []Branch {
	branches := []Branch{}
	trunkNorm := domain.NormalizeCategory(trunk)
	for _, c := range active {
		norm := domain.NormalizeCategory(c)
		if norm == trunkNorm {
			continue
		}
		b := Branch{Category: c, Color: Color(c), UnlockedAtLevel: 1}
		if linked := latestAdded(history, norm); linked != nil {
			at := linked.CreatedAt
			b.AddedAt = &at
			b.UnlockedAtLevel = levelAt(levels, at)
		}
		branches = append(branches, b)
	}
	return branches
}

// latestAdded returns the newest "added" row for a normalized category.
func latestAdded(history []domain.CategoryHistoryEntry, norm string) *domain.CategoryHistoryEntry {
	var found *domain.CategoryHistoryEntry
	for i := range history {
		h := &history[i]
		if h.ChangeType == domain.CategoryAdded && domain.NormalizeCategory(h.Category) == norm {
			found = h
		}
	}
	return found
}

// levelAt returns the level in effect at t: the new level of the latest
// level-up at or before t, or 1.
func levelAt(levels []domain.LevelHistoryEntry, t time.Time) int {
	level := 1
	for _, l := range levels {
		if l.CreatedAt.After(t) {
			break
		}
		level = l.NewLevel
	}
	return level
}

// buildLeaves prefers milestone-flagged interactions (newest first) and
// falls back to the highest-XP interactions.
func buildLeaves(interactions []domain.Interaction) []Leaf {
	picked := make([]domain.Interaction, 0, maxLeaves)
	for _, i := range newestFirst(interactions) {
		if i.IsMilestone {
			picked = append(picked, i)
		}
	}
	if len(picked) == 0 {
		picked = newestFirst(interactions)
		sort.SliceStable(picked, func(a, b int) bool {
			return picked[a].XPGain() > picked[b].XPGain()
		})
	}
	if len(picked) > maxLeaves {
		picked = picked[:maxLeaves]
	}

	leaves := make([]Leaf, 0, len(picked))
	for _, i := range picked {
		sentiment := neutral
		if i.Classification != nil && i.Classification.Sentiment != "" {
			sentiment = i.Classification.Sentiment
		}
		leaves = append(leaves, Leaf{
			InteractionID: i.ID,
			Summary:       domain.Truncate(i.Log, leafSummaryLen),
			Sentiment:     sentiment,
			XPGain:        i.XPGain(),
			Date:          i.CreatedAt,
		})
	}
	return leaves
}

func buildBlossoms(trunk string, branches []Branch, quests []domain.Quest) []Blossom {
	blossoms := []Blossom{}
	for _, q := range quests {
		if q.Status != domain.QuestCompleted {
			continue
		}
		category := trunk
		if q.MilestoneLevel != nil {
			for _, b := range branches {
				if b.UnlockedAtLevel == *q.MilestoneLevel {
					category = b.Category
					break
				}
			}
		}
		blossoms = append(blossoms, Blossom{
			QuestID:        q.ID,
			Description:    q.Description,
			Category:       category,
			MilestoneLevel: q.MilestoneLevel,
			CompletedAt:    q.CompletedAt,
		})
	}
	return blossoms
}

// buildFireflies lists up to three inactive categories, recent classifier
// suggestions first, padded from the vocabulary in order.
func buildFireflies(active []string, interactions []domain.Interaction, vocabulary []string) []Firefly {
	taken := make(map[string]bool, len(active))
	for _, c := range active {
		taken[domain.NormalizeCategory(c)] = true
	}

	fireflies := []Firefly{}
	add := func(category string, suggested bool) {
		norm := domain.NormalizeCategory(category)
		if norm == "" || taken[norm] || len(fireflies) >= maxFireflies {
			return
		}
		taken[norm] = true
		fireflies = append(fireflies, Firefly{Category: domain.CleanCategory(category), Suggested: suggested})
	}

	for _, i := range newestFirst(interactions) {
		add(i.EvolutionSuggestion(), true)
	}
	for _, c := range vocabulary {
		add(c, false)
	}
	return fireflies
}

// buildRings returns complete rings for every fully grown level and one
// incomplete ring for the current level; at max level every ring is complete.
func buildRings(rel domain.Relationship, level int, levels []domain.LevelHistoryEntry) []Ring {
	rings := make([]Ring, 0, level)
	for l := 1; l <= level; l++ {
		r := Ring{Level: l, ReachedAt: reachedAt(rel, levels, l)}
		if l < level || level == leveling.MaxLevel {
			r.Complete = true
			r.ProgressPercent = 100
		} else {
			r.ProgressPercent = leveling.ProgressPercent(rel.XP, level)
		}
		rings = append(rings, r)
	}
	return rings
}

// reachedAt is when the relationship first reached level l.
func reachedAt(rel domain.Relationship, levels []domain.LevelHistoryEntry, l int) *time.Time {
	if l == 1 {
		if rel.CreatedAt.IsZero() {
			return nil
		}
		t := rel.CreatedAt
		return &t
	}
	for _, h := range levels {
		if h.OldLevel < l && h.NewLevel >= l {
			t := h.CreatedAt
			return &t
		}
	}
	return nil
}

func sortedHistory(history []domain.CategoryHistoryEntry) []domain.CategoryHistoryEntry {
	out := append([]domain.CategoryHistoryEntry(nil), history...)
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out
}

func sortedLevels(levels []domain.LevelHistoryEntry) []domain.LevelHistoryEntry {
	out := append([]domain.LevelHistoryEntry(nil), levels...)
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out
}

func newestFirst(interactions []domain.Interaction) []domain.Interaction {
	out := append([]domain.Interaction(nil), interactions...)
	sort.SliceStable(out, func(a, b int) bool { return out[a].CreatedAt.After(out[b].CreatedAt) })
	return out
}

// daysBetween returns whole days from t to now, never negative.
func daysBetween(t, now time.Time) int {
	if t.IsZero() || now.Before(t) {
		return 0
	}
	return int(now.Sub(t) / (24 * time.Hour))
}

package tree

import (
	"math"
	"sort"
	"time"

	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/leveling"
)

// DevelopingNetworkTag is the identity tag used before any categories exist.
const DevelopingNetworkTag = "Developing Network"

const (
	defaultRootStrength  = 50
	unknownIntervalLimit = 90
)

// fadingThresholds is the allowed silence, in days, per reminder interval.
var fadingThresholds = map[domain.ReminderInterval]int{
	domain.IntervalDaily:    3,
	domain.IntervalWeekly:   14,
	domain.IntervalBiweekly: 28,
	domain.IntervalMonthly:  60,
}

// GlobalView is the rollup across all relationships.
type GlobalView struct {
	RootStrength int            `json:"root_strength"`
	IdentityTags []string       `json:"identity_tags"`
	Branches     []GlobalBranch `json:"branches"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// GlobalBranch aggregates the relationships in one category.
type GlobalBranch struct {
	Category          string `json:"category"`
	Color             string `json:"color"`
	TotalLevelSum     int    `json:"total_level_sum"`
	RelationshipCount int    `json:"relationship_count"`
	// AverageRecencyDays is the mean days since last interaction over
	// members that have interacted, rounded to one decimal; nil if none have.
	AverageRecencyDays *float64           `json:"average_recency_days"`
	Relationships      []RelationshipNode `json:"relationships"`
}

// RelationshipNode is one relationship within a global branch.
type RelationshipNode struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Level               int    `json:"level"`
	LastInteractionDays *int   `json:"last_interaction_days"`
	IsFading            bool   `json:"is_fading"`
	HasActiveQuest      bool   `json:"has_active_quest"`
}

// IsFading reports whether a relationship has gone quiet for longer than
// its reminder interval allows. Never having interacted, or having no
// interval, counts as fading.
func IsFading(daysSince *int, interval domain.ReminderInterval) bool {
	if daysSince == nil || interval == "" {
		return true
	}
	limit, ok := fadingThresholds[interval]
	if !ok {
		limit = unknownIntervalLimit
	}
	return *daysSince > limit
}

// BuildGlobal rolls relationships up by category. interactions only need
// RelationshipID and CreatedAt; quests are treated as active unless completed.
// Levels are derived from XP, never taken from the stored level.
func BuildGlobal(relationships []domain.Relationship, interactions []domain.Interaction, quests []domain.Quest, now time.Time) GlobalView {
	latest := make(map[string]time.Time)
	for _, i := range interactions {
		if t, ok := latest[i.RelationshipID]; !ok || i.CreatedAt.After(t) {
			latest[i.RelationshipID] = i.CreatedAt
		}
	}
	activeQuest := make(map[string]bool)
	for _, q := range quests {
		if q.Status != domain.QuestCompleted {
			activeQuest[q.RelationshipID] = true
		}
	}

	groups := make(map[string]*GlobalBranch)
	var order []string
	levelSum := 0

	for _, rel := range relationships {
		level := leveling.LevelForXP(rel.XP)
		levelSum += level

		node := RelationshipNode{
			ID:             rel.ID,
			Name:           rel.Name,
			Level:          level,
			HasActiveQuest: activeQuest[rel.ID],
		}
		if t, ok := latest[rel.ID]; ok {
			d := daysBetween(t, now)
			node.LastInteractionDays = &d
		}
		node.IsFading = IsFading(node.LastInteractionDays, rel.ReminderInterval)

		categories := rel.Categories
		if len(categories) == 0 {
			categories = []string{OtherCategory}
		}
		for _, c := range categories {
			g, ok := groups[c]
			if !ok {
				g = &GlobalBranch{Category: c, Color: Color(c), Relationships: []RelationshipNode{}}
				groups[c] = g
				order = append(order, c)
			}
			g.TotalLevelSum += node.Level
			g.RelationshipCount++
			g.Relationships = append(g.Relationships, node)
		}
	}

	branches := make([]GlobalBranch, 0, len(order))
	for _, c := range order {
		g := groups[c]
		g.AverageRecencyDays = averageRecency(g.Relationships)
		branches = append(branches, *g)
	}
	sort.SliceStable(branches, func(a, b int) bool {
		return branches[a].RelationshipCount > branches[b].RelationshipCount
	})

	view := GlobalView{
		RootStrength: defaultRootStrength,
		IdentityTags: []string{DevelopingNetworkTag},
		Branches:     branches,
		GeneratedAt:  now,
	}
	if len(relationships) > 0 {
		mean := float64(levelSum) / float64(len(relationships))
		view.RootStrength = clamp(int(math.Round(mean*10)), 0, 100)
	}
	if len(branches) > 0 {
		view.IdentityTags = nil
		for i := 0; i < len(branches) && i < 2; i++ {
			view.IdentityTags = append(view.IdentityTags, branches[i].Category)
		}
	}
	return view
}

func averageRecency(nodes []RelationshipNode) *float64 {
	sum, n := 0, 0
	for _, node := range nodes {
		if node.LastInteractionDays != nil {
			sum += *node.LastInteractionDays
			n++
		}
	}
	if n == 0 {
		return nil
	}
	avg := math.Round(float64(sum)/float64(n)*10) / 10
	return &avg
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

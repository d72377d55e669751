// Package domain holds the records grove persists and passes between layers.
// All timestamps are UTC time.Time values; the store converts them to and
// from unix milliseconds at its boundary.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ReminderInterval is how often the user wants to be in touch with someone.
type ReminderInterval string

const (
	IntervalDaily    ReminderInterval = "daily"
	IntervalWeekly   ReminderInterval = "weekly"
	IntervalBiweekly ReminderInterval = "biweekly"
	IntervalMonthly  ReminderInterval = "monthly"
	IntervalOther    ReminderInterval = "other"
)

// ParseReminderInterval validates s case-insensitively. Empty input means unset.
func ParseReminderInterval(s string) (ReminderInterval, error) {
	v := ReminderInterval(strings.ToLower(strings.TrimSpace(s)))
	switch v {
	case "", IntervalDaily, IntervalWeekly, IntervalBiweekly, IntervalMonthly, IntervalOther:
		return v, nil
	}
	return "", fmt.Errorf("reminder_interval must be one of: daily, weekly, biweekly, monthly, other")
}

// DefaultCategories seeds the category vocabulary.
var DefaultCategories = []string{
	"Friend", "Business", "Romantic", "Mentor", "Acquaintance",
	"Intellectual Peer", "Emotional Support", "Family", "Other",
}

// MaxCategories is the most categories a relationship can carry at once.
const MaxCategories = 3

// Relationship is a tracked person and their progression state.
type Relationship struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Level            int              `json:"level"`
	XP               int              `json:"xp"`
	Categories       []string         `json:"categories"`
	ReminderInterval ReminderInterval `json:"reminder_interval,omitempty"`
	PhotoURL         *string          `json:"photo_url,omitempty"`
	Tags             []string         `json:"tags,omitempty"`
	// Version increments on every progression write and guards compare-and-set.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasCategory reports whether name is among the relationship's categories.
func (r *Relationship) HasCategory(name string) bool {
	norm := NormalizeCategory(name)
	for _, c := range r.Categories {
		if NormalizeCategory(c) == norm {
			return true
		}
	}
	return false
}

// Classification is the classifier's verdict on one interaction.
type Classification struct {
	Sentiment             string  `json:"sentiment"`
	XPGain                int     `json:"xp_gain"`
	Reasoning             string  `json:"reasoning"`
	Patterns              *string `json:"patterns,omitempty"`
	EvolutionSuggestion   *string `json:"evolution_suggestion,omitempty"`
	InteractionSuggestion *string `json:"interaction_suggestion,omitempty"`
}

// Interaction is a logged encounter. Classification is nil until annotated.
type Interaction struct {
	ID             string          `json:"id"`
	RelationshipID string          `json:"relationship_id"`
	Log            string          `json:"interaction_log"`
	ToneTag        *string         `json:"tone_tag,omitempty"`
	Classification *Classification `json:"classification,omitempty"`
	// ClassifierFallback is set when the classification is the generic fallback.
	ClassifierFallback bool       `json:"classifier_fallback"`
	ClassifiedAt       *time.Time `json:"classified_at,omitempty"`
	IsMilestone        bool       `json:"is_milestone"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// XPGain returns the awarded XP, or 0 when unclassified.
func (i *Interaction) XPGain() int {
	if i.Classification == nil {
		return 0
	}
	return i.Classification.XPGain
}

// EvolutionSuggestion returns the classifier's category suggestion, or "".
func (i *Interaction) EvolutionSuggestion() string {
	if i.Classification == nil || i.Classification.EvolutionSuggestion == nil {
		return ""
	}
	return strings.TrimSpace(*i.Classification.EvolutionSuggestion)
}

// QuestStatus is pending until completed; completion happens exactly once.
type QuestStatus string

const (
	QuestPending   QuestStatus = "pending"
	QuestCompleted QuestStatus = "completed"
)

// Quest is a suggested action for a relationship.
type Quest struct {
	ID             string      `json:"id"`
	RelationshipID string      `json:"relationship_id"`
	Description    string      `json:"quest_description"`
	Status         QuestStatus `json:"quest_status"`
	// MilestoneLevel is set for quests generated on reaching a milestone level.
	MilestoneLevel *int       `json:"milestone_level,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// IsMilestone reports whether the quest was generated for a milestone level.
func (q *Quest) IsMilestone() bool {
	return q.MilestoneLevel != nil
}

// Category is a vocabulary entry.
type Category struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CategoryChange describes a category_history row.
type CategoryChange string

const (
	CategoryAdded   CategoryChange = "added"
	CategoryRemoved CategoryChange = "removed"
)

// CategoryHistoryEntry is an append-only audit row for category links.
type CategoryHistoryEntry struct {
	ID             string         `json:"id"`
	RelationshipID string         `json:"relationship_id"`
	Category       string         `json:"category"`
	ChangeType     CategoryChange `json:"change_type"`
	UserConfirmed  bool           `json:"user_confirmed"`
	CreatedAt      time.Time      `json:"created_at"`
}

// LevelHistoryEntry is appended whenever a relationship levels up.
type LevelHistoryEntry struct {
	ID             string    `json:"id"`
	RelationshipID string    `json:"relationship_id"`
	OldLevel       int       `json:"old_level"`
	NewLevel       int       `json:"new_level"`
	XPGained       int       `json:"xp_gained"`
	InteractionID  *string   `json:"interaction_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProgressCommit is one atomic progression write: an optional quest
// completion, the compare-and-set of XP and level, and an optional
// level-history row.
type ProgressCommit struct {
	RelationshipID  string
	ExpectedVersion int64
	XP              int
	Level           int
	UpdatedAt       time.Time
	History         *LevelHistoryEntry

	// CompleteQuestID, when set, moves that quest from pending to completed
	// in the same transaction.
	CompleteQuestID string
	CompletedAt     time.Time
}

// InsightsRecord is a stored insights snapshot. Payload is opaque to the store.
type InsightsRecord struct {
	RelationshipID string          `json:"relationship_id"`
	Payload        json.RawMessage `json:"payload"`
	GeneratedAt    time.Time       `json:"generated_at"`
}

// Package progression applies XP awards to a relationship.
//
// Apply is pure: persistence (including the compare-and-set that makes
// concurrent awards safe) belongs to the caller.
package progression

import (
	"fmt"
	"time"

	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/leveling"
)

// Result describes the effect of one XP award.
type Result struct {
	OldXP     int  `json:"old_xp"`
	NewXP     int  `json:"new_xp"`
	XPGained  int  `json:"xp_gained"`
	OldLevel  int  `json:"old_level"`
	NewLevel  int  `json:"new_level"`
	LeveledUp bool `json:"leveled_up"`
	// MilestoneHit is NewLevel when the award leveled up onto a milestone.
	// Milestones jumped over by a multi-level award do not fire.
	MilestoneHit *int `json:"milestone_hit,omitempty"`
	// Repaired is set when the stored level disagreed with the stored XP.
	Repaired bool `json:"-"`
}

// Apply adds delta XP to rel and returns the transition. rel is not modified.
// The old level is derived from rel.XP rather than trusted from rel.Level.
func Apply(rel domain.Relationship, delta int) (Result, error) {
	if delta < 0 {
		return Result{}, errors.NewInvalidRequest(fmt.Sprintf("xp delta must be non-negative, got %d", delta))
	}

	oldLevel := leveling.LevelForXP(rel.XP)
	newXP := rel.XP + delta
	newLevel := leveling.LevelForXP(newXP)

	res := Result{
		OldXP:     rel.XP,
		NewXP:     newXP,
		XPGained:  delta,
		OldLevel:  oldLevel,
		NewLevel:  newLevel,
		LeveledUp: newLevel > oldLevel,
		Repaired:  rel.Level != oldLevel,
	}
	if res.LeveledUp && leveling.IsMilestone(newLevel) {
		m := newLevel
		res.MilestoneHit = &m
	}
	return res, nil
}

// HistoryEntry returns the level-history row for res, or nil if the award
// did not level up.
func (res Result) HistoryEntry(relationshipID string, interactionID *string, at time.Time) *domain.LevelHistoryEntry {
	if !res.LeveledUp {
		return nil
	}
	return &domain.LevelHistoryEntry{
		ID:             domain.NewID(),
		RelationshipID: relationshipID,
		OldLevel:       res.OldLevel,
		NewLevel:       res.NewLevel,
		XPGained:       res.XPGained,
		InteractionID:  interactionID,
		CreatedAt:      at,
	}
}

// CheckConsistency returns a CONSISTENCY error when rel.Level does not
// match the level derived from rel.XP.
func CheckConsistency(rel domain.Relationship) error {
	want := leveling.LevelForXP(rel.XP)
	if rel.Level == want {
		return nil
	}
	return errors.NewConsistency(
		fmt.Sprintf("relationship %s stores level %d but xp %d implies level %d", rel.ID, rel.Level, rel.XP, want),
		map[string]any{"id": rel.ID, "stored_level": rel.Level, "xp": rel.XP, "derived_level": want},
	)
}

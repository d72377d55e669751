// Package leveling maps cumulative XP to relationship levels.
package leveling

// MaxLevel is the highest reachable level.
const MaxLevel = 10

// thresholds[i] is the cumulative XP needed to reach level i+1.
var thresholds = [MaxLevel]int{0, 5, 12, 22, 36, 54, 78, 108, 145, 190}

// milestones are the levels that unlock a milestone quest.
var milestones = map[int]bool{3: true, 5: true, 7: true, 10: true}

// Threshold returns the cumulative XP required to reach level.
// Levels outside 1..MaxLevel are clamped.
func Threshold(level int) int {
	if level < 1 {
		level = 1
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	return thresholds[level-1]
}

// LevelForXP returns the highest level whose threshold is at or below xp.
// Negative xp is treated as 0.
func LevelForXP(xp int) int {
	level := 1
	for l := MaxLevel; l >= 1; l-- {
		if xp >= thresholds[l-1] {
			level = l
			break
		}
	}
	return level
}

// XPForNextLevel returns the threshold of level+1, or ok=false at MaxLevel.
func XPForNextLevel(level int) (xp int, ok bool) {
	if level >= MaxLevel {
		return 0, false
	}
	return Threshold(level + 1), true
}

// ProgressWithinLevel returns how far xp is into level and the size of
// the level's span. At MaxLevel both are 0. earned is clamped to [0, needed].
func ProgressWithinLevel(xp, level int) (earned, needed int) {
	next, ok := XPForNextLevel(level)
	if !ok {
		return 0, 0
	}
	base := Threshold(level)
	needed = next - base
	earned = xp - base
	if earned < 0 {
		earned = 0
	}
	if earned > needed {
		earned = needed
	}
	return earned, needed
}

// ProgressPercent is ProgressWithinLevel as a whole percentage. The max
// level has no span and always reads 100.
func ProgressPercent(xp, level int) int {
	if level >= MaxLevel {
		return 100
	}
	earned, needed := ProgressWithinLevel(xp, level)
	if needed == 0 {
		return 0
	}
	return earned * 100 / needed
}

// IsMilestone reports whether level unlocks a milestone quest.
func IsMilestone(level int) bool {
	return milestones[level]
}

// Milestones returns the milestone levels in ascending order.
func Milestones() []int {
	return []int{3, 5, 7, 10}
}

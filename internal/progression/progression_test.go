package progression

import (
	"testing"
	"time"

	"github.com/hpungsan/grove/internal/domain"
	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/leveling"
)

func rel(xp int) domain.Relationship {
	return domain.Relationship{ID: "r1", XP: xp, Level: leveling.LevelForXP(xp)}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name      string
		xp, delta int
		newXP     int
		newLevel  int
		leveledUp bool
		milestone int // 0 = none
	}{
		{"first interaction", 0, 2, 2, 1, false, 0},
		{"level 1 to 2", 4, 2, 6, 2, true, 0},
		{"level 2 to 3 milestone", 11, 1, 12, 3, true, 3},
		{"mid level no change", 13, 3, 16, 3, false, 0},
		{"max level keeps accumulating", 195, 3, 198, 10, false, 0},
		{"reach max milestone", 189, 1, 190, 10, true, 10},
		{"zero delta", 20, 0, 20, 3, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Apply(rel(tt.xp), tt.delta)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
			if res.NewXP != tt.newXP {
				t.Errorf("NewXP = %d, want %d", res.NewXP, tt.newXP)
			}
			if res.NewLevel != tt.newLevel {
				t.Errorf("NewLevel = %d, want %d", res.NewLevel, tt.newLevel)
			}
			if res.LeveledUp != tt.leveledUp {
				t.Errorf("LeveledUp = %v, want %v", res.LeveledUp, tt.leveledUp)
			}
			switch {
			case tt.milestone == 0 && res.MilestoneHit != nil:
				t.Errorf("MilestoneHit = %d, want nil", *res.MilestoneHit)
			case tt.milestone != 0 && (res.MilestoneHit == nil || *res.MilestoneHit != tt.milestone):
				t.Errorf("MilestoneHit = %v, want %d", res.MilestoneHit, tt.milestone)
			}
		})
	}
}

func TestApply_SkippedMilestoneDoesNotFire(t *testing.T) {
	// 10 XP (level 2) + 30 = 40 XP (level 5): lands on milestone 5, jumps over 3.
	res, err := Apply(rel(10), 30)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.MilestoneHit == nil || *res.MilestoneHit != 5 {
		t.Fatalf("MilestoneHit = %v, want 5", res.MilestoneHit)
	}

	// 10 XP + 13 = 23 XP (level 4): jumps over milestone 3, lands on a non-milestone.
	res, err = Apply(rel(10), 13)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if res.NewLevel != 4 || res.MilestoneHit != nil {
		t.Errorf("NewLevel = %d, MilestoneHit = %v; want 4, nil", res.NewLevel, res.MilestoneHit)
	}
}

func TestApply_NegativeDelta(t *testing.T) {
	_, err := Apply(rel(5), -1)
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Fatalf("Apply(-1) error = %v, want INVALID_REQUEST", err)
	}
}

func TestApply_Invariants(t *testing.T) {
	for xp := 0; xp <= 200; xp += 7 {
		for delta := 0; delta <= 3; delta++ {
			res, err := Apply(rel(xp), delta)
			if err != nil {
				t.Fatalf("Apply(%d, %d) error = %v", xp, delta, err)
			}
			if res.NewXP != xp+delta {
				t.Fatalf("NewXP = %d, want %d", res.NewXP, xp+delta)
			}
			if res.NewLevel < res.OldLevel {
				t.Fatalf("level decreased: %d -> %d", res.OldLevel, res.NewLevel)
			}
			if res.NewLevel != leveling.LevelForXP(res.NewXP) {
				t.Fatalf("NewLevel %d inconsistent with xp %d", res.NewLevel, res.NewXP)
			}
			if res.MilestoneHit != nil && (!res.LeveledUp || !leveling.IsMilestone(*res.MilestoneHit)) {
				t.Fatalf("MilestoneHit %d without level-up onto a milestone", *res.MilestoneHit)
			}
		}
	}
}

func TestApply_RecomputesInconsistentLevel(t *testing.T) {
	r := domain.Relationship{ID: "r1", XP: 30, Level: 1} // 30 XP is level 4
	res, err := Apply(r, 2)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !res.Repaired {
		t.Error("expected Repaired for inconsistent stored level")
	}
	if res.OldLevel != 4 || res.NewLevel != 4 || res.LeveledUp {
		t.Errorf("got old=%d new=%d leveledUp=%v; want 4, 4, false", res.OldLevel, res.NewLevel, res.LeveledUp)
	}
}

func TestHistoryEntry(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	iid := "i1"

	res, _ := Apply(rel(4), 2)
	h := res.HistoryEntry("r1", &iid, at)
	if h == nil {
		t.Fatal("HistoryEntry() = nil, want entry")
	}
	if h.OldLevel != 1 || h.NewLevel != 2 || h.XPGained != 2 || *h.InteractionID != "i1" || !h.CreatedAt.Equal(at) {
		t.Errorf("HistoryEntry() = %+v", h)
	}

	res, _ = Apply(rel(0), 1)
	if h := res.HistoryEntry("r1", nil, at); h != nil {
		t.Errorf("HistoryEntry() without level-up = %+v, want nil", h)
	}
}

func TestCheckConsistency(t *testing.T) {
	if err := CheckConsistency(rel(40)); err != nil {
		t.Errorf("CheckConsistency(consistent) = %v", err)
	}
	err := CheckConsistency(domain.Relationship{ID: "r1", XP: 40, Level: 2})
	if !errors.Is(err, errors.ErrConsistency) {
		t.Errorf("CheckConsistency(inconsistent) = %v, want CONSISTENCY", err)
	}
}

package domain

import "testing"

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Friend", "friend"},
		{"  Emotional   Support ", "emotional support"},
		{"INTELLECTUAL\tPEER", "intellectual peer"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormalizeCategory(tt.in); got != tt.want {
			t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCleanCategory(t *testing.T) {
	if got := CleanCategory("  Emotional   Support "); got != "Emotional Support" {
		t.Errorf("CleanCategory() = %q", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("short", 50); got != "short" {
		t.Errorf("Truncate(short) = %q", got)
	}
	if got := Truncate("héllo world", 5); got != "héllo..." {
		t.Errorf("Truncate(multibyte) = %q, want %q", got, "héllo...")
	}
}

func TestParseReminderInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    ReminderInterval
		wantErr bool
	}{
		{"Weekly", IntervalWeekly, false},
		{" biweekly ", IntervalBiweekly, false},
		{"", "", false},
		{"yearly", "", true},
	}

	for _, tt := range tests {
		got, err := ParseReminderInterval(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseReminderInterval(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseReminderInterval(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRelationshipHasCategory(t *testing.T) {
	r := &Relationship{Categories: []string{"Friend", "Emotional Support"}}
	if !r.HasCategory("emotional  support") {
		t.Error("expected case/whitespace-insensitive match")
	}
	if r.HasCategory("Mentor") {
		t.Error("unexpected match for Mentor")
	}
}

func TestNewID_Unique(t *testing.T) {
	a, b := NewID(), NewID()
	if len(a) != 26 {
		t.Errorf("len(NewID()) = %d, want 26", len(a))
	}
	if a == b {
		t.Error("expected distinct ids")
	}
}

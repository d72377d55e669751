package quest

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultPriority = []string{"Romantic", "Mentor", "Emotional Support", "Friend", "Business", "Intellectual"}

type fakeText struct {
	text string
	err  error
	reqs []Request
}

func (f *fakeText) GenerateQuest(_ context.Context, req Request) (string, error) {
	f.reqs = append(f.reqs, req)
	return f.text, f.err
}

func TestSelectMode(t *testing.T) {
	for level := 1; level <= 10; level++ {
		want := ModeRegular
		if level == 3 || level == 5 || level == 7 || level == 10 {
			want = ModeMilestone
		}
		if got := SelectMode(level); got != want {
			t.Errorf("SelectMode(%d) = %q, want %q", level, got, want)
		}
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" Recurring ")
	require.NoError(t, err)
	assert.Equal(t, ModeRecurring, m)

	_, err = ParseMode("weekly")
	assert.Error(t, err)
}

func TestRegularFallback(t *testing.T) {
	assert.Equal(t, "Reach out and schedule a time to catch up.", RegularFallback(1))
	assert.Equal(t, "Express what this relationship means to you.", RegularFallback(10))
	assert.Equal(t, DefaultRegularQuest, RegularFallback(11))
	assert.Equal(t, DefaultRegularQuest, RegularFallback(0))
}

func TestMilestoneFallback(t *testing.T) {
	tests := []struct {
		name       string
		level      int
		categories []string
		want       string
	}{
		{"romantic outranks friend", 5, []string{"Friend", "Romantic"},
			"Share a vulnerability about your feelings or needs in relationships."},
		{"mentor outranks business", 7, []string{"Business", "Mentor"},
			"Express how their guidance has shaped your path."},
		{"intellectual peer alias", 3, []string{"Intellectual Peer"},
			"Ask them about a belief they've changed their mind on."},
		{"case-insensitive", 10, []string{"emotional support"},
			"Create a memento symbolizing the support you've given each other."},
		{"no listed category uses default", 3, []string{"Acquaintance"},
			"Ask a big question you've never asked before."},
		{"no categories uses default", 10, nil,
			"Write a 'letter of meaning' expressing what this relationship means to you."},
		{"non-milestone level uses regular table", 4, []string{"Friend"},
			"Invite them to try something new together."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MilestoneFallback(tt.level, tt.categories, defaultPriority))
		})
	}
}

func TestMilestoneFallback_CustomPriority(t *testing.T) {
	got := MilestoneFallback(5, []string{"Friend", "Romantic"}, []string{"Friend", "Romantic"})
	assert.Equal(t, "Share a personal insecurity or fear you don't often discuss.", got)
}

func TestGenerate_UsesModelText(t *testing.T) {
	text := &fakeText{text: "  \"Cook their favourite dish together.\"  "}
	g := NewGenerator(text, defaultPriority, nil)

	res := g.Generate(context.Background(), Request{Level: 5, Categories: []string{"Friend"}})

	assert.Equal(t, "Cook their favourite dish together.", res.Description)
	assert.Equal(t, ModeMilestone, res.Mode)
	assert.False(t, res.Fallback)
	require.Len(t, text.reqs, 1)
	assert.Equal(t, MilestoneTheme(5), text.reqs[0].Theme)
}

func TestGenerate_FallbackOnError(t *testing.T) {
	g := NewGenerator(&fakeText{err: fmt.Errorf("timeout")}, defaultPriority, nil)

	res := g.Generate(context.Background(), Request{Level: 3, Categories: []string{"Mentor"}})

	assert.True(t, res.Fallback)
	assert.Equal(t, ModeMilestone, res.Mode)
	assert.Equal(t, "Ask them about a formative challenge in their career path.", res.Description)
}

func TestGenerate_FallbackOnUnusableText(t *testing.T) {
	for _, text := range []string{"", "   ", strings.Repeat("x", maxQuestChars+1)} {
		g := NewGenerator(&fakeText{text: text}, defaultPriority, nil)
		res := g.Generate(context.Background(), Request{Level: 2})
		assert.True(t, res.Fallback)
		assert.Equal(t, RegularFallback(2), res.Description)
	}
}

func TestGenerate_NilTextGenerator(t *testing.T) {
	g := NewGenerator(nil, defaultPriority, nil)
	res := g.Generate(context.Background(), Request{Level: 8})
	assert.Equal(t, Result{Description: "Plan a meaningful experience together.", Mode: ModeRegular, Fallback: true}, res)
}

func TestGenerate_MilestoneModeOnNonMilestoneLevel(t *testing.T) {
	g := NewGenerator(nil, defaultPriority, nil)
	res := g.Generate(context.Background(), Request{Mode: ModeMilestone, Level: 4})
	assert.Equal(t, ModeRegular, res.Mode)
}

func TestGenerate_Recurring(t *testing.T) {
	text := &fakeText{text: "unused"}
	g := NewGenerator(text, defaultPriority, nil)
	g.pick = func(n int) int { return n - 1 }

	res := g.Generate(context.Background(), Request{Mode: ModeRecurring, Categories: []string{"Friend", "Mentor"}})

	assert.Equal(t, "Express gratitude for a specific piece of guidance.", res.Description)
	assert.Equal(t, ModeRecurring, res.Mode)
	assert.Empty(t, text.reqs, "recurring quests do not call the model")
}

func TestGenerate_RecurringWithoutKnownCategories(t *testing.T) {
	g := NewGenerator(nil, defaultPriority, nil)
	res := g.Generate(context.Background(), Request{Mode: ModeRecurring, Categories: []string{"Acquaintance"}})
	assert.Equal(t, DefaultRecurringQuest, res.Description)
}

func TestRecurringPool_DeduplicatesCategories(t *testing.T) {
	pool := RecurringPool([]string{"Friend", "friend", "Intellectual Peer"})
	assert.Len(t, pool, 6)
}

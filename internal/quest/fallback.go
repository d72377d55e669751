package quest

import "github.com/hpungsan/grove/internal/domain"

// DefaultRegularQuest is used when no per-level fallback exists.
const DefaultRegularQuest = "Connect in a meaningful way this week."

// DefaultRecurringQuest is used when no category has recurring quests.
const DefaultRecurringQuest = "Reach out and reconnect this week."

var regularFallbacks = map[int]string{
	1:  "Reach out and schedule a time to catch up.",
	2:  "Ask them about something they're passionate about.",
	3:  "Share something you've been thinking about lately.",
	4:  "Invite them to try something new together.",
	5:  "Tell them something you appreciate about them.",
	6:  "Ask for their perspective on a challenge you're facing.",
	7:  "Reflect on how your relationship has evolved.",
	8:  "Plan a meaningful experience together.",
	9:  "Share a memory that's important to you.",
	10: "Express what this relationship means to you.",
}

type milestoneTemplate struct {
	theme    string
	fallback string
	// byCategory is keyed by canonical category (see canonicalCategory).
	byCategory map[string]string
}

var milestoneTemplates = map[int]milestoneTemplate{
	3: {
		theme:    "Open curiosity: asking meaningful questions to deepen understanding",
		fallback: "Ask a big question you've never asked before.",
		byCategory: map[string]string{
			"friend":            "Ask them about a childhood memory that shaped who they are today.",
			"romantic":          "Ask about a dream or aspiration they haven't shared with many people.",
			"business":          "Ask about their long-term vision beyond current projects.",
			"mentor":            "Ask them about a formative challenge in their career path.",
			"intellectual":      "Ask them about a belief they've changed their mind on.",
			"emotional support": "Ask what helps them feel supported during difficult times.",
		},
	},
	5: {
		theme:    "Shared vulnerability: revealing more personal aspects of yourself",
		fallback: "Tell them a story you rarely share.",
		byCategory: map[string]string{
			"friend":            "Share a personal insecurity or fear you don't often discuss.",
			"romantic":          "Share a vulnerability about your feelings or needs in relationships.",
			"business":          "Share a professional challenge you're struggling with.",
			"mentor":            "Share an area where you feel uncertain or inadequate.",
			"intellectual":      "Share a deeply held belief you're questioning.",
			"emotional support": "Share something difficult you're currently processing.",
		},
	},
	7: {
		theme:    "Mutual impact: reflecting on how you've influenced each other",
		fallback: "Reflect: How has this person changed you?",
		byCategory: map[string]string{
			"friend":            "Tell them specifically how their friendship has influenced your life.",
			"romantic":          "Share how this relationship has changed your perspective on love.",
			"business":          "Acknowledge how working with them has impacted your professional growth.",
			"mentor":            "Express how their guidance has shaped your path.",
			"intellectual":      "Describe how their ideas have influenced your thinking.",
			"emotional support": "Share how their support has helped you through challenges.",
		},
	},
	10: {
		theme:    "Celebration and honor: commemorating the significance of your relationship",
		fallback: "Write a 'letter of meaning' expressing what this relationship means to you.",
		byCategory: map[string]string{
			"friend":            "Create a meaningful gesture or gift that celebrates your friendship.",
			"romantic":          "Plan a special occasion to honor your relationship journey.",
			"business":          "Formally recognize your professional relationship's achievements.",
			"mentor":            "Create a tribute acknowledging their impact on your development.",
			"intellectual":      "Collaborate on something that represents your shared intellectual journey.",
			"emotional support": "Create a memento symbolizing the support you've given each other.",
		},
	},
}

var recurringQuests = map[string][]string{
	"friend": {
		"Reach out just to say hi.",
		"Share something that made you think of them.",
		"Invite them for a casual hangout.",
	},
	"romantic": {
		"Express appreciation for something specific they did recently.",
		"Plan a surprise date night.",
		"Share a memory of when you first met.",
	},
	"business": {
		"Check in on their current projects.",
		"Share an article or resource relevant to their work.",
		"Offer specific feedback on a recent collaboration.",
	},
	"mentor": {
		"Share an update on how you've applied their advice.",
		"Ask for their perspective on a current challenge.",
		"Express gratitude for a specific piece of guidance.",
	},
	"intellectual": {
		"Share an interesting article or book you've discovered.",
		"Propose a thought experiment or debate topic.",
		"Ask their opinion on a complex issue.",
	},
	"emotional support": {
		"Check in on how they're doing.",
		"Remind them of a strength you admire.",
		"Offer support for something they're working through.",
	},
}

// categoryAliases maps vocabulary names onto template keys.
var categoryAliases = map[string]string{
	"intellectual peer": "intellectual",
}

func canonicalCategory(name string) string {
	norm := domain.NormalizeCategory(name)
	if alias, ok := categoryAliases[norm]; ok {
		return alias
	}
	return norm
}

// MilestoneTheme returns the theme for a milestone level, or "".
func MilestoneTheme(level int) string {
	return milestoneTemplates[level].theme
}

// RegularFallback returns the deterministic regular quest for level.
func RegularFallback(level int) string {
	if q, ok := regularFallbacks[level]; ok {
		return q
	}
	return DefaultRegularQuest
}

// MilestoneFallback returns the deterministic milestone quest for level,
// choosing the first category in priority that the relationship has.
// Non-milestone levels get the regular fallback.
func MilestoneFallback(level int, categories, priority []string) string {
	tmpl, ok := milestoneTemplates[level]
	if !ok {
		return RegularFallback(level)
	}

	have := make(map[string]bool, len(categories))
	for _, c := range categories {
		have[canonicalCategory(c)] = true
	}
	for _, p := range priority {
		key := canonicalCategory(p)
		if !have[key] {
			continue
		}
		if q, ok := tmpl.byCategory[key]; ok {
			return q
		}
	}
	return tmpl.fallback
}

// RecurringPool returns every recurring quest available to categories.
func RecurringPool(categories []string) []string {
	seen := make(map[string]bool)
	var pool []string
	for _, c := range categories {
		key := canonicalCategory(c)
		if seen[key] {
			continue
		}
		seen[key] = true
		pool = append(pool, recurringQuests[key]...)
	}
	return pool
}

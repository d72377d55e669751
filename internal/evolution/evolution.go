// Package evolution decides which classifier category suggestions are worth
// surfacing. It never mutates a relationship's categories; accepting a
// suggestion is an explicit user action.
package evolution

import (
	"strings"

	"github.com/hpungsan/grove/internal/domain"
)

// MinLevelToEvolve is the level at which new categories may be proposed.
const MinLevelToEvolve = 4

// MaxSuggestions caps the suggestions returned by Suggest.
const MaxSuggestions = 3

// RecentWindow is how many recent interactions Suggest reads.
const RecentWindow = 5

// placeholders are model outputs that mean "no suggestion".
var placeholders = map[string]bool{"none": true, "null": true, "n/a": true, "no": true}

// Evaluate returns the suggestion to surface, or ok=false when it is empty,
// already one of current, or the relationship is already at MaxCategories.
func Evaluate(suggestion string, current []string) (string, bool) {
	s := domain.CleanCategory(suggestion)
	if s == "" || placeholders[strings.ToLower(s)] {
		return "", false
	}
	if len(current) >= domain.MaxCategories {
		return "", false
	}
	norm := domain.NormalizeCategory(s)
	for _, c := range current {
		if domain.NormalizeCategory(c) == norm {
			return "", false
		}
	}
	return s, true
}

// View is the evolution summary for one relationship.
type View struct {
	CurrentLevel        int      `json:"current_level"`
	CurrentCategories   []string `json:"current_categories"`
	SuggestedCategories []string `json:"suggested_categories"`
	CanEvolve           bool     `json:"can_evolve"`
}

// Suggest collects the distinct surfaced suggestions from recent
// interactions (newest first) for a relationship.
func Suggest(level int, current []string, recent []domain.Interaction) View {
	v := View{
		CurrentLevel:        level,
		CurrentCategories:   append([]string{}, current...),
		SuggestedCategories: []string{},
		CanEvolve:           level >= MinLevelToEvolve && len(current) < domain.MaxCategories,
	}

	if len(recent) > RecentWindow {
		recent = recent[:RecentWindow]
	}
	seen := make(map[string]bool)
	for i := range recent {
		s, ok := Evaluate(recent[i].EvolutionSuggestion(), current)
		if !ok {
			continue
		}
		norm := domain.NormalizeCategory(s)
		if seen[norm] {
			continue
		}
		seen[norm] = true
		v.SuggestedCategories = append(v.SuggestedCategories, s)
		if len(v.SuggestedCategories) == MaxSuggestions {
			break
		}
	}
	return v
}

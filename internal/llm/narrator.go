package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/grove/internal/insights"
)

const narratorSystem = `You help the user reflect on one of their relationships using their own journal entries.
Be warm, specific and honest. Respond with JSON only, in exactly the shape requested.`

// Narrator writes the prose parts of an insights snapshot.
type Narrator struct {
	completer Completer
}

// NewNarrator wraps completer.
func NewNarrator(completer Completer) *Narrator {
	return &Narrator{completer: completer}
}

var _ insights.Narrator = (*Narrator)(nil)

func (n *Narrator) EmotionalSummary(ctx context.Context, req insights.NarrativeRequest) (insights.EmotionalNarrative, error) {
	prompt := describe(req) + fmt.Sprintf(`
Depth: %d%% high, %d%% medium, %d%% low.

Describe the emotional character of this relationship as:
{"common_tone": "one word", "tone_shift": "recent change in tone, or null",
 "emotional_keywords": ["3 to 5 words"], "summary": "one paragraph"}`,
		req.DepthRatio.High, req.DepthRatio.Medium, req.DepthRatio.Low)

	text, err := n.completer.Complete(ctx, narratorSystem, prompt)
	if err != nil {
		return insights.EmotionalNarrative{}, err
	}
	out, err := ParseJSONResponse[insights.EmotionalNarrative](text)
	if err != nil {
		return insights.EmotionalNarrative{}, err
	}
	if strings.TrimSpace(out.Summary) == "" {
		return insights.EmotionalNarrative{}, fmt.Errorf("empty summary")
	}
	return out, nil
}

func (n *Narrator) Forecasts(ctx context.Context, req insights.NarrativeRequest) ([]insights.Forecast, error) {
	prompt := describe(req) + fmt.Sprintf(`
Average XP per interaction: %.1f

Predict 2 or 3 realistic trajectories for this relationship as a JSON array:
[{"path": "short description", "confidence": 0-100, "reasoning": "one sentence"}]`, req.XPPace)

	text, err := n.completer.Complete(ctx, narratorSystem, prompt)
	if err != nil {
		return nil, err
	}
	return ParseJSONResponse[[]insights.Forecast](text)
}

func (n *Narrator) Suggestions(ctx context.Context, req insights.NarrativeRequest) ([]insights.Suggestion, error) {
	prompt := describe(req) + fmt.Sprintf(`
Days since last interaction: %d

Give three suggestions as a JSON array, one of each type:
[{"type": "Reflection Prompt" | "Memory Reminder" | "Evolution Opportunity", "content": "the suggestion"}]`, req.DaysSinceLast)

	text, err := n.completer.Complete(ctx, narratorSystem, prompt)
	if err != nil {
		return nil, err
	}
	return ParseJSONResponse[[]insights.Suggestion](text)
}

// describe renders the shared relationship context.
func describe(req insights.NarrativeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Person: %s\nLevel: %d of 10\nCategories: %s\n", req.Name, req.Level, strings.Join(req.Categories, ", "))
	if len(req.Sentiments) > 0 {
		fmt.Fprintf(&b, "\nRecent sentiments:\n%s\n", strings.Join(req.Sentiments, "\n"))
	}
	if len(req.Logs) > 0 {
		b.WriteString("\nRecent journal entries:\n")
		for _, log := range req.Logs {
			fmt.Fprintf(&b, "- %s\n", log)
		}
	}
	return b.String()
}

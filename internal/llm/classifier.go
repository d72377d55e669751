package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/grove/internal/domain"
)

const classifierSystem = `You read a short journal entry about an interaction between the user and someone they know, and judge it.

Score xp_gain by depth:
1 = brief or routine contact (a text, a quick hello)
2 = meaningful time together or a real conversation
3 = deep connection: vulnerability, support in a hard moment, a shared milestone

Suggest a new category in evolution_suggestion only when the entry shows the
relationship growing into it and the relationship level allows the change:
- below level 4, never suggest one
- Business or Acquaintance to Friend only above level 4
- Friend to Emotional Support, Mentor or Intellectual Peer from level 4
- Romantic or Family only from level 6
Never repeat a category the relationship already has. Otherwise use null.

Respond with JSON only:
{"sentiment": "one or two words", "xp_gain": 1, "reasoning": "one sentence",
 "patterns": "recurring pattern or null", "evolution_suggestion": "a new relationship category or null",
 "interaction_suggestion": "one concrete next step"}`

// ClassifyRequest is the context for classifying one interaction.
type ClassifyRequest struct {
	Log        string
	Level      int
	Categories []string
}

type classification struct {
	Sentiment             string  `json:"sentiment"`
	XPGain                int     `json:"xp_gain"`
	Reasoning             string  `json:"reasoning"`
	Patterns              *string `json:"patterns"`
	EvolutionSuggestion   *string `json:"evolution_suggestion"`
	InteractionSuggestion *string `json:"interaction_suggestion"`
}

// Classifier scores interactions with a model.
type Classifier struct {
	completer Completer
	logger    *zap.Logger
}

// NewClassifier wraps completer.
func NewClassifier(completer Completer, logger *zap.Logger) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{completer: completer, logger: logger.Named("classifier")}
}

// Classify returns the model's verdict. Output that is not JSON, lacks a
// sentiment or scores outside 1..3 is an error.
func (c *Classifier) Classify(ctx context.Context, req ClassifyRequest) (domain.Classification, error) {
	prompt := fmt.Sprintf("Relationship level: %d\nCategories: %s\n\nInteraction:\n%s",
		req.Level, strings.Join(req.Categories, ", "), req.Log)

	text, err := c.completer.Complete(ctx, classifierSystem, prompt)
	if err != nil {
		return domain.Classification{}, err
	}

	parsed, err := ParseJSONResponse[classification](text)
	if err != nil {
		return domain.Classification{}, err
	}
	if parsed.XPGain < 1 || parsed.XPGain > 3 {
		return domain.Classification{}, fmt.Errorf("xp_gain %d outside 1..3", parsed.XPGain)
	}
	sentiment := strings.TrimSpace(parsed.Sentiment)
	if sentiment == "" {
		return domain.Classification{}, fmt.Errorf("missing sentiment")
	}

	c.logger.Debug("interaction classified",
		zap.String("sentiment", sentiment),
		zap.Int("xp_gain", parsed.XPGain))

	return domain.Classification{
		Sentiment:             sentiment,
		XPGain:                parsed.XPGain,
		Reasoning:             strings.TrimSpace(parsed.Reasoning),
		Patterns:              optional(parsed.Patterns),
		EvolutionSuggestion:   optional(parsed.EvolutionSuggestion),
		InteractionSuggestion: optional(parsed.InteractionSuggestion),
	}, nil
}

// optional drops blank strings.
func optional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/hpungsan/grove/internal/quest"
)

const questSystem = `You suggest one small, concrete action the user can take to deepen a relationship.

Fit the action to the relationship's categories: shared experiences for friends, vulnerability and appreciation for partners, feedback and mutual goals for business contacts, gratitude and learning for mentors.
Go deeper as the level rises. Draw on the recent interactions when they help.
Never suggest anything manipulative or transactional.

Reply with the quest text only, one or two sentences.`

// QuestWriter writes quest text with a model.
type QuestWriter struct {
	completer Completer
}

// NewQuestWriter wraps completer.
func NewQuestWriter(completer Completer) *QuestWriter {
	return &QuestWriter{completer: completer}
}

var _ quest.TextGenerator = (*QuestWriter)(nil)

// GenerateQuest implements quest.TextGenerator.
func (w *QuestWriter) GenerateQuest(ctx context.Context, req quest.Request) (string, error) {
	var b strings.Builder
	switch req.Mode {
	case quest.ModeMilestone:
		fmt.Fprintf(&b, "This relationship just reached milestone level %d.\nMilestone theme: %s\n", req.Level, req.Theme)
	case quest.ModeRecurring:
		fmt.Fprintf(&b, "Suggest a light, repeatable check-in for a level %d relationship.\n", req.Level)
	default:
		fmt.Fprintf(&b, "Relationship level: %d\n", req.Level)
	}
	fmt.Fprintf(&b, "Categories: %s\n", strings.Join(req.Categories, ", "))
	if len(req.RecentLogs) > 0 {
		b.WriteString("\nRecent interactions:\n")
		for _, log := range req.RecentLogs {
			fmt.Fprintf(&b, "- %s\n", log)
		}
	}
	return w.completer.Complete(ctx, questSystem, b.String())
}

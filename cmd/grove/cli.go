package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/ops"
)

// newCLIApp creates the CLI application with all commands.
// svc may be nil when only help or version output is needed.
func newCLIApp(svc *ops.Service) *cli.App {
	app := &cli.App{
		Name:    "grove",
		Usage:   "Relationship progression tracker",
		Version: Version,
		Commands: []*cli.Command{
			relationshipCmd(svc),
			interactionCmd(svc),
			questCmd(svc),
			treeCmd(svc),
			insightsCmd(svc),
			categoriesCmd(svc),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// idArg returns the first positional argument or an INVALID_REQUEST error.
func idArg(c *cli.Context, what string) (string, error) {
	if c.NArg() == 0 {
		return "", errors.NewInvalidRequest(what + " is required")
	}
	return c.Args().First(), nil
}

func relationshipCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:    "relationship",
		Aliases: []string{"rel"},
		Usage:   "Manage tracked relationships",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a relationship at level 1",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Display name"},
					&cli.StringFlag{Name: "categories", Aliases: []string{"c"}, Required: true, Usage: "Comma-separated categories; the first is the trunk"},
					&cli.StringFlag{Name: "interval", Aliases: []string{"i"}, Usage: "Reminder interval: daily|weekly|biweekly|monthly|other"},
					&cli.StringFlag{Name: "photo", Usage: "Photo URL"},
					&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags"},
				},
				Action: func(c *cli.Context) error {
					input := ops.CreateRelationshipInput{
						Name:             c.String("name"),
						Categories:       parseTags(c.String("categories")),
						ReminderInterval: c.String("interval"),
						Tags:             parseTags(c.String("tags")),
					}
					if photo := c.String("photo"); photo != "" {
						input.PhotoURL = &photo
					}
					output, err := svc.CreateRelationship(c.Context, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "get",
				Usage:     "Show a relationship with its level progress",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := idArg(c, "id")
					if err != nil {
						return outputError(err)
					}
					output, err := svc.GetRelationship(c.Context, ops.GetRelationshipInput{ID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:  "list",
				Usage: "List relationships",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max results"},
					&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Pagination offset"},
				},
				Action: func(c *cli.Context) error {
					output, err := svc.ListRelationships(c.Context, ops.ListRelationshipsInput{
						Limit:  c.Int("limit"),
						Offset: c.Int("offset"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "update",
				Usage:     "Update name, reminder interval, photo or tags",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "New display name"},
					&cli.StringFlag{Name: "interval", Aliases: []string{"i"}, Usage: "New reminder interval"},
					&cli.StringFlag{Name: "photo", Usage: "New photo URL (empty clears)"},
					&cli.StringFlag{Name: "tags", Usage: "Comma-separated tags (empty clears)"},
				},
				Action: func(c *cli.Context) error {
					id, err := idArg(c, "id")
					if err != nil {
						return outputError(err)
					}
					input := ops.UpdateRelationshipInput{ID: id}
					if c.IsSet("name") {
						v := c.String("name")
						input.Name = &v
					}
					if c.IsSet("interval") {
						v := c.String("interval")
						input.ReminderInterval = &v
					}
					if c.IsSet("photo") {
						v := c.String("photo")
						input.PhotoURL = &v
					}
					if c.IsSet("tags") {
						tags := parseTags(c.String("tags"))
						input.Tags = &tags
					}
					output, err := svc.UpdateRelationship(c.Context, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a relationship and everything attached to it",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := idArg(c, "id")
					if err != nil {
						return outputError(err)
					}
					output, err := svc.DeleteRelationship(c.Context, ops.DeleteRelationshipInput{ID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "set-categories",
				Usage:     "Replace a relationship's categories (user confirmed)",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "categories", Aliases: []string{"c"}, Required: true, Usage: "Comma-separated categories; the first is the trunk"},
				},
				Action: func(c *cli.Context) error {
					id, err := idArg(c, "id")
					if err != nil {
						return outputError(err)
					}
					output, err := svc.SetCategories(c.Context, ops.SetCategoriesInput{
						ID:         id,
						Categories: parseTags(c.String("categories")),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
		},
	}
}

func interactionCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:  "interaction",
		Usage: "Log and manage interactions",
		Subcommands: []*cli.Command{
			{
				Name:      "log",
				Usage:     "Log an interaction (text from --text or stdin) and award XP",
				ArgsUsage: "<relationship-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "text", Aliases: []string{"t"}, Usage: "Interaction text (otherwise read from stdin)"},
					&cli.StringFlag{Name: "tone", Usage: "Optional tone tag"},
				},
				Action: func(c *cli.Context) error {
					relID, err := idArg(c, "relationship id")
					if err != nil {
						return outputError(err)
					}
					text := c.String("text")
					if text == "" && stdinHasData() {
						if text, err = readStdin(); err != nil {
							return outputError(errors.NewInternal(err))
						}
					}
					input := ops.LogInteractionInput{RelationshipID: relID, Log: text}
					if tone := c.String("tone"); tone != "" {
						input.ToneTag = &tone
					}
					output, err := svc.LogInteraction(c.Context, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "list",
				Usage:     "List a relationship's interactions, newest first",
				ArgsUsage: "<relationship-id>",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max results"},
				},
				Action: func(c *cli.Context) error {
					relID, err := idArg(c, "relationship id")
					if err != nil {
						return outputError(err)
					}
					output, err := svc.ListInteractions(c.Context, ops.ListInteractionsInput{
						RelationshipID: relID,
						Limit:          c.Int("limit"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete an interaction (awarded XP is kept)",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := idArg(c, "id")
					if err != nil {
						return outputError(err)
					}
					output, err := svc.DeleteInteraction(c.Context, ops.DeleteInteractionInput{ID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "milestone",
				Usage:     "Mark or unmark an interaction as a milestone",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "unset", Usage: "Clear the milestone flag"},
				},
				Action: func(c *cli.Context) error {
					id, err := idArg(c, "id")
					if err != nil {
						return outputError(err)
					}
					output, err := svc.SetMilestone(c.Context, ops.SetMilestoneInput{
						ID:          id,
						IsMilestone: !c.Bool("unset"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
		},
	}
}

func questCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:  "quest",
		Usage: "Create, generate and complete quests",
		Subcommands: []*cli.Command{
			{
				Name:      "create",
				Usage:     "Create a quest with a custom description",
				ArgsUsage: "<relationship-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "description", Aliases: []string{"d"}, Required: true, Usage: "Quest description"},
					&cli.IntFlag{Name: "milestone-level", Usage: "Milestone level this quest celebrates"},
				},
				Action: func(c *cli.Context) error {
					relID, err := idArg(c, "relationship id")
					if err != nil {
						return outputError(err)
					}
					input := ops.CreateQuestInput{
						RelationshipID: relID,
						Description:    c.String("description"),
					}
					if c.IsSet("milestone-level") {
						level := c.Int("milestone-level")
						input.MilestoneLevel = &level
					}
					output, err := svc.CreateQuest(c.Context, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "generate",
				Usage:     "Generate a quest for a relationship",
				ArgsUsage: "<relationship-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Usage: "regular|milestone|recurring (default by level)"},
				},
				Action: func(c *cli.Context) error {
					relID, err := idArg(c, "relationship id")
					if err != nil {
						return outputError(err)
					}
					output, err := svc.GenerateQuest(c.Context, ops.GenerateQuestInput{
						RelationshipID: relID,
						Mode:           c.String("mode"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "complete",
				Usage:     "Complete a quest and award its XP",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := idArg(c, "id")
					if err != nil {
						return outputError(err)
					}
					output, err := svc.CompleteQuest(c.Context, ops.CompleteQuestInput{ID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a quest (awarded XP is kept)",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := idArg(c, "id")
					if err != nil {
						return outputError(err)
					}
					output, err := svc.DeleteQuest(c.Context, ops.DeleteQuestInput{ID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "list",
				Usage:     "List a relationship's quests",
				ArgsUsage: "<relationship-id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "pending|completed"},
				},
				Action: func(c *cli.Context) error {
					relID, err := idArg(c, "relationship id")
					if err != nil {
						return outputError(err)
					}
					output, err := svc.ListQuests(c.Context, ops.ListQuestsInput{
						RelationshipID: relID,
						Status:         c.String("status"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
		},
	}
}

func treeCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:  "tree",
		Usage: "Show tree projections",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Project one relationship's tree",
				ArgsUsage: "<relationship-id>",
				Action: func(c *cli.Context) error {
					relID, err := idArg(c, "relationship id")
					if err != nil {
						return outputError(err)
					}
					output, err := svc.GetTree(c.Context, ops.GetTreeInput{RelationshipID: relID})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:  "global",
				Usage: "Aggregate every relationship into the global tree",
				Action: func(c *cli.Context) error {
					output, err := svc.GetGlobalTree(c.Context)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "evolution",
				Usage:     "Show category evolution eligibility and history",
				ArgsUsage: "<relationship-id>",
				Action: func(c *cli.Context) error {
					relID, err := idArg(c, "relationship id")
					if err != nil {
						return outputError(err)
					}
					output, err := svc.GetEvolution(c.Context, ops.GetEvolutionInput{RelationshipID: relID})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
		},
	}
}

func insightsCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:  "insights",
		Usage: "Read or refresh relationship insights",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Read the stored insight snapshot",
				ArgsUsage: "<relationship-id>",
				Action: func(c *cli.Context) error {
					relID, err := idArg(c, "relationship id")
					if err != nil {
						return outputError(err)
					}
					output, err := svc.GetInsights(c.Context, ops.GetInsightsInput{RelationshipID: relID})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
			{
				Name:      "refresh",
				Usage:     "Regenerate the insight snapshot now",
				ArgsUsage: "<relationship-id>",
				Action: func(c *cli.Context) error {
					relID, err := idArg(c, "relationship id")
					if err != nil {
						return outputError(err)
					}
					output, err := svc.RefreshInsights(c.Context, ops.RefreshInsightsInput{RelationshipID: relID})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(c.App.Writer, output)
				},
			},
		},
	}
}

func categoriesCmd(svc *ops.Service) *cli.Command {
	return &cli.Command{
		Name:  "categories",
		Usage: "List known categories and their colors",
		Action: func(c *cli.Context) error {
			output, err := svc.ListCategories(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// Helper functions

// outputJSON writes v to w as indented JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	if gErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", gErr.Code, gErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin.
func readStdin() (string, error) {
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

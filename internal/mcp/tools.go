package mcp

import "github.com/mark3labs/mcp-go/mcp"

var stringItems = mcp.Items(map[string]any{"type": "string"})

var relationshipCreateToolDef = mcp.NewTool(
	"relationship_create",
	mcp.WithDescription("Start tracking a relationship at level 1 with 0 XP. "+
		"The first category becomes the tree's trunk; later ones are branches."),
	mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
	mcp.WithArray("categories", mcp.Required(), stringItems,
		mcp.Description("1 to 3 categories, e.g. Friend, Mentor, Business")),
	mcp.WithString("reminder_interval",
		mcp.Description("How often to stay in touch"),
		mcp.Enum("daily", "weekly", "biweekly", "monthly", "other")),
	mcp.WithString("photo_url", mcp.Description("Optional photo URL")),
	mcp.WithArray("tags", stringItems, mcp.Description("Free-form tags")),
)

var relationshipGetToolDef = mcp.NewTool(
	"relationship_get",
	mcp.WithDescription("Get a relationship with its level progress."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Relationship ID")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var relationshipListToolDef = mcp.NewTool(
	"relationship_list",
	mcp.WithDescription("List relationships, newest first."),
	mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Items to skip")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var relationshipUpdateToolDef = mcp.NewTool(
	"relationship_update",
	mcp.WithDescription("Edit a relationship's profile. Level and XP are earned, not edited."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Relationship ID")),
	mcp.WithString("name", mcp.Description("New display name")),
	mcp.WithString("reminder_interval",
		mcp.Description("New reminder interval; empty clears it"),
		mcp.Enum("", "daily", "weekly", "biweekly", "monthly", "other")),
	mcp.WithString("photo_url", mcp.Description("New photo URL; empty clears it")),
	mcp.WithArray("tags", stringItems, mcp.Description("Replacement tags")),
)

var relationshipDeleteToolDef = mcp.NewTool(
	"relationship_delete",
	mcp.WithDescription("Delete a relationship and all of its interactions, quests and history."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Relationship ID")),
	mcp.WithDestructiveHintAnnotation(true),
)

var relationshipSetCategoriesToolDef = mcp.NewTool(
	"relationship_set_categories",
	mcp.WithDescription("Replace a relationship's categories (1 to 3). "+
		"Use this to accept an evolution suggestion. Categories that stay keep their history."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Relationship ID")),
	mcp.WithArray("categories", mcp.Required(), stringItems, mcp.Description("The full new category list")),
)

var interactionLogToolDef = mcp.NewTool(
	"interaction_log",
	mcp.WithDescription("Log an interaction. It is classified for XP (1 to 3), may level the "+
		"relationship up, may create a milestone quest and may suggest a new category."),
	mcp.WithString("relationship_id", mcp.Required(), mcp.Description("Relationship ID")),
	mcp.WithString("interaction_log", mcp.Required(), mcp.Description("What happened, in your own words")),
	mcp.WithString("tone_tag", mcp.Description("Optional tone label")),
)

var interactionListToolDef = mcp.NewTool(
	"interaction_list",
	mcp.WithDescription("List a relationship's interactions, newest first."),
	mcp.WithString("relationship_id", mcp.Required(), mcp.Description("Relationship ID")),
	mcp.WithNumber("limit", mcp.Description("Max items (default 20, max 100)")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var interactionDeleteToolDef = mcp.NewTool(
	"interaction_delete",
	mcp.WithDescription("Delete an interaction. XP already awarded is kept."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Interaction ID")),
	mcp.WithDestructiveHintAnnotation(true),
)

var interactionSetMilestoneToolDef = mcp.NewTool(
	"interaction_set_milestone",
	mcp.WithDescription("Flag or unflag an interaction as a personal milestone."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Interaction ID")),
	mcp.WithBoolean("is_milestone", mcp.Required(), mcp.Description("Milestone flag")),
)

var questCreateToolDef = mcp.NewTool(
	"quest_create",
	mcp.WithDescription("Add a hand-written quest."),
	mcp.WithString("relationship_id", mcp.Required(), mcp.Description("Relationship ID")),
	mcp.WithString("quest_description", mcp.Required(), mcp.Description("What to do")),
	mcp.WithNumber("milestone_level", mcp.Description("Milestone level (3, 5, 7 or 10) for a milestone quest")),
)

var questGenerateToolDef = mcp.NewTool(
	"quest_generate",
	mcp.WithDescription("Generate a quest for the relationship's current level. "+
		"Mode defaults to milestone on milestone levels and regular otherwise."),
	mcp.WithString("relationship_id", mcp.Required(), mcp.Description("Relationship ID")),
	mcp.WithString("mode", mcp.Description("Quest mode"), mcp.Enum("regular", "milestone", "recurring")),
)

var questCompleteToolDef = mcp.NewTool(
	"quest_complete",
	mcp.WithDescription("Complete a pending quest and award its XP (3 for milestone quests, 2 otherwise)."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Quest ID")),
)

var questDeleteToolDef = mcp.NewTool(
	"quest_delete",
	mcp.WithDescription("Delete a quest. XP from a completed quest is kept."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Quest ID")),
	mcp.WithDestructiveHintAnnotation(true),
)

var questListToolDef = mcp.NewTool(
	"quest_list",
	mcp.WithDescription("List a relationship's quests, newest first."),
	mcp.WithString("relationship_id", mcp.Required(), mcp.Description("Relationship ID")),
	mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum("pending", "completed")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var treeGetToolDef = mcp.NewTool(
	"tree_get",
	mcp.WithDescription("Get a relationship's tree: trunk and branches from categories, leaves from "+
		"recent interactions, blossoms from completed quests, fireflies from category candidates "+
		"and rings from levels."),
	mcp.WithString("relationship_id", mcp.Required(), mcp.Description("Relationship ID")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var treeGlobalToolDef = mcp.NewTool(
	"tree_global",
	mcp.WithDescription("Get the rollup across all relationships: branches per category, "+
		"fading relationships, root strength and identity tags."),
	mcp.WithReadOnlyHintAnnotation(true),
)

var treeEvolutionToolDef = mcp.NewTool(
	"tree_evolution",
	mcp.WithDescription("List category suggestions from recent interactions and whether the "+
		"relationship can take on another category (level 4+, fewer than 3 categories)."),
	mcp.WithString("relationship_id", mcp.Required(), mcp.Description("Relationship ID")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var insightsGetToolDef = mcp.NewTool(
	"insights_get",
	mcp.WithDescription("Get the stored insights snapshot. Status is ok, stale (older than the "+
		"configured max age) or not_found."),
	mcp.WithString("relationship_id", mcp.Required(), mcp.Description("Relationship ID")),
	mcp.WithReadOnlyHintAnnotation(true),
)

var insightsRefreshToolDef = mcp.NewTool(
	"insights_refresh",
	mcp.WithDescription("Rebuild and store the insights snapshot now."),
	mcp.WithString("relationship_id", mcp.Required(), mcp.Description("Relationship ID")),
)

var categoryListToolDef = mcp.NewTool(
	"category_list",
	mcp.WithDescription("List the category vocabulary."),
	mcp.WithReadOnlyHintAnnotation(true),
)

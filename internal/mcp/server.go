package mcp

import (
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hpungsan/grove/internal/config"
	"github.com/hpungsan/grove/internal/ops"
)

// KnownTypes lists all valid type names.
var KnownTypes = []string{"relationship", "interaction", "quest", "tree", "insights", "category"}

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"relationship_create": {
		def:     relationshipCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRelationshipCreate },
	},
	"relationship_get": {
		def:     relationshipGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRelationshipGet },
	},
	"relationship_list": {
		def:     relationshipListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRelationshipList },
	},
	"relationship_update": {
		def:     relationshipUpdateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRelationshipUpdate },
	},
	"relationship_delete": {
		def:     relationshipDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRelationshipDelete },
	},
	"relationship_set_categories": {
		def:     relationshipSetCategoriesToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleRelationshipSetCategories },
	},
	"interaction_log": {
		def:     interactionLogToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInteractionLog },
	},
	"interaction_list": {
		def:     interactionListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInteractionList },
	},
	"interaction_delete": {
		def:     interactionDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInteractionDelete },
	},
	"interaction_set_milestone": {
		def:     interactionSetMilestoneToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInteractionSetMilestone },
	},
	"quest_create": {
		def:     questCreateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQuestCreate },
	},
	"quest_generate": {
		def:     questGenerateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQuestGenerate },
	},
	"quest_complete": {
		def:     questCompleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQuestComplete },
	},
	"quest_delete": {
		def:     questDeleteToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQuestDelete },
	},
	"quest_list": {
		def:     questListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleQuestList },
	},
	"tree_get": {
		def:     treeGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTreeGet },
	},
	"tree_global": {
		def:     treeGlobalToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTreeGlobal },
	},
	"tree_evolution": {
		def:     treeEvolutionToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleTreeEvolution },
	},
	"insights_get": {
		def:     insightsGetToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInsightsGet },
	},
	"insights_refresh": {
		def:     insightsRefreshToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleInsightsRefresh },
	},
	"category_list": {
		def:     categoryListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleCategoryList },
	},
}

// AllToolNames returns every tool name, sorted.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateDisabledTools returns the names that are not registered tools.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// ValidateDisabledTypes returns the names that are not known types.
func ValidateDisabledTypes(names []string) []string {
	known := make(map[string]bool, len(KnownTypes))
	for _, t := range KnownTypes {
		known[t] = true
	}

	unknown := make([]string, 0)
	for _, name := range names {
		if !known[name] {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// GetTypeForTool returns the type prefix of a "type_action" tool name.
func GetTypeForTool(toolName string) string {
	if idx := strings.Index(toolName, "_"); idx > 0 {
		return toolName[:idx]
	}
	return ""
}

// ExpandTypesToTools returns all tool names belonging to the given types.
func ExpandTypesToTools(types []string) []string {
	if len(types) == 0 {
		return nil
	}

	typeSet := make(map[string]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	tools := make([]string, 0)
	for name := range toolRegistry {
		if typeSet[GetTypeForTool(name)] {
			tools = append(tools, name)
		}
	}
	sort.Strings(tools)
	return tools
}

// disabledTools resolves cfg's disabled types and tools into one set.
func disabledTools(cfg *config.Config) map[string]bool {
	disabled := make(map[string]bool)
	for _, tool := range ExpandTypesToTools(cfg.DisabledTypes) {
		disabled[tool] = true
	}
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}
	return disabled
}

// NewServer creates an MCP server exposing svc. Tools listed in
// cfg.DisabledTools or belonging to cfg.DisabledTypes are not registered.
func NewServer(svc *ops.Service, cfg *config.Config, logger *zap.Logger, version string) *server.MCPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("mcp")

	if unknown := ValidateDisabledTools(cfg.DisabledTools); len(unknown) > 0 {
		logger.Warn("ignoring unknown disabled tools", zap.Strings("tools", unknown))
	}
	if unknown := ValidateDisabledTypes(cfg.DisabledTypes); len(unknown) > 0 {
		logger.Warn("ignoring unknown disabled types", zap.Strings("types", unknown))
	}

	s := server.NewMCPServer(
		"grove",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(svc, logger)
	disabled := disabledTools(cfg)
	registered := 0
	for _, name := range AllToolNames() {
		if disabled[name] {
			continue
		}
		entry := toolRegistry[name]
		s.AddTool(entry.def, entry.handler(h))
		registered++
	}
	logger.Debug("registered tools", zap.Int("count", registered))

	return s
}

// Run serves svc over stdio until the client disconnects.
func Run(svc *ops.Service, cfg *config.Config, logger *zap.Logger, version string) error {
	return server.ServeStdio(NewServer(svc, cfg, logger, version))
}

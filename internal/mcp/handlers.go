package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	svc    *ops.Service
	logger *zap.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(svc *ops.Service, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{svc: svc, logger: logger}
}

// Request types for each tool

// RelationshipCreateRequest represents the arguments for relationship_create.
type RelationshipCreateRequest struct {
	Name             string   `json:"name"`
	Categories       []string `json:"categories"`
	ReminderInterval string   `json:"reminder_interval,omitempty"`
	PhotoURL         *string  `json:"photo_url,omitempty"`
	Tags             []string `json:"tags,omitempty"`
}

// IDRequest represents tools addressed by a record id.
type IDRequest struct {
	ID string `json:"id"`
}

// RelationshipRequest represents tools addressed by a relationship id.
type RelationshipRequest struct {
	RelationshipID string `json:"relationship_id"`
}

// RelationshipListRequest represents the arguments for relationship_list.
type RelationshipListRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// RelationshipUpdateRequest represents the arguments for relationship_update.
type RelationshipUpdateRequest struct {
	ID               string    `json:"id"`
	Name             *string   `json:"name,omitempty"`
	ReminderInterval *string   `json:"reminder_interval,omitempty"`
	PhotoURL         *string   `json:"photo_url,omitempty"`
	Tags             *[]string `json:"tags,omitempty"`
}

// SetCategoriesRequest represents the arguments for relationship_set_categories.
type SetCategoriesRequest struct {
	ID         string   `json:"id"`
	Categories []string `json:"categories"`
}

// InteractionLogRequest represents the arguments for interaction_log.
type InteractionLogRequest struct {
	RelationshipID string  `json:"relationship_id"`
	Log            string  `json:"interaction_log"`
	ToneTag        *string `json:"tone_tag,omitempty"`
}

// InteractionListRequest represents the arguments for interaction_list.
type InteractionListRequest struct {
	RelationshipID string `json:"relationship_id"`
	Limit          int    `json:"limit,omitempty"`
}

// SetMilestoneRequest represents the arguments for interaction_set_milestone.
type SetMilestoneRequest struct {
	ID          string `json:"id"`
	IsMilestone bool   `json:"is_milestone"`
}

// QuestCreateRequest represents the arguments for quest_create.
type QuestCreateRequest struct {
	RelationshipID string `json:"relationship_id"`
	Description    string `json:"quest_description"`
	MilestoneLevel *int   `json:"milestone_level,omitempty"`
}

// QuestGenerateRequest represents the arguments for quest_generate.
type QuestGenerateRequest struct {
	RelationshipID string `json:"relationship_id"`
	Mode           string `json:"mode,omitempty"`
}

// QuestListRequest represents the arguments for quest_list.
type QuestListRequest struct {
	RelationshipID string `json:"relationship_id"`
	Status         string `json:"status,omitempty"`
}

// EmptyRequest represents tools without arguments.
type EmptyRequest struct{}

// decode unmarshals MCP request arguments into a typed struct.
// Unknown arguments are rejected so typos do not silently fall back to defaults.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	args := req.GetArguments()
	if args == nil {
		args = map[string]any{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return result, fmt.Errorf("marshal args: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result); err != nil {
		return result, fmt.Errorf("invalid arguments: %w", err)
	}
	return result, nil
}

// call decodes the request, runs fn and renders its result.
func call[T, R any](h *Handlers, ctx context.Context, req mcp.CallToolRequest, fn func(context.Context, T) (R, error)) (*mcp.CallToolResult, error) {
	input, err := decode[T](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	result, err := fn(ctx, input)
	if err != nil {
		h.logError(req, err)
		return errorResult(err), nil
	}
	return successResult(result)
}

func (h *Handlers) logError(req mcp.CallToolRequest, err error) {
	if gErr, ok := errors.As(err); ok && gErr.Status < 500 {
		h.logger.Debug("tool call rejected", zap.String("tool", req.Params.Name), zap.Error(err))
		return
	}
	h.logger.Error("tool call failed", zap.String("tool", req.Params.Name), zap.Error(err))
}

// Handler implementations

// HandleRelationshipCreate handles the relationship_create tool call.
func (h *Handlers) HandleRelationshipCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in RelationshipCreateRequest) (*ops.RelationshipView, error) {
		return h.svc.CreateRelationship(ctx, ops.CreateRelationshipInput{
			Name:             in.Name,
			Categories:       in.Categories,
			ReminderInterval: in.ReminderInterval,
			PhotoURL:         in.PhotoURL,
			Tags:             in.Tags,
		})
	})
}

// HandleRelationshipGet handles the relationship_get tool call.
func (h *Handlers) HandleRelationshipGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in IDRequest) (*ops.RelationshipView, error) {
		return h.svc.GetRelationship(ctx, ops.GetRelationshipInput{ID: in.ID})
	})
}

// HandleRelationshipList handles the relationship_list tool call.
func (h *Handlers) HandleRelationshipList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in RelationshipListRequest) (*ops.ListRelationshipsOutput, error) {
		return h.svc.ListRelationships(ctx, ops.ListRelationshipsInput{Limit: in.Limit, Offset: in.Offset})
	})
}

// HandleRelationshipUpdate handles the relationship_update tool call.
func (h *Handlers) HandleRelationshipUpdate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in RelationshipUpdateRequest) (*ops.RelationshipView, error) {
		return h.svc.UpdateRelationship(ctx, ops.UpdateRelationshipInput{
			ID:               in.ID,
			Name:             in.Name,
			ReminderInterval: in.ReminderInterval,
			PhotoURL:         in.PhotoURL,
			Tags:             in.Tags,
		})
	})
}

// HandleRelationshipDelete handles the relationship_delete tool call.
func (h *Handlers) HandleRelationshipDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in IDRequest) (*ops.DeleteOutput, error) {
		return h.svc.DeleteRelationship(ctx, ops.DeleteRelationshipInput{ID: in.ID})
	})
}

// HandleRelationshipSetCategories handles the relationship_set_categories tool call.
func (h *Handlers) HandleRelationshipSetCategories(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in SetCategoriesRequest) (*ops.RelationshipView, error) {
		return h.svc.SetCategories(ctx, ops.SetCategoriesInput{ID: in.ID, Categories: in.Categories})
	})
}

// HandleInteractionLog handles the interaction_log tool call.
func (h *Handlers) HandleInteractionLog(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in InteractionLogRequest) (*ops.LogInteractionOutput, error) {
		return h.svc.LogInteraction(ctx, ops.LogInteractionInput{
			RelationshipID: in.RelationshipID,
			Log:            in.Log,
			ToneTag:        in.ToneTag,
		})
	})
}

// HandleInteractionList handles the interaction_list tool call.
func (h *Handlers) HandleInteractionList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in InteractionListRequest) (*ops.ListInteractionsOutput, error) {
		return h.svc.ListInteractions(ctx, ops.ListInteractionsInput{RelationshipID: in.RelationshipID, Limit: in.Limit})
	})
}

// HandleInteractionDelete handles the interaction_delete tool call.
func (h *Handlers) HandleInteractionDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in IDRequest) (*ops.DeleteOutput, error) {
		return h.svc.DeleteInteraction(ctx, ops.DeleteInteractionInput{ID: in.ID})
	})
}

// HandleInteractionSetMilestone handles the interaction_set_milestone tool call.
func (h *Handlers) HandleInteractionSetMilestone(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in SetMilestoneRequest) (any, error) {
		return h.svc.SetMilestone(ctx, ops.SetMilestoneInput{ID: in.ID, IsMilestone: in.IsMilestone})
	})
}

// HandleQuestCreate handles the quest_create tool call.
func (h *Handlers) HandleQuestCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in QuestCreateRequest) (any, error) {
		return h.svc.CreateQuest(ctx, ops.CreateQuestInput{
			RelationshipID: in.RelationshipID,
			Description:    in.Description,
			MilestoneLevel: in.MilestoneLevel,
		})
	})
}

// HandleQuestGenerate handles the quest_generate tool call.
func (h *Handlers) HandleQuestGenerate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in QuestGenerateRequest) (*ops.GenerateQuestOutput, error) {
		return h.svc.GenerateQuest(ctx, ops.GenerateQuestInput{RelationshipID: in.RelationshipID, Mode: in.Mode})
	})
}

// HandleQuestComplete handles the quest_complete tool call.
func (h *Handlers) HandleQuestComplete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in IDRequest) (*ops.CompleteQuestOutput, error) {
		return h.svc.CompleteQuest(ctx, ops.CompleteQuestInput{ID: in.ID})
	})
}

// HandleQuestDelete handles the quest_delete tool call.
func (h *Handlers) HandleQuestDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in IDRequest) (*ops.DeleteOutput, error) {
		return h.svc.DeleteQuest(ctx, ops.DeleteQuestInput{ID: in.ID})
	})
}

// HandleQuestList handles the quest_list tool call.
func (h *Handlers) HandleQuestList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in QuestListRequest) (*ops.ListQuestsOutput, error) {
		return h.svc.ListQuests(ctx, ops.ListQuestsInput{RelationshipID: in.RelationshipID, Status: in.Status})
	})
}

// HandleTreeGet handles the tree_get tool call.
func (h *Handlers) HandleTreeGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in RelationshipRequest) (any, error) {
		return h.svc.GetTree(ctx, ops.GetTreeInput{RelationshipID: in.RelationshipID})
	})
}

// HandleTreeGlobal handles the tree_global tool call.
func (h *Handlers) HandleTreeGlobal(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, _ EmptyRequest) (any, error) {
		return h.svc.GetGlobalTree(ctx)
	})
}

// HandleTreeEvolution handles the tree_evolution tool call.
func (h *Handlers) HandleTreeEvolution(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in RelationshipRequest) (any, error) {
		return h.svc.GetEvolution(ctx, ops.GetEvolutionInput{RelationshipID: in.RelationshipID})
	})
}

// HandleInsightsGet handles the insights_get tool call.
func (h *Handlers) HandleInsightsGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in RelationshipRequest) (any, error) {
		return h.svc.GetInsights(ctx, ops.GetInsightsInput{RelationshipID: in.RelationshipID})
	})
}

// HandleInsightsRefresh handles the insights_refresh tool call.
func (h *Handlers) HandleInsightsRefresh(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, in RelationshipRequest) (any, error) {
		return h.svc.RefreshInsights(ctx, ops.RefreshInsightsInput{RelationshipID: in.RelationshipID})
	})
}

// HandleCategoryList handles the category_list tool call.
func (h *Handlers) HandleCategoryList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return call(h, ctx, req, func(ctx context.Context, _ EmptyRequest) (*ops.ListCategoriesOutput, error) {
		return h.svc.ListCategories(ctx)
	})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if gErr, ok := errors.As(err); ok {
		errorObj := map[string]any{
			"code":    gErr.Code,
			"message": gErr.Message,
			"status":  gErr.Status,
		}
		if gErr.Code != errors.ErrInternal && gErr.Details != nil {
			errorObj["details"] = gErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

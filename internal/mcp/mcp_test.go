package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/grove/internal/config"
	"github.com/hpungsan/grove/internal/db"
	"github.com/hpungsan/grove/internal/errors"
	"github.com/hpungsan/grove/internal/ops"
)

// testSetup creates a service over a temporary database.
func testSetup(t *testing.T) (*Handlers, *ops.Service, *config.Config) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	cfg := config.DefaultConfig()
	svc := ops.New(ops.Deps{Store: database, Config: cfg})
	t.Cleanup(func() {
		svc.Close()
		database.Close()
	})

	return NewHandlers(svc, nil), svc, cfg
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

func createRelationship(t *testing.T, h *Handlers, name string, categories ...string) string {
	t.Helper()
	cats := make([]any, len(categories))
	for i, c := range categories {
		cats[i] = c
	}
	result, err := h.HandleRelationshipCreate(context.Background(), makeRequest(map[string]any{
		"name":       name,
		"categories": cats,
	}))
	if err != nil {
		t.Fatalf("HandleRelationshipCreate error: %v", err)
	}
	return parseOutput(t, result)["id"].(string)
}

func TestHandleRelationshipCreate(t *testing.T) {
	h, _, _ := testSetup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError string
	}{
		{
			name: "valid",
			args: map[string]any{"name": "Ada", "categories": []any{"Friend"}, "reminder_interval": "weekly"},
		},
		{
			name:      "missing name",
			args:      map[string]any{"categories": []any{"Friend"}},
			wantError: string(errors.ErrInvalidRequest),
		},
		{
			name:      "too many categories",
			args:      map[string]any{"name": "Ada", "categories": []any{"A", "B", "C", "D"}},
			wantError: string(errors.ErrInvalidRequest),
		},
		{
			name:      "unknown argument",
			args:      map[string]any{"name": "Ada", "categories": []any{"Friend"}, "level": 9},
			wantError: string(errors.ErrInvalidRequest),
		},
		{
			name:      "wrong type",
			args:      map[string]any{"name": "Ada", "categories": "Friend"},
			wantError: string(errors.ErrInvalidRequest),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleRelationshipCreate(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantError != "" {
				if !result.IsError {
					t.Fatalf("expected error result")
				}
				assertErrorCode(t, result, tt.wantError)
				return
			}

			output := parseOutput(t, result)
			if output["level"] != float64(1) || output["xp"] != float64(0) {
				t.Errorf("level/xp = %v/%v, want 1/0", output["level"], output["xp"])
			}
			progress := output["progress"].(map[string]any)
			if progress["needed"] != float64(5) {
				t.Errorf("progress.needed = %v, want 5", progress["needed"])
			}
		})
	}
}

func TestHandleInteractionLog_Flow(t *testing.T) {
	h, _, _ := testSetup(t)
	ctx := context.Background()
	id := createRelationship(t, h, "Ada", "Friend")

	// Without a classifier every interaction is worth 1 XP.
	var last map[string]any
	for i := 0; i < 5; i++ {
		result, err := h.HandleInteractionLog(ctx, makeRequest(map[string]any{
			"relationship_id": id,
			"interaction_log": fmt.Sprintf("walk %d", i),
		}))
		if err != nil {
			t.Fatalf("HandleInteractionLog error: %v", err)
		}
		last = parseOutput(t, result)
	}

	prog := last["progression"].(map[string]any)
	if prog["leveled_up"] != true || prog["new_level"] != float64(2) {
		t.Errorf("progression = %v, want level-up to 2", prog)
	}
	interaction := last["interaction"].(map[string]any)
	if interaction["classifier_fallback"] != true {
		t.Errorf("classifier_fallback = %v, want true", interaction["classifier_fallback"])
	}

	result, err := h.HandleInteractionList(ctx, makeRequest(map[string]any{"relationship_id": id, "limit": 3}))
	if err != nil {
		t.Fatalf("HandleInteractionList error: %v", err)
	}
	items := parseOutput(t, result)["items"].([]any)
	if len(items) != 3 {
		t.Errorf("items = %d, want 3", len(items))
	}

	result, err = h.HandleTreeGet(ctx, makeRequest(map[string]any{"relationship_id": id}))
	if err != nil {
		t.Fatalf("HandleTreeGet error: %v", err)
	}
	tree := parseOutput(t, result)
	if tree["trunk"] != "Friend" {
		t.Errorf("trunk = %v, want Friend", tree["trunk"])
	}
	if leaves := tree["leaves"].([]any); len(leaves) != 5 {
		t.Errorf("leaves = %d, want 5", len(leaves))
	}
}

func TestHandleQuestLifecycle(t *testing.T) {
	h, _, _ := testSetup(t)
	ctx := context.Background()
	id := createRelationship(t, h, "Ada", "Friend")

	result, err := h.HandleQuestGenerate(ctx, makeRequest(map[string]any{"relationship_id": id, "mode": "recurring"}))
	if err != nil {
		t.Fatalf("HandleQuestGenerate error: %v", err)
	}
	generated := parseOutput(t, result)
	questID := generated["quest"].(map[string]any)["id"].(string)

	result, err = h.HandleQuestComplete(ctx, makeRequest(map[string]any{"id": questID}))
	if err != nil {
		t.Fatalf("HandleQuestComplete error: %v", err)
	}
	completed := parseOutput(t, result)
	if completed["quest"].(map[string]any)["quest_status"] != "completed" {
		t.Errorf("quest_status = %v, want completed", completed["quest"])
	}
	if completed["relationship"].(map[string]any)["xp"] != float64(2) {
		t.Errorf("xp = %v, want 2", completed["relationship"])
	}

	result, err = h.HandleQuestComplete(ctx, makeRequest(map[string]any{"id": questID}))
	if err != nil {
		t.Fatalf("HandleQuestComplete error: %v", err)
	}
	assertErrorCode(t, result, string(errors.ErrConflict))

	result, err = h.HandleQuestList(ctx, makeRequest(map[string]any{"relationship_id": id, "status": "completed"}))
	if err != nil {
		t.Fatalf("HandleQuestList error: %v", err)
	}
	if items := parseOutput(t, result)["items"].([]any); len(items) != 1 {
		t.Errorf("completed quests = %d, want 1", len(items))
	}

	result, err = h.HandleQuestDelete(ctx, makeRequest(map[string]any{"id": questID}))
	if err != nil {
		t.Fatalf("HandleQuestDelete error: %v", err)
	}
	if parseOutput(t, result)["deleted"] != true {
		t.Errorf("quest_delete result = %v, want deleted", parseOutput(t, result))
	}

	result, err = h.HandleQuestDelete(ctx, makeRequest(map[string]any{"id": questID}))
	if err != nil {
		t.Fatalf("HandleQuestDelete error: %v", err)
	}
	assertErrorCode(t, result, string(errors.ErrNotFound))
}

func TestHandleInsightsGet_NotFoundIsAResult(t *testing.T) {
	h, _, _ := testSetup(t)
	ctx := context.Background()
	id := createRelationship(t, h, "Ada", "Friend")

	result, err := h.HandleInsightsGet(ctx, makeRequest(map[string]any{"relationship_id": id}))
	if err != nil {
		t.Fatalf("HandleInsightsGet error: %v", err)
	}
	if status := parseOutput(t, result)["status"]; status != "not_found" {
		t.Errorf("status = %v, want not_found", status)
	}

	result, err = h.HandleInsightsGet(ctx, makeRequest(map[string]any{"relationship_id": "missing"}))
	if err != nil {
		t.Fatalf("HandleInsightsGet error: %v", err)
	}
	assertErrorCode(t, result, string(errors.ErrNotFound))
}

func TestHandleTreeGlobalAndCategories(t *testing.T) {
	h, _, _ := testSetup(t)
	ctx := context.Background()
	createRelationship(t, h, "Ada", "Friend")
	createRelationship(t, h, "Bo", "Business")

	result, err := h.HandleTreeGlobal(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("HandleTreeGlobal error: %v", err)
	}
	if branches := parseOutput(t, result)["branches"].([]any); len(branches) != 2 {
		t.Errorf("branches = %d, want 2", len(branches))
	}

	result, err = h.HandleCategoryList(ctx, makeRequest(nil))
	if err != nil {
		t.Fatalf("HandleCategoryList error: %v", err)
	}
	if items := parseOutput(t, result)["items"].([]any); len(items) < 9 {
		t.Errorf("categories = %d, want at least 9", len(items))
	}
}

func TestServerRegistration(t *testing.T) {
	_, svc, cfg := testSetup(t)

	s := NewServer(svc, cfg, nil, "test")
	tools := s.ListTools()
	if tools == nil {
		t.Fatal("expected tools to be registered, got nil")
	}

	if len(tools) != len(toolRegistry) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry))
	}
	for _, name := range []string{"relationship_create", "interaction_log", "quest_complete", "tree_global", "insights_get", "category_list"} {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_WithDisabledTools(t *testing.T) {
	_, svc, cfg := testSetup(t)

	cfg.DisabledTools = []string{"relationship_delete", "interaction_delete", "interaction_delete", "not_a_tool"}
	tools := NewServer(svc, cfg, nil, "test").ListTools()

	if len(tools) != len(toolRegistry)-2 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-2)
	}
	for _, name := range []string{"relationship_delete", "interaction_delete"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
}

func TestServerRegistration_WithDisabledTypes(t *testing.T) {
	_, svc, cfg := testSetup(t)

	cfg.DisabledTypes = []string{"insights", "tree"}
	tools := NewServer(svc, cfg, nil, "test").ListTools()

	for name := range tools {
		if typ := GetTypeForTool(name); typ == "insights" || typ == "tree" {
			t.Errorf("tool %q of a disabled type should not be registered", name)
		}
	}
	if len(tools) != len(toolRegistry)-5 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-5)
	}
}

func TestValidateDisabled(t *testing.T) {
	if unknown := ValidateDisabledTools([]string{"quest_list", "fake_tool"}); len(unknown) != 1 || unknown[0] != "fake_tool" {
		t.Errorf("ValidateDisabledTools() = %v, want [fake_tool]", unknown)
	}
	if unknown := ValidateDisabledTypes([]string{"quest", "garden"}); len(unknown) != 1 || unknown[0] != "garden" {
		t.Errorf("ValidateDisabledTypes() = %v, want [garden]", unknown)
	}
}

func TestAllToolNames(t *testing.T) {
	names := AllToolNames()
	if len(names) != 21 {
		t.Errorf("AllToolNames() returned %d names, want 21", len(names))
	}

	known := make(map[string]bool)
	for _, typ := range KnownTypes {
		known[typ] = true
	}
	for _, name := range names {
		if !known[GetTypeForTool(name)] {
			t.Errorf("tool %q has unknown type %q", name, GetTypeForTool(name))
		}
	}
}

func TestExpandTypesToTools(t *testing.T) {
	got := ExpandTypesToTools([]string{"quest"})
	want := []string{"quest_complete", "quest_create", "quest_delete", "quest_generate", "quest_list"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("ExpandTypesToTools(quest) = %v, want %v", got, want)
	}
	if ExpandTypesToTools(nil) != nil {
		t.Error("ExpandTypesToTools(nil) should be nil")
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}
	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
}

func TestErrorResult_WrappedGroveError(t *testing.T) {
	r := errorResult(fmt.Errorf("commit: %w", errors.NewStaleVersion("r1", 3)))
	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrStaleVersion) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrStaleVersion)
	}
	if _, ok := errObj["details"]; !ok {
		t.Error("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_PlainErrorIsInternal(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != string(errors.ErrInternal) || errObj["message"] != "an internal error occurred" {
		t.Errorf("error = %v", errObj)
	}
}

// Helper functions

func errorObject(t *testing.T, r *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	if result.IsError {
		t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
	}
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()
	if !result.IsError {
		t.Errorf("expected error result, got %s", extractErrorMessage(result))
		return
	}
	code, _ := errorObject(t, result)["code"].(string)
	if code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}

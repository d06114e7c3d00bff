package api

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"settings-lite/internal/settings"

	"github.com/mark3labs/mcp-go/mcp"
)

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestMCPTool_SetAndGet(t *testing.T) {
	svc, m := newTestService(t)
	ctx := context.Background()

	result, err := mcpSetSetting(svc)(ctx, makeCallToolRequest("set_setting", map[string]interface{}{
		"key":   "audio.volume",
		"value": "80",
		"kind":  "int",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != "Set audio.volume = 80" {
		t.Errorf("set_setting reply = %q, want %q", got, "Set audio.volume = 80")
	}
	if m.Saves() != 1 {
		t.Errorf("saves = %d, want 1", m.Saves())
	}

	result, _ = mcpGetSetting(svc)(ctx, makeCallToolRequest("get_setting", map[string]interface{}{
		"key":  "audio.volume",
		"kind": "float",
	}))
	if result.IsError || toolText(t, result) != "80" {
		t.Errorf("get_setting as float = %q (error=%v), want 80", toolText(t, result), result.IsError)
	}

	result, _ = mcpGetSetting(svc)(ctx, makeCallToolRequest("get_setting", map[string]interface{}{
		"key": "audio.volume",
	}))
	var rec settings.Record
	if err := json.Unmarshal([]byte(toolText(t, result)), &rec); err != nil {
		t.Fatalf("raw get_setting is not a record: %v", err)
	}
	if rec.Kind != "int" || rec.Value != "80" {
		t.Errorf("record = %+v", rec)
	}
}

func TestMCPTool_GetObject(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	result, _ := mcpSetSetting(svc)(ctx, makeCallToolRequest("set_setting", map[string]interface{}{
		"key":   "profile",
		"value": `{"level":3,"xp":120}`,
		"kind":  "object",
	}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	result, _ = mcpGetSetting(svc)(ctx, makeCallToolRequest("get_setting", map[string]interface{}{
		"key":  "profile",
		"kind": "object",
	}))
	if result.IsError {
		t.Fatalf("get_setting as object failed: %s", toolText(t, result))
	}
	if got := toolText(t, result); got != `{"level":3,"xp":120}` {
		t.Errorf("get_setting as object = %q", got)
	}
}

func TestMCPTool_SetDefaultsToString(t *testing.T) {
	svc, _ := newTestService(t)
	result, _ := mcpSetSetting(svc)(context.Background(), makeCallToolRequest("set_setting", map[string]interface{}{
		"key":   "name",
		"value": "80",
	}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}
	if v, _ := svc.Store().Lookup("name"); v.Kind() != settings.KindString {
		t.Errorf("kind = %s, want string", v.Kind())
	}
}

func TestMCPTool_Errors(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Store().SetString("name", "Alice")
	ctx := context.Background()

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		args    map[string]interface{}
		want    string
	}{
		{"get missing key", mcpGetSetting(svc), map[string]interface{}{"key": "nope"}, "key not found"},
		{"get no key", mcpGetSetting(svc), map[string]interface{}{}, "key is required"},
		{"get type mismatch", mcpGetSetting(svc), map[string]interface{}{"key": "name", "kind": "int"}, "type mismatch"},
		{"get object of string", mcpGetSetting(svc), map[string]interface{}{"key": "name", "kind": "object"}, "not an object"},
		{"set bad kind", mcpSetSetting(svc), map[string]interface{}{"key": "x", "value": "1", "kind": "list"}, "unknown kind"},
		{"set bad value", mcpSetSetting(svc), map[string]interface{}{"key": "x", "value": "one", "kind": "int"}, "invalid int"},
		{"remove no key", mcpRemoveSetting(svc), map[string]interface{}{}, "key is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.handler(ctx, makeCallToolRequest("x", tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !result.IsError {
				t.Fatalf("expected tool error, got %q", toolText(t, result))
			}
			if got := toolText(t, result); !strings.Contains(got, tt.want) {
				t.Errorf("error = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestMCPTool_RemoveAndList(t *testing.T) {
	svc, _ := newTestService(t)
	svc.Store().SetInt("a", 1)
	svc.Store().SetInt("b", 2)
	ctx := context.Background()

	result, _ := mcpRemoveSetting(svc)(ctx, makeCallToolRequest("remove_setting", map[string]interface{}{"key": "a"}))
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", toolText(t, result))
	}

	result, _ = mcpListSettings(svc)(ctx, makeCallToolRequest("list_settings", nil))
	var doc settings.Document
	if err := json.Unmarshal([]byte(toolText(t, result)), &doc); err != nil {
		t.Fatalf("list_settings is not a document: %v", err)
	}
	if _, ok := doc.Settings["a"]; ok || len(doc.Settings) != 1 {
		t.Errorf("settings = %v, want only b", doc.Settings)
	}
}

func TestNewMCPServer(t *testing.T) {
	svc, _ := newTestService(t)
	if s := NewMCPServer(svc, "test"); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

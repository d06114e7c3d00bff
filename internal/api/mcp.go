package api

import (
	"context"
	"encoding/json"
	"fmt"

	"settings-lite/internal/settings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates an MCP server exposing the store as tools.
func NewMCPServer(svc *Service, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"settings-lite",
		version,
		server.WithToolCapabilities(true),
		server.WithInstructions("settings-lite: typed key/value settings. Every write is saved immediately."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("get_setting",
			mcp.WithDescription("Read one setting. Without kind, returns the stored record as JSON."),
			mcp.WithString("key", mcp.Description("Setting key, e.g. audio.volume"), mcp.Required()),
			mcp.WithString("kind", mcp.Description("Coerce to bool, int, float or string")),
		),
		mcpGetSetting(svc),
	)

	s.AddTool(
		mcp.NewTool("set_setting",
			mcp.WithDescription("Write one setting and save."),
			mcp.WithString("key", mcp.Description("Setting key"), mcp.Required()),
			mcp.WithString("value", mcp.Description("Value text; objects are given in the store codec"), mcp.Required()),
			mcp.WithString("kind", mcp.Description("bool, int, float, string (default) or object")),
		),
		mcpSetSetting(svc),
	)

	s.AddTool(
		mcp.NewTool("remove_setting",
			mcp.WithDescription("Remove one setting and save. Removing an absent key succeeds."),
			mcp.WithString("key", mcp.Description("Setting key"), mcp.Required()),
		),
		mcpRemoveSetting(svc),
	)

	s.AddTool(
		mcp.NewTool("list_settings",
			mcp.WithDescription("List every setting as a settings document."),
		),
		mcpListSettings(svc),
	)

	return s
}

func mcpGetSetting(svc *Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		store := svc.Store()

		kindName := req.GetString("kind", "")
		if kindName == "" {
			v, ok := store.Lookup(key)
			if !ok {
				return mcpError(fmt.Sprintf("%q: %v", key, settings.ErrMissingKey)), nil
			}
			return mcpJSON(v.Record())
		}

		kind, err := settings.ParseKind(kindName)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		text, err := store.GetText(key, kind)
		if err != nil {
			return mcpError(err.Error()), nil
		}
		return mcpText(text), nil
	}
}

func mcpSetSetting(svc *Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		text, err := req.RequireString("value")
		if err != nil {
			return mcpError("value is required"), nil
		}
		kind, err := settings.ParseKind(req.GetString("kind", "string"))
		if err != nil {
			return mcpError(err.Error()), nil
		}
		v, err := settings.ParseText(kind, text, svc.Store().Codec())
		if err != nil {
			return mcpError(err.Error()), nil
		}
		if err := svc.Set(ctx, key, v); err != nil {
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Set %s = %s", key, v.Text())), nil
	}
}

func mcpRemoveSetting(svc *Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		key, err := req.RequireString("key")
		if err != nil {
			return mcpError("key is required"), nil
		}
		if err := svc.Remove(ctx, key); err != nil {
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Removed %s", key)), nil
	}
}

func mcpListSettings(svc *Service) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return mcpJSON(settings.NewDocument(svc.Store().Entries()))
	}
}

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal: %v", err)), nil
	}
	return mcpText(string(data)), nil
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}

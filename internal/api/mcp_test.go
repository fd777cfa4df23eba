package api

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/uigen/internal/pipeline"
	"github.com/kalambet/uigen/internal/storage"
)

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	return MCPDeps{
		Generator: env.svc,
		Versions:  env.store,
		Version:   "test",
	}, env
}

func toolText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("no content in result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", result.Content[0])
	}
	return tc.Text
}

func makeCallToolRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func makeReadResourceRequest(uri string) mcp.ReadResourceRequest {
	return mcp.ReadResourceRequest{
		Params: mcp.ReadResourceParams{
			URI: uri,
		},
	}
}

// --- tests ---

func TestMCPTool_GenerateUI(t *testing.T) {
	deps, env := newTestMCPDeps(t)
	handler := mcpGenerateUI(deps)

	result, err := handler(context.Background(), makeCallToolRequest("generate_ui", map[string]any{
		"user_prompt":  "Create a button",
		"current_code": "<Container></Container>",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var got generateResponse
	if err := json.Unmarshal([]byte(toolText(t, result)), &got); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if got.Code != "<Container><Button>Go</Button></Container>" || got.VersionID == "" {
		t.Errorf("response = %+v", got)
	}

	if _, err := env.store.GetVersion(context.Background(), got.VersionID); err != nil {
		t.Errorf("GetVersion(%s): %v", got.VersionID, err)
	}
}

func TestMCPTool_GenerateUI_MissingPrompt(t *testing.T) {
	deps, env := newTestMCPDeps(t)

	result, err := mcpGenerateUI(deps)(context.Background(), makeCallToolRequest("generate_ui", map[string]any{}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if n := env.upstream.calls.Load(); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}
}

func TestMCPTool_GenerateUI_CancelledContext(t *testing.T) {
	deps, env := newTestMCPDeps(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result, err := mcpGenerateUI(deps)(ctx, makeCallToolRequest("generate_ui", map[string]any{
		"user_prompt": "Create a button",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	versions, err := env.store.RecentVersions(context.Background(), 10)
	if err != nil {
		t.Fatalf("RecentVersions: %v", err)
	}
	if len(versions) != 1 {
		t.Errorf("stored %d versions, want 1", len(versions))
	}
}

func TestMCPTool_GenerateUI_StageFailure(t *testing.T) {
	deps, env := newTestMCPDeps(t)
	env.upstream.failAt(pipeline.StageGeneration)

	result, err := mcpGenerateUI(deps)(context.Background(), makeCallToolRequest("generate_ui", map[string]any{
		"user_prompt": "Create a button",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result")
	}
	if text := toolText(t, result); !strings.HasPrefix(text, "GENERATION FAILED:") {
		t.Errorf("text = %q", text)
	}
}

func TestMCPTool_ListVersions(t *testing.T) {
	deps, env := newTestMCPDeps(t)
	ctx := context.Background()
	for i := range 12 {
		if _, err := env.store.AppendVersion(ctx, storage.NewVersion{Prompt: fmt.Sprintf("p%d", i)}); err != nil {
			t.Fatalf("AppendVersion: %v", err)
		}
	}

	tests := []struct {
		name  string
		args  map[string]any
		count int
	}{
		{"default", map[string]any{}, 10},
		{"smaller limit", map[string]any{"limit": 3}, 3},
		{"capped", map[string]any{"limit": 50}, 10},
		{"negative", map[string]any{"limit": -1}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := mcpListVersions(deps)(ctx, makeCallToolRequest("list_versions", tt.args))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.IsError {
				t.Fatalf("unexpected error: %s", toolText(t, result))
			}
			var versions []storage.Version
			if err := json.Unmarshal([]byte(toolText(t, result)), &versions); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if len(versions) != tt.count {
				t.Errorf("got %d versions, want %d", len(versions), tt.count)
			}
			if versions[0].Prompt != "p11" {
				t.Errorf("first prompt = %q, want p11", versions[0].Prompt)
			}
		})
	}
}

func TestMCPTool_ListVersions_Empty(t *testing.T) {
	deps, _ := newTestMCPDeps(t)

	result, err := mcpListVersions(deps)(context.Background(), makeCallToolRequest("list_versions", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text := toolText(t, result); text != "[]" {
		t.Fatalf("expected empty array, got: %s", text)
	}
}

func TestMCPTool_ListVersions_StoreFailure(t *testing.T) {
	deps := MCPDeps{Versions: brokenReader{}}

	result, err := mcpListVersions(deps)(context.Background(), makeCallToolRequest("list_versions", nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError || toolText(t, result) != "DB Fetch Error" {
		t.Errorf("result = %+v", result)
	}
}

func TestMCPResource_Recent(t *testing.T) {
	deps, env := newTestMCPDeps(t)
	long := strings.Repeat("x", 250)
	if _, err := env.store.AppendVersion(context.Background(), storage.NewVersion{Prompt: long}); err != nil {
		t.Fatalf("AppendVersion: %v", err)
	}

	contents, err := mcpResourceRecent(deps)(context.Background(), makeReadResourceRequest("versions://recent"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("got %d contents, want 1", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "versions://recent" || tc.MIMEType != "application/json" {
		t.Errorf("URI = %q, MIMEType = %q", tc.URI, tc.MIMEType)
	}

	var summaries []struct {
		ID     string `json:"id"`
		Prompt string `json:"prompt"`
	}
	if err := json.Unmarshal([]byte(tc.Text), &summaries); err != nil {
		t.Fatalf("failed to parse resource: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Prompt != strings.Repeat("x", 200)+"..." {
		t.Errorf("summaries = %+v", summaries)
	}
}

func TestNewMCPServer_Registers(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

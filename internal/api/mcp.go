package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Generator Generator
	Versions  VersionReader
	Version   string
}

// NewMCPServer creates an MCP server exposing generation and version history.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"uigen",
		deps.Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("uigen generates UI markup from a description using a fixed component set and keeps a history of generated versions."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("generate_ui",
			mcp.WithDescription("Plan, generate and explain UI markup for a request, then save it as a new version."),
			mcp.WithString("user_prompt", mcp.Description("What to build or change"), mcp.Required()),
			mcp.WithString("current_code", mcp.Description("Markup to revise, if any")),
		),
		mcpGenerateUI(deps),
	)

	s.AddTool(
		mcp.NewTool("list_versions",
			mcp.WithDescription("List the most recently generated versions, newest first."),
			mcp.WithNumber("limit", mcp.Description("Maximum number of versions (default and max 10)")),
		),
		mcpListVersions(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"versions://recent",
			"Recent Versions",
			mcp.WithResourceDescription("The 10 most recent versions as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecent(deps),
	)

	return s
}

func mcpGenerateUI(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prompt, err := req.RequireString("user_prompt")
		if err != nil || prompt == "" {
			return mcpError("user_prompt is required"), nil
		}
		code := req.GetString("current_code", "")

		gen, err := deps.Generator.Run(context.WithoutCancel(ctx), prompt, code)
		if err != nil {
			return mcpError(err.Error()), nil
		}

		b, err := json.Marshal(generateResponse{
			Plan:        gen.Plan,
			Code:        gen.Code,
			Explanation: gen.Explanation,
			VersionID:   gen.VersionID,
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpListVersions(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", RecentLimit)
		if limit <= 0 || limit > RecentLimit {
			limit = RecentLimit
		}

		versions, err := deps.Versions.RecentVersions(ctx, limit)
		if err != nil {
			return mcpError(dbFetchError), nil
		}
		if len(versions) == 0 {
			return mcpText("[]"), nil
		}

		b, err := json.Marshal(versions)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal versions: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecent(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		versions, err := deps.Versions.RecentVersions(ctx, RecentLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to get recent versions: %w", err)
		}

		type versionSummary struct {
			ID        string `json:"id"`
			Timestamp string `json:"timestamp"`
			Prompt    string `json:"prompt"`
		}

		summaries := make([]versionSummary, len(versions))
		for i, v := range versions {
			summaries[i] = versionSummary{
				ID:        v.ID,
				Timestamp: v.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
				Prompt:    truncate(v.Prompt, 200),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal versions: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
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

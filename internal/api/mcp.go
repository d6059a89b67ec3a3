package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kalambet/prospekt/internal/assistant"
	"github.com/kalambet/prospekt/internal/markdown"
	"github.com/kalambet/prospekt/internal/prospectlist"
	"github.com/kalambet/prospekt/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store *storage.Store
	// Assistant is optional; if nil, ask_assistant returns an error.
	Assistant    assistant.Asker
	HistoryLimit int
}

// NewMCPServer creates an MCP server exposing the CRM to MCP clients.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"prospekt",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("Prospekt CRM: prospects, notes, the knowledge base and the sales assistant."),
		server.WithRecovery(),
	)

	s.AddTool(
		mcp.NewTool("list_prospects",
			mcp.WithDescription("List prospects, filtered, sorted and paginated 20 per page."),
			mcp.WithString("search", mcp.Description("Substring of company, contact or email")),
			mcp.WithString("status", mcp.Description("Exact status, e.g. lead or NEW")),
			mcp.WithString("priority", mcp.Description("low, medium, high or urgent")),
			mcp.WithString("sort", mcp.Description("company_name, contact_name, status, priority or last_exchange")),
			mcp.WithString("dir", mcp.Description("asc (default) or desc")),
			mcp.WithNumber("page", mcp.Description("1-based page number")),
		),
		mcpListProspects(deps),
	)

	s.AddTool(
		mcp.NewTool("get_prospect",
			mcp.WithDescription("Get a prospect with its most recent exchanges and notes."),
			mcp.WithString("id", mcp.Description("Prospect id"), mcp.Required()),
		),
		mcpGetProspect(deps),
	)

	s.AddTool(
		mcp.NewTool("add_note",
			mcp.WithDescription("Attach a note to a prospect."),
			mcp.WithString("prospect_id", mcp.Description("Prospect id"), mcp.Required()),
			mcp.WithString("content", mcp.Description("Note text"), mcp.Required()),
			mcp.WithString("type", mcp.Description("general, call, meeting, reminder or followup")),
			mcp.WithBoolean("pinned", mcp.Description("Pin the note")),
		),
		mcpAddNote(deps),
	)

	s.AddTool(
		mcp.NewTool("search_knowledge",
			mcp.WithDescription("Search the knowledge base by text, category or tag."),
			mcp.WithString("query", mcp.Description("Substring of title or content")),
			mcp.WithString("category", mcp.Description("SITUATION, SERVICE, PROCESS or TEMPLATE")),
			mcp.WithString("tag", mcp.Description("Required tag")),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpSearchKnowledge(deps),
	)

	s.AddTool(
		mcp.NewTool("ask_assistant",
			mcp.WithDescription("Ask the sales assistant, optionally about one prospect."),
			mcp.WithString("message", mcp.Description("Question for the assistant"), mcp.Required()),
			mcp.WithString("prospect_id", mcp.Description("Prospect the question is about")),
		),
		mcpAskAssistant(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"prospekt://stats",
			"Pipeline counters",
			mcp.WithResourceDescription("Prospect totals: all, to contact, in discussion, won"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceStats(deps),
	)

	return s
}

func mcpListProspects(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := deps.Store.ListProspects(ctx)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to list prospects: %v", err)), nil
		}

		q := prospectlist.Query{
			Filter: prospectlist.Filter{
				Search:   req.GetString("search", ""),
				Status:   req.GetString("status", ""),
				Priority: req.GetString("priority", ""),
			},
			Page: req.GetInt("page", 1),
		}
		if sortArg := req.GetString("sort", ""); sortArg != "" {
			field, ok := prospectlist.ParseSortField(sortArg)
			if !ok {
				return mcpError(fmt.Sprintf("unknown sort field %q", sortArg)), nil
			}
			q.Sort.Field = field
		}
		if strings.EqualFold(req.GetString("dir", ""), string(prospectlist.Desc)) {
			q.Sort.Dir = prospectlist.Desc
		}

		return mcpJSON(prospectlist.Run(list, q))
	}
}

func mcpGetProspect(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcpError("id is required"), nil
		}

		pc, err := assistant.NewFetcher(deps.Store, deps.HistoryLimit).Fetch(ctx, id)
		if errors.Is(err, storage.ErrNotFound) {
			return mcpError(errProspectNotFound), nil
		}
		if err != nil {
			return mcpError(fmt.Sprintf("failed to load prospect: %v", err)), nil
		}
		return mcpJSON(pc)
	}
}

func mcpAddNote(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		prospectID, err := req.RequireString("prospect_id")
		if err != nil {
			return mcpError("prospect_id is required"), nil
		}
		content, err := req.RequireString("content")
		if err != nil || strings.TrimSpace(content) == "" {
			return mcpError("content is required"), nil
		}

		if _, err := deps.Store.GetProspect(ctx, prospectID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return mcpError(errProspectNotFound), nil
			}
			return mcpError(fmt.Sprintf("failed to load prospect: %v", err)), nil
		}

		n, err := deps.Store.CreateNote(ctx, storage.NoteInput{
			ProspectID: prospectID,
			Content:    content,
			Type:       req.GetString("type", ""),
			IsPinned:   req.GetBool("pinned", false),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("failed to save note: %v", err)), nil
		}
		return mcpText(fmt.Sprintf("Stored note %s", n.ID)), nil
	}
}

func mcpSearchKnowledge(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 50 {
			limit = 50
		}

		docs, err := deps.Store.ListKnowledgeDocs(ctx, storage.KnowledgeFilter{
			Search:   req.GetString("query", ""),
			Category: req.GetString("category", ""),
			Tag:      req.GetString("tag", ""),
		})
		if err != nil {
			return mcpError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(docs) > limit {
			docs = docs[:limit]
		}

		type result struct {
			ID       string   `json:"id"`
			Title    string   `json:"title"`
			Category string   `json:"category"`
			Tags     []string `json:"tags"`
			Excerpt  string   `json:"excerpt"`
		}
		results := make([]result, len(docs))
		for i, d := range docs {
			results[i] = result{
				ID:       d.ID,
				Title:    d.Title,
				Category: d.Category,
				Tags:     d.Tags,
				Excerpt:  markdown.Excerpt(d.Content),
			}
		}
		return mcpJSON(results)
	}
}

func mcpAskAssistant(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if deps.Assistant == nil {
			return mcpError("assistant not available"), nil
		}
		message, err := req.RequireString("message")
		if err != nil || strings.TrimSpace(message) == "" {
			return mcpError("message is required"), nil
		}

		reply, err := deps.Assistant.Ask(ctx, assistant.Request{
			Message:    message,
			ProspectID: req.GetString("prospect_id", ""),
		})
		if err != nil {
			return mcpError(assistant.ErrorText(err)), nil
		}
		return mcpText(reply.Message), nil
	}
}

func mcpResourceStats(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		list, err := deps.Store.ListProspects(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list prospects: %w", err)
		}

		b, err := json.Marshal(prospectlist.Count(list))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal stats: %w", err)
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

func mcpJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcpText(string(b)), nil
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

package api

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kalambet/prospekt/internal/assistant"
	"github.com/kalambet/prospekt/internal/prospectlist"
	"github.com/kalambet/prospekt/internal/storage"
)

// --- mocks ---

type mockAsker struct {
	mu    sync.Mutex
	reply assistant.Reply
	err   error
	got   []assistant.Request
}

func (m *mockAsker) Ask(_ context.Context, req assistant.Request) (assistant.Reply, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.got = append(m.got, req)
	return m.reply, m.err
}

// --- helpers ---

func newTestMCPDeps(t *testing.T) (MCPDeps, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return MCPDeps{
		Store:     store,
		Assistant: &mockAsker{reply: assistant.Reply{Message: "Proposez une démo."}},
	}, store
}

func seedProspect(t *testing.T, store *storage.Store, company, contact, priority string) storage.Prospect {
	t.Helper()
	p, err := store.CreateProspect(context.Background(), storage.ProspectInput{
		CompanyName: company,
		ContactName: contact,
		Priority:    priority,
	})
	if err != nil {
		t.Fatalf("CreateProspect: %v", err)
	}
	return p
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

func makeCallToolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
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

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), name string, args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := handler(context.Background(), makeCallToolRequest(name, args))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return result
}

// --- tests ---

func TestMCPTool_ListProspects(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedProspect(t, store, "Zeta", "Zoé", "low")
	seedProspect(t, store, "Acme", "Jeanne", "urgent")
	seedProspect(t, store, "Beta", "Bruno", "high")

	result := callTool(t, mcpListProspects(deps), "list_prospects", map[string]interface{}{
		"sort": "priority",
		"dir":  "desc",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var page prospectlist.Page
	if err := json.Unmarshal([]byte(toolText(t, result)), &page); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if page.Total != 3 || page.Page != 1 || page.TotalPages != 1 {
		t.Fatalf("page = %+v", page)
	}
	var order []string
	for _, p := range page.Items {
		order = append(order, p.CompanyName)
	}
	if strings.Join(order, ",") != "Acme,Beta,Zeta" {
		t.Fatalf("order = %v", order)
	}
}

func TestMCPTool_ListProspects_SearchAndBadSort(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedProspect(t, store, "Acme", "Jeanne", "")
	seedProspect(t, store, "Beta", "Bruno", "")

	result := callTool(t, mcpListProspects(deps), "list_prospects", map[string]interface{}{"search": "JEANNE"})
	var page prospectlist.Page
	if err := json.Unmarshal([]byte(toolText(t, result)), &page); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if page.Total != 1 || page.Items[0].CompanyName != "Acme" {
		t.Fatalf("page = %+v", page)
	}

	result = callTool(t, mcpListProspects(deps), "list_prospects", map[string]interface{}{"sort": "revenue"})
	if !result.IsError {
		t.Fatal("expected an error for an unknown sort field")
	}
}

func TestMCPTool_GetProspect(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	p := seedProspect(t, store, "Acme", "Jeanne", "high")
	if _, err := store.CreateNote(context.Background(), storage.NoteInput{ProspectID: p.ID, Content: "Rappeler lundi"}); err != nil {
		t.Fatalf("CreateNote: %v", err)
	}

	result := callTool(t, mcpGetProspect(deps), "get_prospect", map[string]interface{}{"id": p.ID})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	var pc assistant.ProspectContext
	if err := json.Unmarshal([]byte(toolText(t, result)), &pc); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if pc.Prospect == nil || pc.Prospect.ID != p.ID {
		t.Fatalf("prospect = %+v", pc.Prospect)
	}
	if len(pc.Notes) != 1 || pc.Notes[0].Content != "Rappeler lundi" {
		t.Fatalf("notes = %+v", pc.Notes)
	}

	result = callTool(t, mcpGetProspect(deps), "get_prospect", map[string]interface{}{"id": "missing"})
	if !result.IsError || toolText(t, result) != "Prospect not found" {
		t.Fatalf("expected not found, got %q", toolText(t, result))
	}
}

func TestMCPTool_AddNote(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	p := seedProspect(t, store, "Acme", "Jeanne", "")

	result := callTool(t, mcpAddNote(deps), "add_note", map[string]interface{}{
		"prospect_id": p.ID,
		"content":     "Budget validé",
		"type":        "meeting",
		"pinned":      true,
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if !strings.HasPrefix(toolText(t, result), "Stored note ") {
		t.Fatalf("text = %s", toolText(t, result))
	}

	notes, err := store.ListNotes(context.Background(), storage.NoteFilter{ChildFilter: storage.ChildFilter{ProspectID: p.ID}})
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(notes) != 1 || notes[0].Type != "meeting" || !notes[0].IsPinned {
		t.Fatalf("notes = %+v", notes)
	}
}

func TestMCPTool_AddNote_Validation(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	handler := mcpAddNote(deps)

	if r := callTool(t, handler, "add_note", map[string]interface{}{"content": "x"}); !r.IsError {
		t.Fatal("expected error without prospect_id")
	}
	if r := callTool(t, handler, "add_note", map[string]interface{}{"prospect_id": "p", "content": " "}); !r.IsError {
		t.Fatal("expected error for blank content")
	}
	r := callTool(t, handler, "add_note", map[string]interface{}{"prospect_id": "missing", "content": "x"})
	if !r.IsError || toolText(t, r) != "Prospect not found" {
		t.Fatalf("got %q", toolText(t, r))
	}
}

func TestMCPTool_SearchKnowledge(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	for _, in := range []storage.KnowledgeDocInput{
		{Title: "Onboarding", Category: storage.CategoryProcess, Content: "Les **étapes** du démarrage", Tags: []string{"client"}},
		{Title: "Tarifs", Category: storage.CategoryService, Content: "Grille onboarding"},
		{Title: "Relance", Category: storage.CategoryTemplate, Content: "Bonjour"},
	} {
		if _, err := store.CreateKnowledgeDoc(context.Background(), in); err != nil {
			t.Fatalf("CreateKnowledgeDoc: %v", err)
		}
	}

	result := callTool(t, mcpSearchKnowledge(deps), "search_knowledge", map[string]interface{}{
		"query":    "onboarding",
		"category": "PROCESS",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}

	var hits []struct {
		Title   string `json:"title"`
		Excerpt string `json:"excerpt"`
	}
	if err := json.Unmarshal([]byte(toolText(t, result)), &hits); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(hits) != 1 || hits[0].Title != "Onboarding" {
		t.Fatalf("hits = %+v", hits)
	}
	if hits[0].Excerpt != "Les étapes du démarrage" {
		t.Fatalf("excerpt = %q", hits[0].Excerpt)
	}

	result = callTool(t, mcpSearchKnowledge(deps), "search_knowledge", map[string]interface{}{"limit": 1})
	if err := json.Unmarshal([]byte(toolText(t, result)), &hits); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("limit ignored: %d hits", len(hits))
	}
}

func TestMCPTool_AskAssistant(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	asker := deps.Assistant.(*mockAsker)

	result := callTool(t, mcpAskAssistant(deps), "ask_assistant", map[string]interface{}{
		"message":     "Que proposer ?",
		"prospect_id": "p1",
	})
	if result.IsError {
		t.Fatalf("unexpected error: %s", toolText(t, result))
	}
	if toolText(t, result) != "Proposez une démo." {
		t.Fatalf("text = %s", toolText(t, result))
	}
	if len(asker.got) != 1 || asker.got[0].ProspectID != "p1" || asker.got[0].Message != "Que proposer ?" {
		t.Fatalf("requests = %+v", asker.got)
	}
}

func TestMCPTool_AskAssistant_Errors(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	deps.Assistant = &mockAsker{err: &assistant.Error{Kind: assistant.KindRateLimit}}

	result := callTool(t, mcpAskAssistant(deps), "ask_assistant", map[string]interface{}{"message": "Bonjour"})
	if !result.IsError || toolText(t, result) == "" {
		t.Fatalf("expected an error result, got %+v", result)
	}

	deps.Assistant = nil
	result = callTool(t, mcpAskAssistant(deps), "ask_assistant", map[string]interface{}{"message": "Bonjour"})
	if !result.IsError || toolText(t, result) != "assistant not available" {
		t.Fatalf("got %q", toolText(t, result))
	}
}

func TestMCPResource_Stats(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	seedProspect(t, store, "A", "a", "")
	p := seedProspect(t, store, "B", "b", "")
	won := "won"
	if _, err := store.UpdateProspect(context.Background(), p.ID, storage.ProspectPatch{Status: &won}); err != nil {
		t.Fatalf("UpdateProspect: %v", err)
	}

	contents, err := mcpResourceStats(deps)(context.Background(), makeReadResourceRequest("prospekt://stats"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(contents) != 1 {
		t.Fatalf("expected 1 content, got %d", len(contents))
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("expected TextResourceContents, got %T", contents[0])
	}
	if tc.URI != "prospekt://stats" || tc.MIMEType != "application/json" {
		t.Fatalf("uri/mime = %s/%s", tc.URI, tc.MIMEType)
	}

	var counts prospectlist.Counts
	if err := json.Unmarshal([]byte(tc.Text), &counts); err != nil {
		t.Fatalf("failed to parse stats: %v", err)
	}
	if counts != (prospectlist.Counts{Total: 2, ToContact: 1, Won: 1}) {
		t.Fatalf("counts = %+v", counts)
	}
}

func TestMCPServer_ConcurrentCalls(t *testing.T) {
	deps, store := newTestMCPDeps(t)
	p := seedProspect(t, store, "Acme", "Jeanne", "")

	addHandler := mcpAddNote(deps)
	listHandler := mcpListProspects(deps)

	var wg sync.WaitGroup
	errs := make(chan error, 20)

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := makeCallToolRequest("add_note", map[string]interface{}{
				"prospect_id": p.ID,
				"content":     "concurrent note",
			})
			if _, err := addHandler(context.Background(), req); err != nil {
				errs <- err
			}
		}()
	}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := listHandler(context.Background(), makeCallToolRequest("list_prospects", nil)); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent call failed: %v", err)
	}

	notes, err := store.ListNotes(context.Background(), storage.NoteFilter{ChildFilter: storage.ChildFilter{ProspectID: p.ID}})
	if err != nil {
		t.Fatalf("ListNotes: %v", err)
	}
	if len(notes) != 5 {
		t.Fatalf("expected 5 notes, got %d", len(notes))
	}
}

func TestNewMCPServer_RegistersTools(t *testing.T) {
	deps, _ := newTestMCPDeps(t)
	if s := NewMCPServer(deps); s == nil {
		t.Fatal("NewMCPServer returned nil")
	}
}

package api

import (
	"net/http"
	"net/url"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/prospekt/internal/storage"
)

func createKnowledge(t *testing.T, s testServer, body string) storage.KnowledgeDoc {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/knowledge-docs", body)
	expectStatus(t, rr, http.StatusCreated)
	return decode[storage.KnowledgeDoc](t, rr)
}

func TestKnowledge_SearchAndCategory(t *testing.T) {
	s := setupRouter(t, nil)
	createKnowledge(t, s, `{"title":"Onboarding client","category":"PROCESS","content":"Étapes","tags":["client"]}`)
	createKnowledge(t, s, `{"title":"Kick-off","category":"PROCESS","content":"Suite de l'ONBOARDING"}`)
	createKnowledge(t, s, `{"title":"Onboarding offre","category":"SERVICE","content":"Tarifs"}`)
	createKnowledge(t, s, `{"title":"Relance","category":"PROCESS","content":"Après 7 jours"}`)

	rr := s.do(t, http.MethodGet, "/api/knowledge-docs?search=onboarding&category=PROCESS", "")
	expectStatus(t, rr, http.StatusOK)
	rows := decode[[]knowledgeRow](t, rr)

	var titles []string
	for _, r := range rows {
		assert.Equal(t, "PROCESS", r.Category)
		hay := strings.ToLower(r.Title + " " + r.Content)
		assert.Contains(t, hay, "onboarding")
		titles = append(titles, r.Title)
	}
	sort.Strings(titles)
	assert.Equal(t, []string{"Kick-off", "Onboarding client"}, titles)
}

func TestKnowledge_SearchAccentedTitle(t *testing.T) {
	s := setupRouter(t, nil)
	createKnowledge(t, s, `{"title":"Étude de cas","category":"SITUATION","content":"Contexte client"}`)
	createKnowledge(t, s, `{"title":"Relance","category":"PROCESS","content":"Après 7 jours"}`)

	for _, q := range []string{"étude", "ÉTUDE", "Étude"} {
		rr := s.do(t, http.MethodGet, "/api/knowledge-docs?search="+url.QueryEscape(q), "")
		expectStatus(t, rr, http.StatusOK)
		rows := decode[[]knowledgeRow](t, rr)
		require.Len(t, rows, 1, "search %q", q)
		assert.Equal(t, "Étude de cas", rows[0].Title)
	}
}

func TestKnowledge_TagFilterAndAll(t *testing.T) {
	s := setupRouter(t, nil)
	createKnowledge(t, s, `{"title":"A","category":"TEMPLATE","content":"x","tags":["email","relance"]}`)
	createKnowledge(t, s, `{"title":"B","category":"SITUATION","content":"y","tags":["appel"]}`)

	rows := decode[[]knowledgeRow](t, s.do(t, http.MethodGet, "/api/knowledge-docs?tag=relance", ""))
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0].Title)

	rows = decode[[]knowledgeRow](t, s.do(t, http.MethodGet, "/api/knowledge-docs?category=all", ""))
	assert.Len(t, rows, 2)
}

func TestKnowledge_ListCarriesExcerpt(t *testing.T) {
	s := setupRouter(t, nil)
	createKnowledge(t, s, `{"title":"Guide","category":"SERVICE","content":"# Titre\n\nDu **gras** ici."}`)

	rr := s.do(t, http.MethodGet, "/api/knowledge-docs", "")
	expectStatus(t, rr, http.StatusOK)
	rows := decode[[]map[string]any](t, rr)
	require.Len(t, rows, 1)
	assert.Equal(t, "Titre Du gras ici.", rows[0]["excerpt"])
	assert.Equal(t, "Guide", rows[0]["title"])
}

func TestKnowledge_CreateValidation(t *testing.T) {
	s := setupRouter(t, nil)
	for _, body := range []string{
		`{"category":"PROCESS","content":"x"}`,
		`{"title":"T","content":"x"}`,
		`{"title":"T","category":"PROCESS","content":"   "}`,
	} {
		rr := s.do(t, http.MethodPost, "/api/knowledge-docs", body)
		expectError(t, rr, http.StatusBadRequest, "Title, category and content are required")
	}
}

func TestKnowledge_UpdateHTMLAndDelete(t *testing.T) {
	s := setupRouter(t, nil)
	d := createKnowledge(t, s, `{"title":"Guide","category":"SERVICE","content":"texte"}`)

	rr := s.do(t, http.MethodPut, "/api/knowledge-docs/"+d.ID, `{"content":"## Étape\n\n- un\n- deux","tags":["a"]}`)
	expectStatus(t, rr, http.StatusOK)
	updated := decode[storage.KnowledgeDoc](t, rr)
	assert.Equal(t, "Guide", updated.Title)
	assert.Equal(t, []string{"a"}, updated.Tags)

	rr = s.do(t, http.MethodGet, "/api/knowledge-docs/"+d.ID+"/html", "")
	expectStatus(t, rr, http.StatusOK)
	page := decode[map[string]string](t, rr)
	assert.Equal(t, d.ID, page["id"])
	assert.Equal(t, "Guide", page["title"])
	assert.Contains(t, page["html"], "<h2")
	assert.Contains(t, page["html"], "<li>un</li>")

	expectStatus(t, s.do(t, http.MethodDelete, "/api/knowledge-docs/"+d.ID, ""), http.StatusOK)
	expectError(t, s.do(t, http.MethodGet, "/api/knowledge-docs/"+d.ID, ""), http.StatusNotFound, "Knowledge doc not found")
	expectError(t, s.do(t, http.MethodGet, "/api/knowledge-docs/"+d.ID+"/html", ""), http.StatusNotFound, "Knowledge doc not found")
}

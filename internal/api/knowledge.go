package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/prospekt/internal/markdown"
	"github.com/kalambet/prospekt/internal/storage"
)

const errKnowledgeNotFound = "Knowledge doc not found"

// knowledgeRow is a list entry: the doc plus a plain-text excerpt.
type knowledgeRow struct {
	storage.KnowledgeDoc
	Excerpt string `json:"excerpt"`
}

func handleListKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		docs, err := deps.Store.ListKnowledgeDocs(r.Context(), storage.KnowledgeFilter{
			Search:   q.Get("search"),
			Category: q.Get("category"),
			Tag:      q.Get("tag"),
		})
		if err != nil {
			deps.writeInternal(w, err)
			return
		}

		rows := make([]knowledgeRow, len(docs))
		for i, d := range docs {
			rows[i] = knowledgeRow{KnowledgeDoc: d, Excerpt: markdown.Excerpt(d.Content)}
		}
		writeJSON(w, http.StatusOK, rows)
	}
}

func handleGetKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := deps.Store.GetKnowledgeDoc(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			deps.writeStoreError(w, err, errKnowledgeNotFound)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

type knowledgeHTML struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	HTML  string `json:"html"`
}

func handleKnowledgeHTML(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := deps.Store.GetKnowledgeDoc(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			deps.writeStoreError(w, err, errKnowledgeNotFound)
			return
		}
		html, err := markdown.Render(d.Content)
		if err != nil {
			deps.writeInternal(w, err)
			return
		}
		writeJSON(w, http.StatusOK, knowledgeHTML{ID: d.ID, Title: d.Title, HTML: html})
	}
}

func handleCreateKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in storage.KnowledgeDocInput
		if !decodeBody(w, r, &in) {
			return
		}
		if strings.TrimSpace(in.Title) == "" || in.Category == "" || strings.TrimSpace(in.Content) == "" {
			writeError(w, http.StatusBadRequest, "Title, category and content are required")
			return
		}

		d, err := deps.Store.CreateKnowledgeDoc(r.Context(), in)
		if err != nil {
			deps.writeInternal(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, d)
	}
}

func handleUpdateKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch storage.KnowledgeDocPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		d, err := deps.Store.UpdateKnowledgeDoc(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			deps.writeStoreError(w, err, errKnowledgeNotFound)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

func handleDeleteKnowledge(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DeleteKnowledgeDoc(r.Context(), chi.URLParam(r, "id")); err != nil {
			deps.writeStoreError(w, err, errKnowledgeNotFound)
			return
		}
		writeDeleted(w)
	}
}

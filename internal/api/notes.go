package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/prospekt/internal/storage"
)

const errNoteNotFound = "Note not found"

// handleListNotes lists notes newest first; scoped to a prospect, pinned
// notes come first.
func handleListNotes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prospectID := r.URL.Query().Get("prospect_id")
		list, err := deps.Store.ListNotes(r.Context(), storage.NoteFilter{
			ChildFilter: storage.ChildFilter{ProspectID: prospectID, Limit: parseIntParam(r, "limit", 0, 0)},
			PinnedFirst: prospectID != "",
		})
		if err != nil {
			deps.writeInternal(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(list))
	}
}

func handleGetNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := deps.Store.GetNote(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			deps.writeStoreError(w, err, errNoteNotFound)
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}

func handleCreateNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in storage.NoteInput
		if !decodeBody(w, r, &in) {
			return
		}
		if in.ProspectID == "" || strings.TrimSpace(in.Content) == "" {
			writeError(w, http.StatusBadRequest, "prospect_id and content are required")
			return
		}

		n, err := deps.Store.CreateNote(r.Context(), in)
		if err != nil {
			deps.writeInternal(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, n)
	}
}

func handleUpdateNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch storage.NotePatch
		if !decodeBody(w, r, &patch) {
			return
		}
		n, err := deps.Store.UpdateNote(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			deps.writeStoreError(w, err, errNoteNotFound)
			return
		}
		writeJSON(w, http.StatusOK, n)
	}
}

func handleDeleteNote(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DeleteNote(r.Context(), chi.URLParam(r, "id")); err != nil {
			deps.writeStoreError(w, err, errNoteNotFound)
			return
		}
		writeDeleted(w)
	}
}

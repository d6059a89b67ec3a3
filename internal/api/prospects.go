package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/prospekt/internal/prospectlist"
	"github.com/kalambet/prospekt/internal/storage"
)

const errProspectNotFound = "Prospect not found"

// handleListProspects returns every prospect, newest first. The optional
// search, status and priority parameters filter the list, sort and dir order
// it, and page switches the response to one page of the pipeline.
func handleListProspects(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := deps.Store.ListProspects(r.Context())
		if err != nil {
			deps.writeInternal(w, err)
			return
		}

		q := r.URL.Query()
		list = prospectlist.Apply(list, prospectlist.Filter{
			Search:   q.Get("search"),
			Status:   q.Get("status"),
			Priority: q.Get("priority"),
		})
		if field, ok := prospectlist.ParseSortField(q.Get("sort")); ok {
			dir := prospectlist.Asc
			if strings.EqualFold(q.Get("dir"), string(prospectlist.Desc)) {
				dir = prospectlist.Desc
			}
			list = prospectlist.SortList(list, prospectlist.Sort{Field: field, Dir: dir})
		}

		if q.Has("page") {
			writeJSON(w, http.StatusOK, prospectlist.Paginate(list, parseIntParam(r, "page", 1, 0)))
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

func handleGetProspect(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := deps.Store.GetProspect(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			deps.writeStoreError(w, err, errProspectNotFound)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleCreateProspect(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in storage.ProspectInput
		if !decodeBody(w, r, &in) {
			return
		}
		if strings.TrimSpace(in.CompanyName) == "" || strings.TrimSpace(in.ContactName) == "" {
			writeError(w, http.StatusBadRequest, "company_name and contact_name are required")
			return
		}

		p, err := deps.Store.CreateProspect(r.Context(), in)
		if err != nil {
			deps.writeInternal(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}

// handleUpdateProspect serves both PUT and PATCH: only fields present in the
// body change.
func handleUpdateProspect(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch storage.ProspectPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		p, err := deps.Store.UpdateProspect(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			deps.writeStoreError(w, err, errProspectNotFound)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

func handleDeleteProspect(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DeleteProspect(r.Context(), chi.URLParam(r, "id")); err != nil {
			deps.writeStoreError(w, err, errProspectNotFound)
			return
		}
		writeDeleted(w)
	}
}

// requireProspect answers 404 and returns false when the {id} prospect does
// not exist.
func requireProspect(deps Deps, w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := deps.Store.GetProspect(r.Context(), id); err != nil {
		deps.writeStoreError(w, err, errProspectNotFound)
		return "", false
	}
	return id, true
}

func handleProspectExchanges(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireProspect(deps, w, r)
		if !ok {
			return
		}
		list, err := deps.Store.ListExchanges(r.Context(), storage.ChildFilter{
			ProspectID: id,
			Limit:      parseIntParam(r, "limit", 0, 0),
		})
		if err != nil {
			deps.writeInternal(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(list))
	}
}

func handleProspectNotes(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireProspect(deps, w, r)
		if !ok {
			return
		}
		list, err := deps.Store.ListNotes(r.Context(), storage.NoteFilter{
			ChildFilter: storage.ChildFilter{ProspectID: id, Limit: parseIntParam(r, "limit", 0, 0)},
			PinnedFirst: true,
		})
		if err != nil {
			deps.writeInternal(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(list))
	}
}

func handleProspectDocs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := requireProspect(deps, w, r)
		if !ok {
			return
		}
		list, err := deps.Store.ListDocuments(r.Context(), storage.ChildFilter{ProspectID: id})
		if err != nil {
			deps.writeInternal(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(list))
	}
}

// handleStats returns the dashboard counters.
func handleStats(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := deps.Store.ListProspects(r.Context())
		if err != nil {
			deps.writeInternal(w, err)
			return
		}
		writeJSON(w, http.StatusOK, prospectlist.Count(list))
	}
}

// nonNil keeps empty lists encoding as [] rather than null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

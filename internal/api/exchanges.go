package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/prospekt/internal/storage"
)

const errExchangeNotFound = "Exchange not found"

func handleListExchanges(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := deps.Store.ListExchanges(r.Context(), storage.ChildFilter{
			ProspectID: r.URL.Query().Get("prospect_id"),
			Limit:      parseIntParam(r, "limit", 0, 0),
		})
		if err != nil {
			deps.writeInternal(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(list))
	}
}

func handleGetExchange(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := deps.Store.GetExchange(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			deps.writeStoreError(w, err, errExchangeNotFound)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func handleCreateExchange(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in storage.ExchangeInput
		if !decodeBody(w, r, &in) {
			return
		}
		if in.ProspectID == "" || strings.TrimSpace(in.Type) == "" {
			writeError(w, http.StatusBadRequest, "prospect_id and type are required")
			return
		}

		e, err := deps.Store.CreateExchange(r.Context(), in)
		if err != nil {
			deps.writeInternal(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, e)
	}
}

func handleUpdateExchange(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch storage.ExchangePatch
		if !decodeBody(w, r, &patch) {
			return
		}
		e, err := deps.Store.UpdateExchange(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			deps.writeStoreError(w, err, errExchangeNotFound)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func handleDeleteExchange(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Store.DeleteExchange(r.Context(), chi.URLParam(r, "id")); err != nil {
			deps.writeStoreError(w, err, errExchangeNotFound)
			return
		}
		writeDeleted(w)
	}
}

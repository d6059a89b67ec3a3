package api

import (
	"errors"
	"mime"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/prospekt/internal/blob"
	"github.com/kalambet/prospekt/internal/ingest"
	"github.com/kalambet/prospekt/internal/storage"
)

const (
	maxUploadSize   = 50 << 20 // 50MB
	maxUploadMemory = 8 << 20

	errDocumentNotFound = "Document not found"
)

// nowFunc is overridden in tests that need deterministic upload keys.
var nowFunc = time.Now

func handleListDocs(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := deps.Store.ListDocuments(r.Context(), storage.ChildFilter{
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

func handleGetDoc(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := deps.Store.GetDocument(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			deps.writeStoreError(w, err, errDocumentNotFound)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// handleUploadDoc stores the multipart "file" under a fresh key, then records
// its metadata. A blob whose metadata insert fails is left behind.
func handleUploadDoc(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
		defer r.Body.Close()
		if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
			return
		}
		if r.MultipartForm != nil {
			defer r.MultipartForm.RemoveAll()
		}

		prospectID := r.FormValue("prospect_id")
		file, header, err := r.FormFile("file")
		if err != nil || prospectID == "" {
			writeError(w, http.StatusBadRequest, "File and prospect_id are required")
			return
		}
		defer file.Close()

		contentType := uploadContentType(header.Header.Get("Content-Type"), header.Filename)
		key := blob.UploadKey(prospectID, header.Filename, nowFunc())
		if err := deps.Blobs.Put(r.Context(), key, file, contentType); err != nil {
			deps.writeInternal(w, err)
			return
		}

		title := r.FormValue("title")
		if title == "" {
			title = header.Filename
		}
		var description *string
		if d := r.FormValue("description"); d != "" {
			description = &d
		}

		doc, err := deps.Store.CreateDocument(r.Context(), storage.Document{
			ProspectID:  prospectID,
			Title:       title,
			Description: description,
			Filename:    header.Filename,
			FilePath:    key,
			ContentType: contentType,
			FileSize:    header.Size,
		})
		if err != nil {
			deps.writeInternal(w, err)
			return
		}

		if ingest.Extractable(contentType) {
			if err := ingest.Enqueue(r.Context(), deps.Store, doc.ID); err != nil {
				deps.logger().Warn("scheduling text extraction failed", "document_id", doc.ID, "error", err)
			} else {
				doc.TextStatus = storage.TextStatusPending
			}
		}
		writeJSON(w, http.StatusCreated, doc)
	}
}

// uploadContentType prefers the part's declared type and falls back to the
// file extension.
func uploadContentType(declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			return mt
		}
	}
	if ct := mime.TypeByExtension(strings.ToLower(path.Ext(filename))); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			return mt
		}
	}
	return "application/octet-stream"
}

type downloadResponse struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

func handleDownloadDoc(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := deps.Store.GetDocument(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			deps.writeStoreError(w, err, errDocumentNotFound)
			return
		}
		url, err := deps.Blobs.SignedURL(r.Context(), d.FilePath, deps.signedURLTTL())
		if err != nil {
			deps.writeInternal(w, err)
			return
		}
		writeJSON(w, http.StatusOK, downloadResponse{URL: url, Filename: d.Filename, ContentType: d.ContentType})
	}
}

type docTextResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
}

func handleDocText(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		status, text, err := deps.Store.GetDocumentText(r.Context(), id)
		if err != nil {
			deps.writeStoreError(w, err, errDocumentNotFound)
			return
		}
		writeJSON(w, http.StatusOK, docTextResponse{ID: id, Status: status, Text: text})
	}
}

// handleUpdateDoc changes title and description only; other fields in the
// body are ignored.
func handleUpdateDoc(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch storage.DocumentPatch
		if !decodeBody(w, r, &patch) {
			return
		}
		d, err := deps.Store.UpdateDocument(r.Context(), chi.URLParam(r, "id"), patch)
		if err != nil {
			deps.writeStoreError(w, err, errDocumentNotFound)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}

// handleDeleteDoc removes the stored file, then the row. A failed file
// delete is logged and does not stop the row delete.
func handleDeleteDoc(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		d, err := deps.Store.GetDocument(r.Context(), id)
		if err != nil {
			deps.writeStoreError(w, err, errDocumentNotFound)
			return
		}

		if err := deps.Blobs.Delete(r.Context(), d.FilePath); err != nil {
			deps.logger().Warn("deleting stored file failed", "document_id", id, "key", d.FilePath, "error", err)
		}

		if err := deps.Store.DeleteDocument(r.Context(), id); err != nil {
			deps.writeStoreError(w, err, errDocumentNotFound)
			return
		}
		writeDeleted(w)
	}
}

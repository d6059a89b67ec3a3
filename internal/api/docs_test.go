package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/kalambet/prospekt/internal/blob"
	"github.com/kalambet/prospekt/internal/storage"
)

type uploadPart struct {
	filename    string
	contentType string
	data        string
}

func multipartBody(t *testing.T, fields map[string]string, file *uploadPart) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField: %v", err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="file"; filename="`+file.filename+`"`)
		if file.contentType != "" {
			h.Set("Content-Type", file.contentType)
		}
		w, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		io.WriteString(w, file.data)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func upload(t *testing.T, s testServer, fields map[string]string, file *uploadPart) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, fields, file)
	req := httptest.NewRequest(http.MethodPost, "/api/docs", body)
	req.Header.Set("Content-Type", ct)
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func fixedUploadTime(t *testing.T, at time.Time) {
	t.Helper()
	orig := nowFunc
	nowFunc = func() time.Time { return at }
	t.Cleanup(func() { nowFunc = orig })
}

// steppedUploadTime advances the upload clock by a millisecond per call so
// several uploads for one prospect get distinct keys.
func steppedUploadTime(t *testing.T) {
	t.Helper()
	orig := nowFunc
	next := time.UnixMilli(1700000000000)
	nowFunc = func() time.Time {
		next = next.Add(time.Millisecond)
		return next
	}
	t.Cleanup(func() { nowFunc = orig })
}

func TestUploadDoc_RequiresFileAndProspect(t *testing.T) {
	s := setupRouter(t, nil)

	rr := upload(t, s, map[string]string{"prospect_id": "p1"}, nil)
	expectError(t, rr, http.StatusBadRequest, "File and prospect_id are required")

	rr = upload(t, s, nil, &uploadPart{filename: "a.txt", data: "hello"})
	expectError(t, rr, http.StatusBadRequest, "File and prospect_id are required")

	rr = s.do(t, http.MethodPost, "/api/docs", `{"prospect_id":"p1"}`)
	expectError(t, rr, http.StatusBadRequest, "File and prospect_id are required")
}

func TestUploadDoc_StoresBlobAndMetadata(t *testing.T) {
	s := setupRouter(t, nil)
	p := createProspect(t, s, `{"company_name":"Acme","contact_name":"Jeanne"}`)
	fixedUploadTime(t, time.UnixMilli(1700000000123))

	rr := upload(t, s, map[string]string{"prospect_id": p.ID, "description": "Devis signé"},
		&uploadPart{filename: "devis.final.txt", contentType: "text/plain", data: "contenu"})
	expectStatus(t, rr, http.StatusCreated)
	doc := decode[storage.Document](t, rr)

	if want := p.ID + "/1700000000123.txt"; doc.FilePath != want {
		t.Fatalf("file_path = %q, want %q", doc.FilePath, want)
	}
	if doc.Title != "devis.final.txt" {
		t.Fatalf("title = %q, want the filename", doc.Title)
	}
	if doc.Description == nil || *doc.Description != "Devis signé" {
		t.Fatalf("description = %v", doc.Description)
	}
	if doc.ContentType != "text/plain" || doc.FileSize != int64(len("contenu")) {
		t.Fatalf("content_type/size = %s/%d", doc.ContentType, doc.FileSize)
	}
	if doc.TextStatus != storage.TextStatusNone {
		t.Fatalf("text_status = %s, want none for non-PDF", doc.TextStatus)
	}

	rc, err := s.files.Get(context.Background(), doc.FilePath)
	if err != nil {
		t.Fatalf("blob not stored: %v", err)
	}
	defer rc.Close()
	if data, _ := io.ReadAll(rc); string(data) != "contenu" {
		t.Fatalf("blob = %q", data)
	}
}

func TestUploadDoc_PDFSchedulesExtraction(t *testing.T) {
	s := setupRouter(t, nil)
	p := createProspect(t, s, `{"company_name":"Acme","contact_name":"Jeanne"}`)

	rr := upload(t, s, map[string]string{"prospect_id": p.ID, "title": "Plaquette"},
		&uploadPart{filename: "plaquette.pdf", data: "%PDF-1.4"})
	expectStatus(t, rr, http.StatusCreated)
	doc := decode[storage.Document](t, rr)
	if doc.ContentType != "application/pdf" {
		t.Fatalf("content_type = %s, want inferred application/pdf", doc.ContentType)
	}
	if doc.TextStatus != storage.TextStatusPending || doc.Title != "Plaquette" {
		t.Fatalf("doc = %+v", doc)
	}

	job, err := s.store.ClaimNextJob(context.Background(), []string{"extract_text"})
	if err != nil || job == nil {
		t.Fatalf("expected a queued extraction job, got %v, %v", job, err)
	}
	if !strings.Contains(job.PayloadJSON, doc.ID) {
		t.Fatalf("payload = %s", job.PayloadJSON)
	}

	rr = s.do(t, http.MethodGet, "/api/docs/"+doc.ID+"/text", "")
	expectStatus(t, rr, http.StatusOK)
	text := decode[map[string]string](t, rr)
	if text["id"] != doc.ID || text["status"] != "pending" || text["text"] != "" {
		t.Fatalf("text = %v", text)
	}
}

func TestDownloadDoc_SignedLinkServesFile(t *testing.T) {
	s := setupRouter(t, nil)
	p := createProspect(t, s, `{"company_name":"Acme","contact_name":"Jeanne"}`)
	rr := upload(t, s, map[string]string{"prospect_id": p.ID},
		&uploadPart{filename: "notes.txt", contentType: "text/plain", data: "secret"})
	expectStatus(t, rr, http.StatusCreated)
	doc := decode[storage.Document](t, rr)

	rr = s.do(t, http.MethodGet, "/api/docs/"+doc.ID+"/download", "")
	expectStatus(t, rr, http.StatusOK)
	dl := decode[map[string]string](t, rr)
	if dl["filename"] != "notes.txt" || dl["content_type"] != "text/plain" {
		t.Fatalf("download = %v", dl)
	}
	if !strings.HasPrefix(dl["url"], "/files/"+doc.FilePath+"?") {
		t.Fatalf("url = %s", dl["url"])
	}

	rr = s.do(t, http.MethodGet, dl["url"], "")
	expectStatus(t, rr, http.StatusOK)
	if rr.Body.String() != "secret" {
		t.Fatalf("file body = %q", rr.Body.String())
	}

	forged := strings.Replace(dl["url"], "sig=", "sig=00", 1)
	expectStatus(t, s.do(t, http.MethodGet, forged, ""), http.StatusForbidden)
}

func TestUpdateDoc_OnlyTitleAndDescription(t *testing.T) {
	s := setupRouter(t, nil)
	p := createProspect(t, s, `{"company_name":"Acme","contact_name":"Jeanne"}`)
	rr := upload(t, s, map[string]string{"prospect_id": p.ID},
		&uploadPart{filename: "a.txt", contentType: "text/plain", data: "x"})
	doc := decode[storage.Document](t, rr)

	rr = s.do(t, http.MethodPut, "/api/docs/"+doc.ID, `{"title":"Nouveau","filename":"evil.sh","file_path":"../x"}`)
	expectStatus(t, rr, http.StatusOK)
	got := decode[storage.Document](t, rr)
	if got.Title != "Nouveau" || got.Filename != "a.txt" || got.FilePath != doc.FilePath {
		t.Fatalf("doc = %+v", got)
	}

	expectError(t, s.do(t, http.MethodPut, "/api/docs/missing", `{"title":"x"}`), http.StatusNotFound, "Document not found")
}

func TestDeleteDoc_RemovesBlobAndRow(t *testing.T) {
	s := setupRouter(t, nil)
	p := createProspect(t, s, `{"company_name":"Acme","contact_name":"Jeanne"}`)
	rr := upload(t, s, map[string]string{"prospect_id": p.ID},
		&uploadPart{filename: "a.txt", contentType: "text/plain", data: "x"})
	doc := decode[storage.Document](t, rr)

	expectStatus(t, s.do(t, http.MethodDelete, "/api/docs/"+doc.ID, ""), http.StatusOK)
	if _, err := s.files.Get(context.Background(), doc.FilePath); !errors.Is(err, blob.ErrNotFound) {
		t.Fatalf("blob still present: %v", err)
	}
	expectError(t, s.do(t, http.MethodGet, "/api/docs/"+doc.ID, ""), http.StatusNotFound, "Document not found")
	expectError(t, s.do(t, http.MethodDelete, "/api/docs/"+doc.ID, ""), http.StatusNotFound, "Document not found")
}

// brokenDeletes wraps a blob store whose Delete always fails.
type brokenDeletes struct {
	blob.Store
}

func (brokenDeletes) Delete(context.Context, string) error {
	return errors.New("storage unavailable")
}

func TestDeleteDoc_BlobFailureIsNotFatal(t *testing.T) {
	s := setupRouter(t, func(d *Deps) { d.Blobs = brokenDeletes{Store: d.Blobs} })
	p := createProspect(t, s, `{"company_name":"Acme","contact_name":"Jeanne"}`)
	rr := upload(t, s, map[string]string{"prospect_id": p.ID},
		&uploadPart{filename: "a.txt", contentType: "text/plain", data: "x"})
	doc := decode[storage.Document](t, rr)

	expectStatus(t, s.do(t, http.MethodDelete, "/api/docs/"+doc.ID, ""), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodGet, "/api/docs/"+doc.ID, ""), http.StatusNotFound)
}

func TestListDocs_ScopedToProspect(t *testing.T) {
	s := setupRouter(t, nil)
	a := createProspect(t, s, `{"company_name":"A","contact_name":"a"}`)
	b := createProspect(t, s, `{"company_name":"B","contact_name":"b"}`)
	steppedUploadTime(t)
	for _, id := range []string{a.ID, b.ID, b.ID} {
		rr := upload(t, s, map[string]string{"prospect_id": id},
			&uploadPart{filename: "f.txt", contentType: "text/plain", data: id})
		expectStatus(t, rr, http.StatusCreated)
	}

	rr := s.do(t, http.MethodGet, "/api/docs?prospect_id="+b.ID, "")
	expectStatus(t, rr, http.StatusOK)
	if list := decode[[]storage.Document](t, rr); len(list) != 2 {
		t.Fatalf("len = %d, want 2", len(list))
	}
	rr = s.do(t, http.MethodGet, "/api/prospects/"+a.ID+"/docs", "")
	if list := decode[[]storage.Document](t, rr); len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
}

package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kalambet/prospekt/internal/assistant"
	"github.com/kalambet/prospekt/internal/blob"
	"github.com/kalambet/prospekt/internal/metrics"
	"github.com/kalambet/prospekt/internal/session"
	"github.com/kalambet/prospekt/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// DefaultSignedURLTTL is the lifetime of download links.
const DefaultSignedURLTTL = 60 * time.Second

// Deps holds everything the HTTP surface talks to.
type Deps struct {
	Store     *storage.Store
	Blobs     blob.Store
	Assistant *assistant.Service

	// Files serves /files/* for the filesystem blob backend; nil otherwise.
	Files http.Handler
	// Metrics is optional; nil disables /metrics and request instrumentation.
	Metrics *metrics.Metrics

	// Session, Verifier and Profiles are set together when a JWT secret is
	// configured. Without them /auth/* answers 503 and /api/me 401.
	Session  *session.Middleware
	Verifier *session.Verifier
	Profiles *session.Profiles

	SignedURLTTL time.Duration
	Logger       *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d Deps) signedURLTTL() time.Duration {
	if d.SignedURLTTL > 0 {
		return d.SignedURLTTL
	}
	return DefaultSignedURLTTL
}

// NewRouter returns the full HTTP surface of the server.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.logger()))
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	if deps.Session != nil {
		r.Use(deps.Session.Handler)
	}

	r.Get("/health", handleHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
	if deps.Files != nil {
		r.Handle("/files/*", http.StripPrefix("/files/", deps.Files))
	}

	r.Route("/auth", func(r chi.Router) {
		r.Post("/session", handleCreateSession(deps))
		r.Post("/logout", handleLogout(deps))
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/me", handleMe(deps))
		r.Get("/stats", handleStats(deps))

		r.Route("/prospects", func(r chi.Router) {
			r.Get("/", handleListProspects(deps))
			r.Post("/", handleCreateProspect(deps))
			r.Get("/{id}", handleGetProspect(deps))
			r.Put("/{id}", handleUpdateProspect(deps))
			r.Patch("/{id}", handleUpdateProspect(deps))
			r.Delete("/{id}", handleDeleteProspect(deps))
			r.Get("/{id}/exchanges", handleProspectExchanges(deps))
			r.Get("/{id}/notes", handleProspectNotes(deps))
			r.Get("/{id}/docs", handleProspectDocs(deps))
		})

		r.Route("/exchanges", func(r chi.Router) {
			r.Get("/", handleListExchanges(deps))
			r.Post("/", handleCreateExchange(deps))
			r.Get("/{id}", handleGetExchange(deps))
			r.Put("/{id}", handleUpdateExchange(deps))
			r.Patch("/{id}", handleUpdateExchange(deps))
			r.Delete("/{id}", handleDeleteExchange(deps))
		})

		r.Route("/notes", func(r chi.Router) {
			r.Get("/", handleListNotes(deps))
			r.Post("/", handleCreateNote(deps))
			r.Get("/{id}", handleGetNote(deps))
			r.Put("/{id}", handleUpdateNote(deps))
			r.Patch("/{id}", handleUpdateNote(deps))
			r.Delete("/{id}", handleDeleteNote(deps))
		})

		r.Route("/docs", func(r chi.Router) {
			r.Get("/", handleListDocs(deps))
			r.Post("/", handleUploadDoc(deps))
			r.Get("/{id}", handleGetDoc(deps))
			r.Get("/{id}/download", handleDownloadDoc(deps))
			r.Get("/{id}/text", handleDocText(deps))
			r.Put("/{id}", handleUpdateDoc(deps))
			r.Patch("/{id}", handleUpdateDoc(deps))
			r.Delete("/{id}", handleDeleteDoc(deps))
		})

		r.Route("/knowledge-docs", func(r chi.Router) {
			r.Get("/", handleListKnowledge(deps))
			r.Post("/", handleCreateKnowledge(deps))
			r.Get("/{id}", handleGetKnowledge(deps))
			r.Get("/{id}/html", handleKnowledgeHTML(deps))
			r.Put("/{id}", handleUpdateKnowledge(deps))
			r.Patch("/{id}", handleUpdateKnowledge(deps))
			r.Delete("/{id}", handleDeleteKnowledge(deps))
		})

		r.Post("/assistant", handleAssistant(deps))
		r.Get("/assistant", handleAssistantHistory)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// requestLogger logs one line per request at Info, or Warn for 5xx.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			if status >= 500 {
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// writeInternal reports an unexpected store or backend failure.
func (d Deps) writeInternal(w http.ResponseWriter, err error) {
	d.logger().Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "Internal server error", Details: err.Error()})
}

// writeStoreError maps storage.ErrNotFound to 404 with notFound and anything
// else to 500.
func (d Deps) writeStoreError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, notFound)
		return
	}
	d.writeInternal(w, err)
}

func writeDeleted(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// decodeBody reads a JSON request body into v, answering 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

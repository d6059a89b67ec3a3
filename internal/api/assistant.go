package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/kalambet/prospekt/internal/assistant"
)

// handleAssistant answers one chat message. The configuration check runs
// before the body is read, so an unconfigured server answers 503 to any body.
func handleAssistant(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		svc := deps.Assistant
		if svc == nil {
			writeAssistantError(deps, w, &assistant.Error{Kind: assistant.KindMissingAPIKey})
			return
		}
		if e := svc.Check(); e != nil {
			writeAssistantError(deps, w, e)
			return
		}

		var req assistant.Request
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeError(w, http.StatusBadRequest, "Message is required")
			return
		}

		reply, err := svc.Ask(r.Context(), req)
		if err != nil {
			if errors.Is(err, assistant.ErrMessageRequired) {
				writeError(w, http.StatusBadRequest, "Message is required")
				return
			}
			var ae *assistant.Error
			if !errors.As(err, &ae) {
				ae = assistant.Classify(err)
			}
			writeAssistantError(deps, w, ae)
			return
		}

		if deps.Metrics != nil {
			deps.Metrics.ObserveAssistant("ok", reply.Usage.InputTokens, reply.Usage.OutputTokens)
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

func writeAssistantError(deps Deps, w http.ResponseWriter, e *assistant.Error) {
	deps.logger().Warn("assistant request failed", "code", e.Kind.Code(), "error", e)
	if deps.Metrics != nil {
		deps.Metrics.ObserveAssistant(e.Kind.Code(), 0, 0)
	}
	writeJSON(w, e.HTTPStatus(), e.Response())
}

// handleAssistantHistory is a placeholder: conversations are not stored.
func handleAssistantHistory(w http.ResponseWriter, r *http.Request) {
	prospectID := r.URL.Query().Get("prospect_id")
	if prospectID == "" {
		writeError(w, http.StatusBadRequest, "prospect_id is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":    "Conversation history feature not implemented yet",
		"prospectId": prospectID,
	})
}

package api

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/prospekt/internal/assistant"
	"github.com/kalambet/prospekt/internal/metrics"
)

type stubCompleter struct {
	reply  assistant.Reply
	err    error
	system string
	calls  int
}

func (s *stubCompleter) Complete(_ context.Context, system, _ string) (assistant.Reply, error) {
	s.calls++
	s.system = system
	return s.reply, s.err
}

func TestAssistant_MissingKey(t *testing.T) {
	s := setupRouter(t, nil)

	rr := s.do(t, http.MethodPost, "/api/assistant", `{"message":"Bonjour"}`)
	expectStatus(t, rr, http.StatusServiceUnavailable)
	body := decode[assistant.ErrorResponse](t, rr)
	assert.Equal(t, "MISSING_API_KEY", body.Code)
	assert.Equal(t, "Configuration error", body.Error)
	assert.NotEmpty(t, body.Message)
}

func TestAssistant_ConfigCheckPrecedesBody(t *testing.T) {
	s := setupRouter(t, nil)
	rr := s.do(t, http.MethodPost, "/api/assistant", `{}`)
	expectStatus(t, rr, http.StatusServiceUnavailable)
}

func TestAssistant_MessageRequired(t *testing.T) {
	stub := &stubCompleter{}
	s := setupRouter(t, func(d *Deps) {
		d.Assistant = assistant.NewServiceWithCompleter(stub, nil)
	})

	for _, body := range []string{`{}`, `{"message":"   "}`} {
		expectError(t, s.do(t, http.MethodPost, "/api/assistant", body), http.StatusBadRequest, "Message is required")
	}
	assert.Zero(t, stub.calls)
}

func TestAssistant_ReplyWithProspectContext(t *testing.T) {
	stub := &stubCompleter{reply: assistant.Reply{
		Message: "Voici un plan d'appel.",
		Usage:   assistant.Usage{InputTokens: 120, OutputTokens: 30},
	}}
	m := metrics.New()
	s := setupRouter(t, func(d *Deps) {
		d.Assistant = assistant.NewServiceWithCompleter(stub, assistant.NewFetcher(d.Store, 5))
		d.Metrics = m
	})
	p := createProspect(t, s, `{"company_name":"Acme","contact_name":"Jeanne Martin","status":"qualified"}`)

	rr := s.do(t, http.MethodPost, "/api/assistant",
		`{"message":"Comment préparer l'appel ?","prospectId":"`+p.ID+`","context":"Rendez-vous demain"}`)
	expectStatus(t, rr, http.StatusOK)

	body := decode[map[string]any](t, rr)
	assert.Equal(t, "Voici un plan d'appel.", body["message"])
	usage, ok := body["usage"].(map[string]any)
	require.True(t, ok, "usage missing: %s", rr.Body.String())
	assert.Equal(t, 120.0, usage["input_tokens"])
	assert.Equal(t, 30.0, usage["output_tokens"])

	assert.Contains(t, stub.system, "Jeanne Martin")
	assert.Contains(t, stub.system, "Acme")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(stub.system), "Rendez-vous demain"), stub.system)

	exposition, err := testutil.GatherAndCount(m.Registry(), "prospekt_assistant_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 1, exposition)
}

func TestAssistant_UnknownProspectDegrades(t *testing.T) {
	stub := &stubCompleter{reply: assistant.Reply{Message: "ok"}}
	s := setupRouter(t, func(d *Deps) {
		d.Assistant = assistant.NewServiceWithCompleter(stub, assistant.NewFetcher(d.Store, 5))
	})

	rr := s.do(t, http.MethodPost, "/api/assistant", `{"message":"Bonjour","prospectId":"missing"}`)
	expectStatus(t, rr, http.StatusOK)
	assert.Equal(t, 1, stub.calls)
}

func TestAssistant_ProviderErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"rate limit", &assistant.Error{Kind: assistant.KindRateLimit}, http.StatusTooManyRequests, "RATE_LIMIT"},
		{"overloaded", &assistant.Error{Kind: assistant.KindOverloaded}, http.StatusServiceUnavailable, "OVERLOADED"},
		{"invalid key", &assistant.Error{Kind: assistant.KindInvalidAPIKey}, http.StatusUnauthorized, "INVALID_API_KEY"},
		{"api error", &assistant.Error{Kind: assistant.KindAPI, Upstream: 400}, http.StatusBadRequest, "API_ERROR"},
		{"transport", context.DeadlineExceeded, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubCompleter{err: tt.err}
			s := setupRouter(t, func(d *Deps) {
				d.Assistant = assistant.NewServiceWithCompleter(stub, nil)
			})

			rr := s.do(t, http.MethodPost, "/api/assistant", `{"message":"Bonjour"}`)
			expectStatus(t, rr, tt.wantStatus)
			body := decode[assistant.ErrorResponse](t, rr)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.NotEmpty(t, body.Message)
			if tt.wantCode == "API_ERROR" {
				assert.Equal(t, 400, body.Status)
			}
		})
	}
}

func TestAssistant_HistoryStub(t *testing.T) {
	s := setupRouter(t, nil)

	expectError(t, s.do(t, http.MethodGet, "/api/assistant", ""), http.StatusBadRequest, "prospect_id is required")

	rr := s.do(t, http.MethodGet, "/api/assistant?prospect_id=p1", "")
	expectStatus(t, rr, http.StatusOK)
	body := decode[map[string]string](t, rr)
	assert.Equal(t, "Conversation history feature not implemented yet", body["message"])
	assert.Equal(t, "p1", body["prospectId"])
}

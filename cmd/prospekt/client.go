package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/kalambet/prospekt/internal/assistant"
	"github.com/kalambet/prospekt/internal/config"
)

// sessionTokenEnv names the variable holding a session token for servers
// running with auth enabled. `prospekt auth token` mints one.
const sessionTokenEnv = "PROSPEKT_SESSION_TOKEN"

type apiClient struct {
	baseURL    string
	cookieName string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &apiClient{
		baseURL:    cfg.BaseURL(),
		cookieName: cfg.Auth.CookieName,
		token:      strings.TrimSpace(os.Getenv(sessionTokenEnv)),
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.AddCookie(&http.Cookie{Name: c.cookieName, Value: c.token})
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is prospekt running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// remoteAsker sends assistant requests to a running server. Error bodies
// are turned back into *assistant.Error so the panel words them the same
// way it would in-process.
type remoteAsker struct {
	client *apiClient
}

func (a remoteAsker) Ask(ctx context.Context, req assistant.Request) (assistant.Reply, error) {
	resp, err := a.client.post(ctx, "/api/assistant", req)
	if err != nil {
		return assistant.Reply{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var body assistant.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return assistant.Reply{}, fmt.Errorf("server returned %d", resp.StatusCode)
		}
		return assistant.Reply{}, assistant.FromResponse(resp.StatusCode, body)
	}

	var reply assistant.Reply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return assistant.Reply{}, fmt.Errorf("decoding reply: %w", err)
	}
	if reply.Message == "" {
		return assistant.Reply{}, errors.New("empty reply from server")
	}
	return reply, nil
}

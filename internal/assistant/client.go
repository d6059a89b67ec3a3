package assistant

import (
	"context"
	"net/url"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	DefaultModel     = "claude-3-5-sonnet-20241022"
	DefaultMaxTokens = 1024
)

// placeholderKey is the value shipped in example env files.
const placeholderKey = "your_api_key_here"

// KeyConfigured reports whether key looks like a real credential.
func KeyConfigured(key string) bool {
	return strings.TrimSpace(key) != "" && key != placeholderKey
}

// Usage carries the token counters of one completion.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Reply is the assistant text plus its token usage.
type Reply struct {
	Message string `json:"message"`
	Usage   Usage  `json:"usage"`
}

// Completer sends one system prompt and one user message to a model.
type Completer interface {
	Complete(ctx context.Context, system, message string) (Reply, error)
}

type ClientConfig struct {
	APIKey    string
	Model     string
	MaxTokens int
	// BaseURL overrides the provider endpoint; empty uses the SDK default.
	BaseURL string
}

// Client is a Completer backed by the Anthropic Messages API. It never
// retries; every failure is returned classified.
type Client struct {
	api       anthropic.Client
	model     string
	maxTokens int64
}

// NewClient validates the credential before building the SDK client. The
// returned error is always an *Error.
func NewClient(cfg ClientConfig) (*Client, error) {
	if !KeyConfigured(cfg.APIKey) {
		return nil, &Error{Kind: KindMissingAPIKey}
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		if _, err := url.ParseRequestURI(cfg.BaseURL); err != nil {
			return nil, &Error{Kind: KindClientInit, Err: err}
		}
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	return &Client{
		api:       anthropic.NewClient(opts...),
		model:     model,
		maxTokens: int64(maxTokens),
	}, nil
}

// Complete returns the first text block of the response, or "" when the
// response has none.
func (c *Client) Complete(ctx context.Context, system, message string) (Reply, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(message)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.api.Messages.New(ctx, params)
	if err != nil {
		return Reply{}, Classify(err)
	}

	reply := Reply{
		Usage: Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
	for _, block := range resp.Content {
		if block.Type == "text" {
			reply.Message = block.Text
			break
		}
	}
	return reply, nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	alias   string // secondary env var, consulted when env is unset
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "PROSPEKT_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "PROSPEKT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.public_url", typ: kString, env: "PROSPEKT_SERVER_PUBLIC_URL",
		apply:   func(cfg *Config, v any) { cfg.Server.PublicURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.PublicURL },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PROSPEKT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "blob.backend", typ: kString, env: "PROSPEKT_BLOB_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Blob.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Blob.Backend },
	},
	{
		key: "blob.dir", typ: kString, env: "PROSPEKT_BLOB_DIR",
		apply:   func(cfg *Config, v any) { cfg.Blob.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Blob.Dir },
	},
	{
		key: "blob.bucket", typ: kString, env: "PROSPEKT_BLOB_BUCKET",
		apply:   func(cfg *Config, v any) { cfg.Blob.Bucket = v.(string) },
		extract: func(cfg Config) any { return cfg.Blob.Bucket },
	},
	{
		key: "blob.region", typ: kString, env: "PROSPEKT_BLOB_REGION",
		apply:   func(cfg *Config, v any) { cfg.Blob.Region = v.(string) },
		extract: func(cfg Config) any { return cfg.Blob.Region },
	},
	{
		key: "blob.endpoint", typ: kString, env: "PROSPEKT_BLOB_ENDPOINT",
		apply:   func(cfg *Config, v any) { cfg.Blob.Endpoint = v.(string) },
		extract: func(cfg Config) any { return cfg.Blob.Endpoint },
	},
	{
		key: "blob.signed_url_ttl", typ: kDuration, env: "PROSPEKT_BLOB_SIGNED_URL_TTL",
		apply:   func(cfg *Config, v any) { cfg.Blob.SignedURLTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Blob.SignedURLTTL },
	},
	{
		key: "assistant.api_key", typ: kString, env: "PROSPEKT_ANTHROPIC_API_KEY", alias: "ANTHROPIC_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Assistant.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.APIKey },
	},
	{
		key: "assistant.model", typ: kString, env: "PROSPEKT_ASSISTANT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.Assistant.Model = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.Model },
	},
	{
		key: "assistant.max_tokens", typ: kInt, env: "PROSPEKT_ASSISTANT_MAX_TOKENS",
		apply:   func(cfg *Config, v any) { cfg.Assistant.MaxTokens = v.(int) },
		extract: func(cfg Config) any { return cfg.Assistant.MaxTokens },
	},
	{
		key: "assistant.base_url", typ: kString, env: "PROSPEKT_ASSISTANT_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Assistant.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Assistant.BaseURL },
	},
	{
		key: "assistant.history_limit", typ: kInt, env: "PROSPEKT_ASSISTANT_HISTORY_LIMIT",
		apply:   func(cfg *Config, v any) { cfg.Assistant.HistoryLimit = v.(int) },
		extract: func(cfg Config) any { return cfg.Assistant.HistoryLimit },
	},
	{
		key: "auth.jwt_secret", typ: kString, env: "PROSPEKT_AUTH_JWT_SECRET",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Auth.JWTSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.JWTSecret },
	},
	{
		key: "auth.cookie_name", typ: kString, env: "PROSPEKT_AUTH_COOKIE_NAME",
		apply:   func(cfg *Config, v any) { cfg.Auth.CookieName = v.(string) },
		extract: func(cfg Config) any { return cfg.Auth.CookieName },
	},
	{
		key: "auth.profile_ttl", typ: kDuration, env: "PROSPEKT_AUTH_PROFILE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Auth.ProfileTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Auth.ProfileTTL },
	},
	{
		key: "ingest.poll_interval", typ: kDuration, env: "PROSPEKT_INGEST_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Ingest.PollInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Ingest.PollInterval },
	},
	{
		key: "ingest.extract_timeout", typ: kDuration, env: "PROSPEKT_INGEST_EXTRACT_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Ingest.ExtractTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Ingest.ExtractTimeout },
	},
	{
		key: "ingest.extract_memory_mb", typ: kInt, env: "PROSPEKT_INGEST_EXTRACT_MEMORY_MB",
		apply:   func(cfg *Config, v any) { cfg.Ingest.ExtractMemoryMB = v.(int) },
		extract: func(cfg Config) any { return cfg.Ingest.ExtractMemoryMB },
	},
	{
		key: "log.level", typ: kString, env: "PROSPEKT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
}

func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool, kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok || v == "" {
				continue
			}
			parsed, err := parseTyped(s.typ, v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, v, err)
				continue
			}
			s.apply(cfg, parsed)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		name := s.env
		raw := os.Getenv(name)
		if raw == "" && s.alias != "" {
			name = s.alias
			raw = os.Getenv(name)
		}
		if raw == "" {
			continue
		}
		v, err := parseTyped(s.typ, raw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", name, raw, err)
			continue
		}
		s.apply(cfg, v)
	}
}

func parseTyped(typ keyType, raw string) (any, error) {
	switch typ {
	case kInt:
		return strconv.Atoi(raw)
	case kBool:
		return strconv.ParseBool(raw)
	case kDuration:
		return time.ParseDuration(raw)
	default:
		return raw, nil
	}
}

package config

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Blob      BlobConfig
	Assistant AssistantConfig
	Auth      AuthConfig
	Ingest    IngestConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host string
	Port int
	// PublicURL is the externally reachable base used when minting signed
	// file links. Empty means http://Host:Port.
	PublicURL string
}

type StorageConfig struct {
	DataDir string
}

type BlobConfig struct {
	Backend      string // "fs" or "s3"
	Dir          string
	Bucket       string
	Region       string
	Endpoint     string
	SignedURLTTL time.Duration
}

type AssistantConfig struct {
	APIKey       string
	Model        string
	MaxTokens    int
	BaseURL      string
	HistoryLimit int
}

type AuthConfig struct {
	JWTSecret  string
	CookieName string
	ProfileTTL time.Duration
}

type IngestConfig struct {
	PollInterval time.Duration
	// ExtractTimeout bounds one text extraction child process.
	ExtractTimeout time.Duration
	// ExtractMemoryMB is the heap ceiling of the extraction child.
	ExtractMemoryMB int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 4000,
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Blob: BlobConfig{
			Backend:      "fs",
			SignedURLTTL: 60 * time.Second,
		},
		Assistant: AssistantConfig{
			Model:        "claude-3-5-sonnet-20241022",
			MaxTokens:    1024,
			HistoryLimit: 10,
		},
		Auth: AuthConfig{
			CookieName: "sb-access-token",
			ProfileTTL: 5 * time.Minute,
		},
		Ingest: IngestConfig{
			PollInterval:    500 * time.Millisecond,
			ExtractTimeout:  60 * time.Second,
			ExtractMemoryMB: 256,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// BaseURL returns the address clients use to reach the server.
func (c Config) BaseURL() string {
	if c.Server.PublicURL != "" {
		return strings.TrimRight(c.Server.PublicURL, "/")
	}
	return "http://" + c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

// BlobDir returns the filesystem blob root, defaulting under the data dir.
func (c Config) BlobDir() string {
	if c.Blob.Dir != "" {
		return c.Blob.Dir
	}
	return filepath.Join(c.Storage.DataDir, "files")
}

// Load reads configuration from the platform-native backend, a .env file in
// the working directory, environment variables, and the platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.prospekt.app) and secrets
// fall back to macOS Keychain.
// On Linux the backend is a YAML file at $XDG_CONFIG_HOME/prospekt/config.yaml
// and secrets fall back to $XDG_DATA_HOME/prospekt/secrets.json.
//
// Environment variables (PROSPEKT_*) override backend values on all platforms.
// A missing Anthropic API key is not an error: the assistant reports it per request.
func Load() (Config, error) {
	// Existing environment wins over .env; a missing file is fine.
	_ = godotenv.Load()
	return loadWith(newPlatformBackend(), platformSecrets{})
}

// secretReader is the platform secret store as seen by Load.
type secretReader interface {
	Get(service, account string) (string, error)
}

const secretService = "prospekt"

func loadWith(b Backend, secrets secretReader) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.Assistant.APIKey == "" {
		if key, err := secrets.Get(secretService, "anthropic_api_key"); err == nil && key != "" {
			cfg.Assistant.APIKey = key
		}
	}
	if cfg.Auth.JWTSecret == "" {
		if secret, err := secrets.Get(secretService, "jwt_secret"); err == nil && secret != "" {
			cfg.Auth.JWTSecret = secret
		}
	}

	return cfg, nil
}

// APIKeyHint tells the user where the assistant credential can be provided.
func APIKeyHint() string {
	return "set ANTHROPIC_API_KEY or PROSPEKT_ANTHROPIC_API_KEY" + apiKeyHint()
}

type platformSecrets struct{}

func (platformSecrets) Get(service, account string) (string, error) {
	return secretGet(service, account)
}

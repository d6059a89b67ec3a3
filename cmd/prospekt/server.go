package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/prospekt/internal/api"
	"github.com/kalambet/prospekt/internal/assistant"
	"github.com/kalambet/prospekt/internal/blob"
	"github.com/kalambet/prospekt/internal/config"
	"github.com/kalambet/prospekt/internal/ingest"
	"github.com/kalambet/prospekt/internal/metrics"
	"github.com/kalambet/prospekt/internal/prospectlist"
	"github.com/kalambet/prospekt/internal/session"
	"github.com/kalambet/prospekt/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"start"},
	Short:   "Start the prospekt server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running prospekt server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServer()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show prospekt server status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus(cmd.Context())
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMCP()
	},
}

// extractTextCmd is the child half of ingest.ProcessExtractor. The server
// re-executes itself with it for every PDF.
var extractTextCmd = &cobra.Command{
	Use:    "extract-text",
	Short:  "Read a PDF on stdin and write its text to stdout",
	Hidden: true,
	Args:   cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return ingest.ServeExtraction(os.Stdin, os.Stdout)
	},
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "prospekt.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func setupLogging(level string) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// openBlobs builds the configured object store. The filesystem backend also
// serves its signed links, so it is returned as the file handler too.
func openBlobs(ctx context.Context, cfg config.Config) (blob.Store, http.Handler, error) {
	switch cfg.Blob.Backend {
	case "", "fs":
		fs, err := blob.NewFSStore(cfg.BlobDir(), cfg.BaseURL(), []byte(cfg.Auth.JWTSecret))
		if err != nil {
			return nil, nil, err
		}
		return fs, fs, nil
	case "s3":
		s3, err := blob.NewS3Store(ctx, cfg.Blob.Bucket, cfg.Blob.Region, cfg.Blob.Endpoint)
		if err != nil {
			return nil, nil, err
		}
		return s3, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown blob backend %q", cfg.Blob.Backend)
}

// newExtractor parses PDFs in a child copy of this binary under the
// configured limits.
func newExtractor(cfg config.Config) (ingest.ProcessExtractor, error) {
	exe, err := os.Executable()
	if err != nil {
		return ingest.ProcessExtractor{}, fmt.Errorf("locating executable for text extraction: %w", err)
	}
	x := ingest.NewProcessExtractor(exe, extractTextCmd.Name())
	if cfg.Ingest.ExtractTimeout > 0 {
		x.Timeout = cfg.Ingest.ExtractTimeout
	}
	if cfg.Ingest.ExtractMemoryMB > 0 {
		x.Limits.Memory = int64(cfg.Ingest.ExtractMemoryMB) << 20
	}
	return x, nil
}

func newAssistant(cfg config.Config, store *storage.Store) *assistant.Service {
	return assistant.NewService(assistant.ClientConfig{
		APIKey:    cfg.Assistant.APIKey,
		Model:     cfg.Assistant.Model,
		MaxTokens: cfg.Assistant.MaxTokens,
		BaseURL:   cfg.Assistant.BaseURL,
	}, assistant.NewFetcher(store, cfg.Assistant.HistoryLimit))
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "prospekt version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	// Refuse to start twice on the same port.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(cfg.BaseURL() + "/health"); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("prospekt is already running (PID %d)", pid)
			return fmt.Errorf("server already running (PID %d)", pid)
		}
		printWarning("prospekt is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("server already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	blobs, files, err := openBlobs(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening blob storage: %w", err)
	}
	printStep("Blob storage: %s", cfg.Blob.Backend)

	svc := newAssistant(cfg, store)
	if e := svc.Check(); e != nil {
		printWarning("Assistant unavailable: %s (%s)", e.UserMessage(), config.APIKeyHint())
	}

	m := metrics.New()
	deps := api.Deps{
		Store:        store,
		Blobs:        blobs,
		Assistant:    svc,
		Files:        files,
		Metrics:      m,
		SignedURLTTL: cfg.Blob.SignedURLTTL,
	}

	if cfg.Auth.JWTSecret != "" {
		v, err := session.NewVerifier(cfg.Auth.JWTSecret)
		if err != nil {
			return fmt.Errorf("initializing sessions: %w", err)
		}
		deps.Verifier = v
		deps.Session = session.NewMiddleware(v, cfg.Auth.CookieName)
		deps.Profiles = session.NewProfiles(store, cfg.Auth.ProfileTTL)
		slog.Info("session middleware enabled", "cookie", deps.Session.CookieName())
	} else {
		slog.Warn("auth.jwt_secret not set; sessions disabled")
	}

	extractor, err := newExtractor(cfg)
	if err != nil {
		return err
	}
	worker := ingest.NewWorker(store, blobs, extractor, cfg.Ingest.PollInterval)
	worker.SetObserver(m.ObserveJob)
	go worker.Run(ctx)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "prospekt listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// runMCP serves the MCP tools on stdin/stdout against the local database.
// Logs go to stderr so they never corrupt the protocol stream.
func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Store:        store,
		Assistant:    newAssistant(cfg, store),
		HistoryLimit: cfg.Assistant.HistoryLimit,
	})
	slog.Info("MCP server started (stdio transport)")

	err = server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp server: %w", err)
	}
	return nil
}

func stopServer() error {
	cfg, err := config.Load()
	if err != nil {
		printError("could not load config: %v", err)
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("prospekt is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop prospekt (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to prospekt (PID %d)", pid)
	return nil
}

func showStatus(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}
	client, err := newAPIClient()
	if err != nil {
		return err
	}
	client.httpClient = &http.Client{Timeout: 2 * time.Second}

	resp, err := client.get(ctx, "/health")
	running := false
	switch {
	case err != nil:
		printStatus("Server", "stopped")
	case resp.StatusCode == http.StatusOK:
		resp.Body.Close()
		running = true
		printStatus("Server", "running at %s", cfg.BaseURL())
	default:
		resp.Body.Close()
		printStatus("Server", "error (HTTP %d)", resp.StatusCode)
	}

	if assistant.KeyConfigured(cfg.Assistant.APIKey) {
		printStatus("Assistant", "%s", cfg.Assistant.Model)
	} else {
		printStatus("Assistant", "not configured")
	}
	printStatus("Blob backend", "%s", cfg.Blob.Backend)
	printStatus("Sessions", "%s", enabledLabel(cfg.Auth.JWTSecret != ""))

	if running {
		if resp, err := client.get(ctx, "/api/stats"); err == nil {
			var stats prospectlist.Counts
			if decodeJSON(resp, &stats) == nil {
				printStatus("Prospects", "%d (%d to contact, %d in discussion, %d won)",
					stats.Total, stats.ToContact, stats.InDiscussion, stats.Won)
			}
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}

func enabledLabel(on bool) string {
	if on {
		return "enabled"
	}
	return "disabled"
}

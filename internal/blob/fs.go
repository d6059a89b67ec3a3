package blob

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// FSStore keeps objects as files under a root directory. Download links
// point at the server's /files/ route and carry an HMAC-SHA256 signature
// over the key and expiry.
type FSStore struct {
	dir     string
	baseURL string
	secret  []byte
	now     func() time.Time
}

// NewFSStore creates dir if needed. baseURL is the public server address
// that signed links are built on. An empty secret is replaced by a random
// one, which invalidates outstanding links on restart.
func NewFSStore(dir, baseURL string, secret []byte) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generating signing key: %w", err)
		}
	}
	return &FSStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		now:     time.Now,
	}, nil
}

func (s *FSStore) path(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, filepath.FromSlash(key)), nil
}

// Put writes r under key. The content type is not recorded; files are
// served with a type derived from their extension.
func (s *FSStore) Put(ctx context.Context, key string, r io.Reader, contentType string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating blob directory: %w", err)
	}
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrExists
		}
		return fmt.Errorf("creating blob: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("writing blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(p)
		return fmt.Errorf("closing blob: %w", err)
	}
	return nil
}

func (s *FSStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening blob: %w", err)
	}
	return f, nil
}

func (s *FSStore) Delete(ctx context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing blob: %w", err)
	}
	return nil
}

// SignedURL returns {baseURL}/files/{key}?expires=<unix>&sig=<hex>.
func (s *FSStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	expires := strconv.FormatInt(s.now().Add(ttl).Unix(), 10)
	q := url.Values{}
	q.Set("expires", expires)
	q.Set("sig", s.sign(key, expires))
	u := url.URL{Path: "/files/" + key, RawQuery: q.Encode()}
	return s.baseURL + u.String(), nil
}

func (s *FSStore) sign(key, expires string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(key))
	mac.Write([]byte{'\n'})
	mac.Write([]byte(expires))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a link's signature and expiry.
func (s *FSStore) Verify(key, expires, sig string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil || s.now().Unix() > exp {
		return false
	}
	want := s.sign(key, expires)
	return hmac.Equal([]byte(want), []byte(sig))
}

// ServeHTTP serves a signed link. The request path must be the bare key, so
// mount it behind http.StripPrefix("/files/", store).
func (s *FSStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Path
	q := r.URL.Query()
	if !s.Verify(key, q.Get("expires"), q.Get("sig")) {
		http.Error(w, "invalid or expired link", http.StatusForbidden)
		return
	}

	rc, err := s.Get(r.Context(), key)
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidKey) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		slog.Error("serving blob", "key", key, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	f := rc.(*os.File)
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, filepath.Base(key), stat.ModTime(), f)
}

// Package blob stores uploaded document binaries and hands out time-boxed
// download links for them.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned by Get when no object exists under the key.
	ErrNotFound = errors.New("blob not found")
	// ErrExists is returned by Put when the key is already taken. Uploads
	// never overwrite.
	ErrExists = errors.New("blob already exists")
	// ErrInvalidKey is returned for keys that are empty, absolute or escape
	// the store root.
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store is an object store keyed by slash-separated paths.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object. A missing key is not an error.
	Delete(ctx context.Context, key string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// UploadKey builds the storage key for a document upload:
// {prospectID}/{unix millis}.{ext}. The extension is the text after the last
// dot of filename, or the whole filename when it has no dot.
func UploadKey(prospectID, filename string, now time.Time) string {
	ext := filename
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = filename[i+1:]
	}
	return fmt.Sprintf("%s/%d.%s", prospectID, now.UnixMilli(), ext)
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return ErrInvalidKey
	}
	if clean := path.Clean(key); clean != key || clean == "." || strings.HasPrefix(clean, "../") || clean == ".." {
		return ErrInvalidKey
	}
	return nil
}

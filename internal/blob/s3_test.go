package blob

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 implements the handful of path-style object calls S3Store makes.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		if _, ok := f.objects[key]; ok && r.Header.Get("If-None-Match") == "*" {
			w.WriteHeader(http.StatusPreconditionFailed)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>PreconditionFailed</Code><Message>At least one of the pre-conditions you specified did not hold</Message></Error>`)
			return
		}
		b, _ := io.ReadAll(r.Body)
		f.objects[key] = b
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		b, ok := f.objects[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(b)))
		w.WriteHeader(http.StatusOK)
		w.Write(b)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestS3Store(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(srv.URL),
		UsePathStyle:               true,
		Credentials:                credentials.NewStaticCredentialsProvider("AKID", "SECRET", ""),
		RetryMaxAttempts:           1,
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
	})
	return newS3StoreWithClient(client, "docs"), fake
}

func TestS3Store_PutGetDelete(t *testing.T) {
	s, fake := newTestS3Store(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "p1/1.pdf", bytes.NewReader([]byte("%PDF-1.4")), "application/pdf"))
	assert.Equal(t, []byte("%PDF-1.4"), fake.objects["docs/p1/1.pdf"])

	rc, err := s.Get(ctx, "p1/1.pdf")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(b))

	require.NoError(t, s.Delete(ctx, "p1/1.pdf"))
	_, err = s.Get(ctx, "p1/1.pdf")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestS3Store_PutExisting(t *testing.T) {
	s, fake := newTestS3Store(t)
	fake.objects["docs/p1/1.pdf"] = []byte("old")

	err := s.Put(context.Background(), "p1/1.pdf", bytes.NewReader([]byte("new")), "application/pdf")
	assert.ErrorIs(t, err, ErrExists)
	assert.Equal(t, []byte("old"), fake.objects["docs/p1/1.pdf"])
}

func TestS3Store_SignedURL(t *testing.T) {
	s, _ := newTestS3Store(t)

	u, err := s.SignedURL(context.Background(), "p1/1.pdf", 60*time.Second)
	require.NoError(t, err)
	assert.Contains(t, u, "/docs/p1/1.pdf?")
	assert.Contains(t, u, "X-Amz-Expires=60")
	assert.Contains(t, u, "X-Amz-Signature=")
}

func TestS3Store_InvalidKey(t *testing.T) {
	s, _ := newTestS3Store(t)
	_, err := s.SignedURL(context.Background(), "../etc", time.Minute)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

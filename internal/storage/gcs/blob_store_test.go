package gcs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func newTestStore(t *testing.T, handler http.Handler) *BlobStore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	s, err := Dial(context.Background(), Config{Bucket: "course-archive"},
		option.WithEndpoint(srv.URL), option.WithoutAuthentication())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutObjectUploads(t *testing.T) {
	t.Parallel()

	const path = "raw/run-1/mapo/text/abc.txt"
	s := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/upload/storage/v1/b/course-archive/o")
		assert.Equal(t, path, r.URL.Query().Get("name"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Contains(t, string(body), "수채화 기초")
		assert.Contains(t, string(body), "text/plain")
		fmt.Fprintf(w, `{"name": %q, "bucket": "course-archive"}`, path)
	}))

	uri, err := s.PutObject(context.Background(), path, "text/plain; charset=utf-8", strings.NewReader("수채화 기초"))
	require.NoError(t, err)
	assert.Equal(t, "gs://course-archive/"+path, uri)
}

func TestPutObjectServerError(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	_, err := s.PutObject(context.Background(), "x.txt", "", strings.NewReader("x"))
	require.Error(t, err)
}

func TestPutObjectRequiresPath(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, http.NotFoundHandler())
	_, err := s.PutObject(context.Background(), " ", "", strings.NewReader("x"))
	require.Error(t, err)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)
}

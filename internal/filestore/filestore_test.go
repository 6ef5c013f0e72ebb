package filestore

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const minChunk = 256 * 1024

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(context.Background(), srv.Client(), testLogger(t), minChunk, option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	return c
}

func TestUpload_Multipart(t *testing.T) {
	var (
		gotType string
		gotBody string
	)

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, "/files") {
			http.NotFound(w, r)
			return
		}

		gotType = r.URL.Query().Get("uploadType")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"file-123"}`))
	}))

	id, err := c.Upload(context.Background(), "essay.txt", strings.NewReader("hello classroom"))
	require.NoError(t, err)
	assert.Equal(t, "file-123", id)
	assert.Equal(t, "multipart", gotType)
	assert.Contains(t, gotBody, `"name":"essay.txt"`)
	assert.Contains(t, gotBody, "hello classroom")
}

func TestUpload_Resumable(t *testing.T) {
	var (
		srvURL  string
		chunks  atomic.Int32
		started atomic.Bool
		got     bytes.Buffer
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/files"):
			assert.Equal(t, "resumable", r.URL.Query().Get("uploadType"))
			started.Store(true)
			w.Header().Set("Location", srvURL+"/session/1")
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/session/1":
			chunks.Add(1)
			body, _ := io.ReadAll(r.Body)
			got.Write(body)

			if strings.HasSuffix(r.Header.Get("Content-Range"), "/*") {
				w.WriteHeader(http.StatusPermanentRedirect)
				return
			}

			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"id":"big-file"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	c, err := New(context.Background(), srv.Client(), testLogger(t), minChunk, option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	content := bytes.Repeat([]byte("x"), minChunk+1000)

	id, err := c.Upload(context.Background(), "big.bin", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, "big-file", id)
	assert.True(t, started.Load())
	assert.Equal(t, int32(2), chunks.Load())
	assert.Equal(t, len(content), got.Len())
}

func TestUpload_APIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The user's Drive storage quota has been exceeded."}}`))
	}))

	_, err := c.Upload(context.Background(), "essay.txt", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `filestore: uploading "essay.txt"`)
	assert.Contains(t, err.Error(), "storage quota has been exceeded")

	var apiErr *googleapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.Code)
}

func TestNew_ChunkSizeBounds(t *testing.T) {
	ctx := context.Background()
	opt := option.WithEndpoint("http://127.0.0.1:1/")

	_, err := New(ctx, http.DefaultClient, testLogger(t), MaxChunkSize+1, opt)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")

	c, err := New(ctx, http.DefaultClient, testLogger(t), 0, opt)
	require.NoError(t, err)
	assert.Equal(t, googleapi.DefaultUploadChunkSize, c.chunkSize)

	c, err = New(ctx, http.DefaultClient, testLogger(t), MaxChunkSize, opt)
	require.NoError(t, err)
	assert.Equal(t, MaxChunkSize, c.chunkSize)
}

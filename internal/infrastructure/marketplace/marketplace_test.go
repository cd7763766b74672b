package marketplace

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geektools.dev/cli/internal/core/domain"
	"geektools.dev/cli/internal/infrastructure/recovery"
)

func noWait(context.Context, time.Duration) error { return nil }

func newTestClient(t *testing.T, baseURL string) (*Client, string) {
	t.Helper()
	tempDir := t.TempDir()
	exec := recovery.New(domain.DefaultRetryPolicy(), nil).WithSleep(noWait)
	return NewClient(Options{BaseURL: baseURL, TempDir: tempDir, Timeout: 5 * time.Second}, exec, nil), tempDir
}

func TestDownload_SavesArchive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "geektools-cli", r.UserAgent())
		assert.Equal(t, "/plugins/net-tools.tar.gz", r.URL.Path)
		_, _ = w.Write([]byte("archive-bytes"))
	}))
	defer server.Close()

	client, tempDir := newTestClient(t, server.URL)
	path, err := client.Download(context.Background(), "plugins/net-tools.tar.gz")
	require.NoError(t, err)

	assert.Equal(t, tempDir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), DownloadPrefix))
	assert.True(t, strings.HasSuffix(path, ".tar.gz"))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "archive-bytes", string(content))
}

func TestDownload_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	client, _ := newTestClient(t, "")
	path, err := client.Download(context.Background(), server.URL+"/p.tar.gz")
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDownload_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer server.Close()

	client, tempDir := newTestClient(t, server.URL)
	_, err := client.Download(context.Background(), "missing.tar.gz")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNetworkFailed))
	assert.Equal(t, int32(1), calls.Load())

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDownload_ExhaustsAttempts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	_, err := client.Download(context.Background(), "p.tar.gz")

	var derr *domain.Error
	require.True(t, errors.As(err, &derr))
	assert.Equal(t, domain.KindNetworkFailed, derr.Kind)
	assert.Equal(t, server.URL+"/p.tar.gz", derr.URL)
	assert.Equal(t, int32(3), calls.Load())
}

func TestResolveURL(t *testing.T) {
	client, _ := newTestClient(t, "https://market.example.com/api/")

	got, err := client.ResolveURL("/files/a.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "https://market.example.com/api/files/a.tar.gz", got)

	got, err = client.ResolveURL("http://other.example.com/b.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, "http://other.example.com/b.tar.gz", got)

	bare, _ := newTestClient(t, "")
	_, err = bare.ResolveURL("a.tar.gz")
	assert.Error(t, err)
}

func TestParseArchiveName(t *testing.T) {
	tests := []struct {
		file    string
		name    string
		version string
	}{
		{"net-tools-v1.2.3.tar.gz", "net-tools", "v1.2.3"},
		{"net-tools-1.2.3.tar", "net-tools", "1.2.3"},
		{"net-tools.tar.gz", "net-tools", UnknownVersion},
		{"my-plugin-beta.tar.gz", "my-plugin-beta", UnknownVersion},
		{"plain", "plain", UnknownVersion},
		{"trailing-.tar.gz", "trailing-", UnknownVersion},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			name, version := ParseArchiveName(tt.file)
			assert.Equal(t, tt.name, name)
			assert.Equal(t, tt.version, version)
		})
	}
}

func TestScanArchives(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	for _, f := range []string{"a-v1.0.0.tar.gz", "notes.txt", "b.tar"} {
		require.NoError(t, os.WriteFile(filepath.Join(first, f), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(first, "dir.tar.gz"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(second, "c-2.0.tar.gz"), []byte("xyz"), 0o644))

	found := ScanArchives([]string{first, second, first, filepath.Join(first, "missing")})
	require.Len(t, found, 3)

	byName := make(map[string]LocalArchive)
	for _, a := range found {
		byName[a.Name] = a
	}
	assert.Equal(t, "v1.0.0", byName["a"].Version)
	assert.Equal(t, UnknownVersion, byName["b"].Version)
	assert.Equal(t, "2.0", byName["c"].Version)
	assert.Equal(t, int64(3), byName["c"].Size)
}

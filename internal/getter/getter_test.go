package getter_test

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarkusio/jbang-catalog/internal/getter"
)

func TestFetchFile_HTTP(t *testing.T) {
	t.Parallel()

	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		if r.URL.Path != "/repo/a.jar" {
			http.NotFound(w, r)
			return
		}

		_, _ = w.Write([]byte("jar-bytes"))
	}))
	t.Cleanup(srv.Close)

	g := getter.New(srv.Client(), nil)
	dest := filepath.Join(t.TempDir(), "a.jar")

	err := g.FetchFile(t.Context(), srv.URL+"/repo/a.jar", dest, getter.FetchOpts{
		Header: http.Header{"Authorization": []string{"Basic Zm9vOmJhcg=="}},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "jar-bytes", string(data))
	assert.Equal(t, "Basic Zm9vOmJhcg==", gotAuth.Load())
}

func TestFetchFile_HTTPNotFound(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	g := getter.New(srv.Client(), nil)
	err := g.FetchFile(t.Context(), srv.URL+"/repo/missing.jar", filepath.Join(t.TempDir(), "x.jar"), getter.FetchOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestFetchFile_LocalCopy(t *testing.T) {
	t.Parallel()

	srcDir := t.TempDir()
	src := filepath.Join(srcDir, "a.jar")
	require.NoError(t, os.WriteFile(src, []byte("local"), 0o644))

	dest := filepath.Join(t.TempDir(), "copy.jar")
	g := getter.New(nil, nil)
	require.NoError(t, g.FetchFile(t.Context(), getter.FileURL(src), dest, getter.FetchOpts{}))

	info, err := os.Lstat(dest)
	require.NoError(t, err)
	assert.Zero(t, info.Mode()&os.ModeSymlink, "destination must be a copy")

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "local", string(data))
}

func TestFetchFile_LocalMissing(t *testing.T) {
	t.Parallel()

	g := getter.New(nil, nil)
	err := g.FetchFile(t.Context(), getter.FileURL(filepath.Join(t.TempDir(), "nope.jar")),
		filepath.Join(t.TempDir(), "x.jar"), getter.FetchOpts{})
	require.Error(t, err)
}

func TestLocalPath(t *testing.T) {
	t.Parallel()

	p, err := getter.LocalPath("file:///srv/maven/io/acme/a.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/srv/maven/io/acme/a.json"), p)

	_, err = getter.LocalPath("https://repo.example.com/a.json")
	require.Error(t, err)

	assert.True(t, getter.IsFileURL("FILE:///tmp/x"))
	assert.False(t, getter.IsFileURL("https://repo.example.com"))
}

func TestFileURL_RoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p, err := getter.LocalPath(getter.FileURL(dir))
	require.NoError(t, err)
	assert.Equal(t, dir, p)
}

func TestNewClients_FetchRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}

		assert.Equal(t, "catalog-test/1.0", r.Header.Get("User-Agent"))
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	clients := getter.NewClients(getter.ClientOpts{
		Retries:      2,
		RetryWaitMin: time.Millisecond,
		RetryWaitMax: 5 * time.Millisecond,
		UserAgent:    "catalog-test/1.0",
	})

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := clients.Fetch.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewClients_FetchExhaustedReturnsResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	clients := getter.NewClients(getter.ClientOpts{Retries: 1, RetryWaitMin: time.Millisecond, RetryWaitMax: time.Millisecond})

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := clients.Fetch.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestNewClients_APIDoesNotRetry(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	clients := getter.NewClients(getter.ClientOpts{Retries: 3, RetryWaitMin: time.Millisecond})

	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, srv.URL, nil)
	require.NoError(t, err)

	resp, err := clients.API.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

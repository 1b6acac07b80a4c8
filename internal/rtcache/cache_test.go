package rtcache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/venice-v5/venice-cli/internal/device"
)

// releaseServer serves a fixed runtime image and a latest-release document,
// counting image downloads.
func releaseServer(t *testing.T, tag string, image []byte, downloads *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/latest", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name": "` + tag + `"}`))
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, _ *http.Request) {
		downloads.Add(1)
		_, _ = w.Write(image)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return server
}

// testCache wires a cache over a temp directory against the test server.
func testCache(t *testing.T, server *httptest.Server) *Cache {
	t.Helper()

	cache := New(t.TempDir())
	cache.Client = server.Client()
	cache.DownloadURL = server.URL + "/download"
	cache.LatestURL = server.URL + "/latest"

	return cache
}

// TestResolveFetchesOnce downloads a missing image, then serves later
// resolutions from disk.
func TestResolveFetchesOnce(t *testing.T) {
	t.Parallel()

	image := []byte("runtime bytes")

	var downloads atomic.Int32

	server := releaseServer(t, "v0.2.0", image, &downloads)
	cache := testCache(t, server)
	v := Version{Minor: 2}

	ctx := context.Background()

	data, err := cache.Resolve(ctx, v)
	require.NoError(t, err)
	require.Equal(t, image, data)
	require.Equal(t, int32(1), downloads.Load())

	// The image landed in the cache directory under its canonical name.
	onDisk, err := os.ReadFile(cache.Path(v))
	require.NoError(t, err)
	require.Equal(t, image, onDisk)

	// No stale .old file is left behind by the atomic install.
	_, err = os.Stat(cache.Path(v) + ".old")
	require.ErrorIs(t, err, os.ErrNotExist)

	// A second resolution never touches the network.
	data, err = cache.Resolve(ctx, v)
	require.NoError(t, err)
	require.Equal(t, image, data)
	require.Equal(t, int32(1), downloads.Load())
}

// TestResolveHTTPError surfaces a failed download.
func TestResolveHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	cache := testCache(t, server)
	cache.DownloadURL = server.URL + "/download"

	_, err := cache.Resolve(context.Background(), Version{Major: 9})
	require.ErrorIs(t, err, errBadHTTPStatus)
}

// TestInstalled lists cached versions sorted ascending, ignoring strangers.
func TestInstalled(t *testing.T) {
	t.Parallel()

	cache := New(t.TempDir())

	for _, name := range []string{
		"venice-v1.0.0.bin",
		"venice-v0.10.0.bin",
		"venice-v0.2.1.bin",
		"notes.txt",
		IndexFilename,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(cache.Dir, name), []byte("x"), 0o644))
	}

	versions, err := cache.Installed()
	require.NoError(t, err)
	require.Equal(t, []Version{
		{Minor: 2, Patch: 1},
		{Minor: 10},
		{Major: 1},
	}, versions)
}

// TestInstalledEmpty treats a missing cache directory as empty.
func TestInstalledEmpty(t *testing.T) {
	t.Parallel()

	cache := New(filepath.Join(t.TempDir(), "absent"))

	versions, err := cache.Installed()
	require.NoError(t, err)
	require.Empty(t, versions)
}

// TestDigestUsesIndex records the image digest on install and reuses it.
func TestDigestUsesIndex(t *testing.T) {
	t.Parallel()

	image := []byte("digest me")

	var downloads atomic.Int32

	server := releaseServer(t, "v0.3.0", image, &downloads)
	cache := testCache(t, server)
	v := Version{Minor: 3}

	_, err := cache.Resolve(context.Background(), v)
	require.NoError(t, err)

	want := device.Checksum(image)
	require.Equal(t, want, cache.Digest(v, image))

	// Without an index entry the digest falls back to hashing the bytes.
	empty := New(t.TempDir())
	require.Equal(t, want, empty.Digest(v, image))
}

// TestLatest parses the release endpoint's tag.
func TestLatest(t *testing.T) {
	t.Parallel()

	var downloads atomic.Int32

	server := releaseServer(t, "v1.4.2", nil, &downloads)
	cache := testCache(t, server)

	v, err := cache.Latest(context.Background())
	require.NoError(t, err)
	require.Equal(t, Version{Major: 1, Minor: 4, Patch: 2}, v)
}

// TestLatestBadTag rejects a tag that is not a version.
func TestLatestBadTag(t *testing.T) {
	t.Parallel()

	var downloads atomic.Int32

	server := releaseServer(t, "nightly", nil, &downloads)
	cache := testCache(t, server)

	_, err := cache.Latest(context.Background())
	require.ErrorIs(t, err, ErrVersionMalformed)
}

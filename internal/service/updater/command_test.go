package updater

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/venice-v5/venice-cli/internal/rtcache"
)

// TestRunFetchesThenShortCircuits downloads the latest image once, then
// recognizes the cache as current.
func TestRunFetchesThenShortCircuits(t *testing.T) {
	t.Parallel()

	var downloads atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/latest", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"tag_name": "v0.4.0"}`))
	})
	mux.HandleFunc("/download/", func(w http.ResponseWriter, _ *http.Request) {
		downloads.Add(1)
		_, _ = w.Write([]byte("runtime image"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	cache := rtcache.New(t.TempDir())
	cache.Client = server.Client()
	cache.DownloadURL = server.URL + "/download"
	cache.LatestURL = server.URL + "/latest"

	ctx := context.Background()

	require.NoError(t, Run(ctx, &Options{Cache: cache}))
	require.Equal(t, int32(1), downloads.Load())

	data, err := os.ReadFile(cache.Path(rtcache.Version{Minor: 4}))
	require.NoError(t, err)
	require.Equal(t, []byte("runtime image"), data)

	// The image is cached now; a second update touches nothing.
	require.NoError(t, Run(ctx, &Options{Cache: cache}))
	require.Equal(t, int32(1), downloads.Load())
}

// TestRunLatestUnavailable surfaces a failing release endpoint.
func TestRunLatestUnavailable(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(server.Close)

	cache := rtcache.New(t.TempDir())
	cache.Client = server.Client()
	cache.LatestURL = server.URL + "/latest"

	require.Error(t, Run(context.Background(), &Options{Cache: cache}))
}

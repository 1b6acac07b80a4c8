package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// observedContext returns a context carrying a logger whose entries are
// captured by the returned observer.
func observedContext() (context.Context, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return ToContext(context.Background(), zap.New(core).Sugar()), logs
}

// TestFromContextFallback returns the global logger when none is stored.
func TestFromContextFallback(t *testing.T) {
	t.Parallel()

	require.Same(t, Logger(), FromContext(context.Background()))
}

// TestWithName names every entry logged through the derived context.
func TestWithName(t *testing.T) {
	t.Parallel()

	ctx, logs := observedContext()
	ctx = WithName(ctx, "uploader")

	Info(ctx, "hello")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, "uploader", entries[0].LoggerName)
}

// TestWithKV attaches the pair to every entry logged through the context.
func TestWithKV(t *testing.T) {
	t.Parallel()

	ctx, logs := observedContext()
	ctx = WithKV(ctx, "slot", 3)

	Infof(ctx, "uploading")

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, int64(3), entries[0].ContextMap()["slot"])
}

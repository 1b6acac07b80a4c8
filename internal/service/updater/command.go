// Package updater keeps the local runtime cache current with the latest
// published Venice release.
package updater

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/venice-v5/venice-cli/internal/logger"
	"github.com/venice-v5/venice-cli/internal/rtcache"
)

// Options are inputs accepted by the updater entry point.
type Options struct {
	// Cache is the runtime image cache to refresh.
	Cache *rtcache.Cache
}

// Run fetches the latest runtime release into the cache unless it is
// already present.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "updater")

	latest, err := opts.Cache.Latest(ctx)
	if err != nil {
		return err
	}

	if _, err = os.Stat(opts.Cache.Path(latest)); err == nil {
		logger.Infof(ctx, "Already up to date (%s)", latest)
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat cached runtime: %w", err)
	}

	if _, err = opts.Cache.Resolve(ctx, latest); err != nil {
		return err
	}

	logger.Infof(ctx, "Updated to Venice %s", latest)

	return nil
}

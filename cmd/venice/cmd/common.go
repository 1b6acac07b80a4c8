package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/venice-v5/venice-cli/internal/device"
	"github.com/venice-v5/venice-cli/internal/rtcache"
)

var (
	errUnknownLogLevel = errors.New("unknown log level")
	errUnknownAction   = errors.New("unknown post-upload action")
)

// newCache opens the per-user runtime cache.
func newCache() (*rtcache.Cache, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("locate user cache directory: %w", err)
	}

	return rtcache.New(filepath.Join(base, "venice-cli")), nil
}

// parseAction maps the --after flag to a device action.
func parseAction(s string) (device.PostUploadAction, error) {
	switch s {
	case "", "show-run-screen":
		return device.ActionShowRunScreen, nil
	case "run-program":
		return device.ActionRunProgram, nil
	case "do-nothing":
		return device.ActionDoNothing, nil
	case "halt":
		return device.ActionHalt, nil
	default:
		return device.ActionShowRunScreen, fmt.Errorf("%w: %q", errUnknownAction, s)
	}
}

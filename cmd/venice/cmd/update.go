package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/venice-v5/venice-cli/internal/service/updater"
)

// updateCmd refreshes the local runtime cache from the latest release.
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Download the latest runtime image into the local cache.",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		cache, err := newCache()
		if err != nil {
			return err
		}

		return updater.Run(ctx, &updater.Options{Cache: cache})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(updateCmd)
}

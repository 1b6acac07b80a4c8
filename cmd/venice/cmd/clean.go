package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/venice-v5/venice-cli/internal/service/builder"
)

// cleanCmd removes the build directory and all cached artifacts.
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove build artifacts.",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		return builder.Clean(ctx, &builder.Options{Dir: projectDir})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(cleanCmd)
}

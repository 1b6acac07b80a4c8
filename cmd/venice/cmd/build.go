package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/venice-v5/venice-cli/internal/service/builder"
)

// buildCmd compiles the project into a program table without touching a device.
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Compile project sources into a program table.",
	Long: `Compiles every module under src/ that has changed since the last build and
packs the results into a program table under build/. Sources are recompiled
only when newer than their cached artifacts.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		return builder.Run(ctx, &builder.Options{
			Dir:      projectDir,
			Compiler: compiler,
		})
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(buildCmd)
}

package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/venice-v5/venice-cli/internal/device/serial"
	"github.com/venice-v5/venice-cli/internal/service/uploader"
)

// afterUpload stores the --after flag value.
var afterUpload string

// uploadCmd builds the project and transfers it to the connected brain.
var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Build the project and upload it to the brain.",
	Long: `Builds the project, resolves the runtime image named by the manifest and
uploads everything into the manifest's slot. Files whose checksum already
matches the device copy are skipped. Over a wireless link the radio is
switched to the download channel first.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		after, err := parseAction(afterUpload)
		if err != nil {
			return err
		}

		cache, err := newCache()
		if err != nil {
			return err
		}

		conn, err := uploader.Run(ctx, &uploader.Options{
			Dir:        projectDir,
			Compiler:   compiler,
			Enumerator: serial.NewEnumerator(),
			Cache:      cache,
			After:      after,
		})
		if err != nil {
			return err
		}

		return conn.Close()
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	uploadCmd.Flags().
		StringVarP(&afterUpload, "after", "a", "show-run-screen",
			"device action once the upload completes: show-run-screen, run-program, do-nothing or halt")

	rootCmd.AddCommand(uploadCmd)
}

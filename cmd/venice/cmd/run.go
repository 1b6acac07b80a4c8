package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/venice-v5/venice-cli/internal/device"
	"github.com/venice-v5/venice-cli/internal/device/serial"
	"github.com/venice-v5/venice-cli/internal/service/terminal"
	"github.com/venice-v5/venice-cli/internal/service/uploader"
)

// runCmd uploads the project, starts it and stays attached to its output.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Upload the project, start it and attach a terminal.",
	Long: `Uploads the project like the upload command, tells the brain to launch it
immediately and then mirrors the program's serial output until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		cache, err := newCache()
		if err != nil {
			return err
		}

		conn, err := uploader.Run(ctx, &uploader.Options{
			Dir:        projectDir,
			Compiler:   compiler,
			Enumerator: serial.NewEnumerator(),
			Cache:      cache,
			After:      device.ActionRunProgram,
		})
		if err != nil {
			return err
		}
		defer conn.Close()

		return terminal.Run(ctx, conn)
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(runCmd)
}

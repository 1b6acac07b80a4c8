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

// terminalCmd attaches to the user program's serial I/O without uploading.
var terminalCmd = &cobra.Command{
	Use:   "terminal",
	Short: "Attach a terminal to the running user program.",
	Long: `Connects to the first detected brain and mirrors the user program's serial
output to stdout, forwarding stdin back to the program, until interrupted.`,
	Args: cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		// Setup graceful shutdown handling.
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
		defer stop()

		devices, err := serial.NewEnumerator().Devices()
		if err != nil {
			return err
		}

		if len(devices) == 0 {
			return device.ErrNoDevice
		}

		conn, err := devices[0].Connect(ctx, uploader.DefaultConnectTimeout)
		if err != nil {
			return err
		}
		defer conn.Close()

		return terminal.Run(ctx, conn)
	},
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	rootCmd.AddCommand(terminalCmd)
}

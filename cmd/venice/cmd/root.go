package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/venice-v5/venice-cli/internal/logger"
	"github.com/venice-v5/venice-cli/internal/version"
)

var (
	// projectDir pins the project directory instead of searching upward
	// from the working directory.
	projectDir string
	// logLevel sets the minimum severity written to the console.
	logLevel string
	// compiler overrides the bytecode compiler executable.
	compiler string

	// rootCmd represents the base command for the Venice toolchain.
	rootCmd = &cobra.Command{
		Use:   "venice",
		Short: "Build and upload Venice programs to a V5 brain.",
		Long: `Venice packages MicroPython projects for VEX V5 hardware.

It compiles project sources into a program table, keeps a local cache of
runtime images, and uploads both to the brain over a serial link. Wireless
links are switched to the download radio channel before transferring.

A project is any directory containing a Venice.toml manifest. Commands look
for the manifest in the working directory and its parents unless --directory
points somewhere explicit.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if logLevel == "" {
				return nil
			}

			level, ok := logger.ParseLogLevel(logLevel)
			if !ok {
				return errUnknownLogLevel
			}

			logger.SetLevel(level)

			return nil
		},
	}
)

// Execute runs the venice CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.PersistentFlags().
		StringVarP(&projectDir, "directory", "C", "", "project directory (default: search upward from the working directory)")
	rootCmd.PersistentFlags().
		StringVarP(&logLevel, "log-level", "l", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().
		StringVar(&compiler, "compiler", "", "bytecode compiler executable (default: mpy-cross from PATH)")
}

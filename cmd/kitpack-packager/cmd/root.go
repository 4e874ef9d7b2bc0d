package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ovoloshchuk/kitpack/internal/service/packager"
	"github.com/ovoloshchuk/kitpack/internal/version"
)

var (
	// configPath to the packaging settings YAML file.
	configPath string

	// rootCmd represents the base command for building the bundle script.
	rootCmd = &cobra.Command{
		Use:   "kitpack-packager",
		Short: "Build the self-contained sandbox kit installer bundle",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			startDir, err := os.Getwd()
			if err != nil {
				return err
			}

			options := &packager.Options{
				ConfigPath: configPath,
				StartDir:   startDir,
			}

			return packager.Run(ctx, options)
		},
	}
)

// Execute runs the kitpack-packager CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "",
		"path to configuration file (defaults to the built-in manifest)")
}

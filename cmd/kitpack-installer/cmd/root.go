package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ovoloshchuk/kitpack/internal/service/installer"
	"github.com/ovoloshchuk/kitpack/internal/version"
)

var (
	// forceUpgrade authorizes overwriting an existing target directory.
	forceUpgrade bool

	// rootCmd represents the base command for installing a bundle.
	rootCmd = &cobra.Command{
		Use:   "kitpack-installer [bundle]",
		Short: "Install a sandbox kit bundle into the enclosing git repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			// Setup graceful shutdown handling.
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			startDir, err := os.Getwd()
			if err != nil {
				return err
			}

			options := &installer.Options{
				BundlePath:   args[0],
				StartDir:     startDir,
				ForceUpgrade: forceUpgrade,
			}

			return installer.Run(ctx, options)
		},
	}
)

// Execute runs the kitpack-installer CLI and exits with non-zero status on error.
func Execute() {
	version.AttachCobraVersionCommand(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	// Setup command flags with consistent naming and descriptions.
	rootCmd.Flags().BoolVar(&forceUpgrade, "force-upgrade", false,
		"overwrite an existing target directory (requires it to be tracked by git)")
}

// Command texinfo inspects and converts image textures with the resource
// manager and texture backends.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/resource"
	_ "github.com/gogpu/resource/backend/native" // register the native backend
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "texinfo",
		Short: "Inspect and convert textures",
		Long: `texinfo loads image files as textures through the resource manager.

Textures are allocated on a storage backend: "native" (gogpu/wgpu HAL)
when available, "software" otherwise. Supported inputs are PNG, JPEG, GIF,
BMP, TIFF and WebP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				resource.SetLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
					Level: slog.LevelDebug,
				})))
			}
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log resource and backend activity to stderr")

	rootCmd.AddCommand(
		inspectCmd(),
		resizeCmd(),
		backendsCmd(),
		versionCmd(),
	)

	return rootCmd
}

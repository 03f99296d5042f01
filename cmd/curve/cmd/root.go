package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/xob0t/curve/pkg/config"
)

var (
	// Global flags
	verbose    bool
	configPath string

	// cfg is loaded before any subcommand runs.
	cfg config.Config
)

var rootCmd = &cobra.Command{
	Use:   "curve",
	Short: "Image editor core with a browser client",
	Long: `Curve edits one image at a time: pan, zoom and rotate it, round its
corners, crop and straighten it, stack image and text layers on top and run
AI operations (generate, enhance, upscale, remove background, expand,
generative fill) against a configured service or an offline mock.

Examples:
  curve serve --open                                  # Start the web editor
  curve export photo.jpg --op enhance --op upscale=2  # Batch-edit an image
  curve init                                          # Write curve.toml`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"config file (default "+config.DefaultPath+" when present)")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	// Only the server logs by default.
	if !verbose && cmd != serveCmd {
		log.SetOutput(io.Discard)
	}
	if cmd == initCmd {
		cfg = config.Default()
		return nil
	}
	var err error
	cfg, err = config.Load(configPath)
	return err
}

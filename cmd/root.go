// Package cmd implements the surfbot command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/linanwx/surfbot/config"
)

var configDirFlag string

var rootCmd = &cobra.Command{
	Use:   "surfbot",
	Short: "A terminal surface for streaming assistants",
	Long: `surfbot renders a streaming assistant conversation in the terminal:
incremental prose, live tool activity, and per-turn cost summaries,
drawn with differential updates so the transcript never flickers.

Run 'surfbot onboard' first to create a config, then 'surfbot chat'.`,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if configDirFlag != "" {
			config.SetConfigDir(configDirFlag)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDirFlag, "config-dir", "", "Override config directory")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

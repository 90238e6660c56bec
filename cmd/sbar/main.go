// Package main is the entry point for the sbar CLI.
//
// sbar can be used either as a library (SDK) or as a standalone status bar
// driven by a YAML or TOML configuration file. This CLI provides the
// standalone binary.
//
// Usage:
//
//	sbar                              # Run the bar with the default config
//	sbar run -c config.yaml           # Run the bar
//	sbar validate -c config.yaml      # Validate configuration
//	sbar default-config               # Print the default configuration
//	sbar trigger 46                   # Recompute items bound to signal 46
//	sbar version                      # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information - set by GoReleaser at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd runs the bar when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "sbar",
	Short: "A status bar for dwm and friends",
	Long: `sbar renders a one-line status bar from a list of items (battery,
volume, memory, clock, command output...) and publishes it to the X root
window name, a terminal or a file.

Items update on their own interval, counted in ticks, or when their signal
arrives:
  pkill -RTMIN+12 sbar    # recompute items with signal: 46

Quick start:
  1. sbar default-config > ~/.config/sbar/config.yaml
  2. Edit the list of items
  3. Run: sbar

Without a config file the built-in default configuration is used.`,
	SilenceUsage: true,
	RunE:         runBar,
}

// Execute runs the root command.
// This is the main entry point called from main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error, just exit with code 1
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Print the version, commit hash, and build date of this sbar binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "sbar %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to config file (default $XDG_CONFIG_HOME/sbar/config.yaml)")

	rootCmd.AddCommand(versionCmd)
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/jpalmerr/sbar/config"
)

// defaultConfigCmd prints the built-in configuration.
var defaultConfigCmd = &cobra.Command{
	Use:   "default-config",
	Short: "Print the default configuration",
	Long: `Print the configuration sbar uses when no config file is found.

Example:
  mkdir -p ~/.config/sbar
  sbar default-config > ~/.config/sbar/config.yaml`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := cmd.OutOrStdout().Write(config.DefaultYAML())
		return err
	},
}

func init() {
	rootCmd.AddCommand(defaultConfigCmd)
}

package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/sbar/config"
	"github.com/jpalmerr/sbar/internal/producer"
	"github.com/jpalmerr/sbar/internal/trigger"
)

// validateCmd validates a config file without starting the bar.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a config file",
	Long: `Validate an sbar configuration file without starting the bar.

This command parses the file, expands environment variables, and validates
all fields. Unlike sbar run, it does not fall back to the default
configuration when the file is invalid.

Exit codes:
  0 - Config is valid
  1 - Config is invalid (error details printed to stderr)

Example:
  sbar validate -c config.yaml
  sbar validate --config ~/.config/sbar/config.toml`,
	SilenceUsage: true,
	RunE:         runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		configFile = config.DefaultPath()
	}
	if configFile == "" {
		return fmt.Errorf("no config file given and no default location available")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	builtin := producer.Builtin()
	var unknown, signals []string
	for _, it := range cfg.List {
		if _, ok := builtin.Lookup(it.Name); !ok {
			unknown = append(unknown, it.Name)
		}
		if it.Signal != 0 {
			signals = append(signals, fmt.Sprintf("%d (%s)", it.Signal, trigger.Name(it.Signal)))
		}
	}

	sinkKind := cfg.Sink
	if sinkKind == "" {
		sinkKind = "x11"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config is valid!\n")

	tw := tabwriter.NewWriter(out, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "  Items:\t%d\n", len(cfg.List))
	fmt.Fprintf(tw, "  Tick:\t%s\n", cfg.Tick.Duration())
	fmt.Fprintf(tw, "  Sink:\t%s\n", sinkKind)
	if len(signals) > 0 {
		fmt.Fprintf(tw, "  Signals:\t%s\n", strings.Join(signals, ", "))
	}
	if cfg.HTTP != "" {
		fmt.Fprintf(tw, "  HTTP:\t%s\n", cfg.HTTP)
	}
	if len(unknown) > 0 {
		fmt.Fprintf(tw, "  Unknown items:\t%s (will stay empty)\n", strings.Join(unknown, ", "))
	}
	return tw.Flush()
}

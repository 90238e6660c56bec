package main

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/jpalmerr/sbar"
	"github.com/jpalmerr/sbar/config"
	"github.com/jpalmerr/sbar/internal/logging"
	"github.com/jpalmerr/sbar/internal/sink"
)

// runCmd starts the bar. It is also what sbar does without a subcommand.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the status bar",
	Long: `Run the status bar.

The bar will:
  - Load configuration from the given file, the default location, or the
    built-in default if neither can be loaded
  - Compute every item once, then keep them up to date
  - Publish the bar to the configured sink on every change

Signals:
  SIGINT, SIGTERM   stop the bar
  SIGHUP            ignored
  any item signal   recompute the items bound to it

Example:
  sbar run -c ~/.config/sbar/config.yaml
  sbar run --sink stdout
  sbar run --sink file --output /tmp/lemonbar.fifo`,
	SilenceUsage: true,
	RunE:         runBar,
}

func init() {
	rootCmd.AddCommand(runCmd)

	addRunFlags(rootCmd)
	addRunFlags(runCmd)
}

// addRunFlags registers the flags that override configuration values.
func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("sink", "", "display sink: x11, stdout or file (overrides config)")
	f.String("output", "", "X display for x11 or path for file (overrides config)")
	f.String("http", "", "status server address, e.g. 127.0.0.1:7777 (overrides config)")
	f.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	f.String("log-format", "", "log format: text or json (overrides config)")
	f.String("log-file", "", "write logs to a rotating file (overrides config)")
}

func runBar(cmd *cobra.Command, _ []string) error {
	configFile, _ := cmd.Flags().GetString("config")

	// config problems are reported before the configured logger exists
	boot := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg, source, err := config.LoadOrDefault(configFile, boot)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFlagOverrides(cmd, cfg)

	logger, closer, err := logging.New(cfg.Log.Logging(), os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = closer.Close() }()

	logger.Info("config loaded",
		"source", source,
		"items", len(cfg.List),
		"tick", cfg.Tick.Duration().String(),
	)

	display, err := sink.Open(cfg.Sink, cfg.Output)
	if err != nil {
		return fmt.Errorf("failed to open display: %w", err)
	}
	defer func() {
		if err := display.Close(); err != nil {
			logger.Warn("failed to close display", "error", err)
		}
	}()

	opts, err := config.BarOptions(cfg)
	if err != nil {
		return fmt.Errorf("failed to build bar: %w", err)
	}

	var ready sync.Once
	opts = append(opts,
		sbar.WithSink(display),
		sbar.WithLogger(logger),
		sbar.WithPublishCallback(func(sbar.Snapshot) {
			ready.Do(func() { go notify(logger, daemon.SdNotifyReady) })
		}),
	)

	b, err := sbar.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to create bar: %w", err)
	}

	// blocks until SIGINT/SIGTERM
	runErr := b.Run(cmd.Context())
	notify(logger, daemon.SdNotifyStopping)
	if runErr != nil {
		return fmt.Errorf("bar error: %w", runErr)
	}

	logger.Info("shutdown complete")
	return nil
}

// applyFlagOverrides copies explicitly set flags over the loaded config.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	overrides := map[string]*string{
		"sink":       &cfg.Sink,
		"output":     &cfg.Output,
		"http":       &cfg.HTTP,
		"log-level":  &cfg.Log.Level,
		"log-format": &cfg.Log.Format,
		"log-file":   &cfg.Log.File,
	}
	for name, dst := range overrides {
		if cmd.Flags().Changed(name) {
			*dst, _ = cmd.Flags().GetString(name)
		}
	}
}

// notify tells systemd about a state change. It is a no-op outside a
// notify-type unit.
func notify(logger *slog.Logger, state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logger.Warn("sd_notify failed", "state", state, "error", err)
		return
	}
	if sent {
		logger.Debug("sd_notify sent", "state", state)
	}
}

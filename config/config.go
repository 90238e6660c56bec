// Package config provides YAML and TOML configuration parsing for sbar.
//
// This package enables running sbar as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	list:
//	  - name: battery
//	    interval: 30
//	  - name: exec
//	    params: [pamixer, --get-volume-human]
//	    signal: 46
//	  - name: time
//	    params: ["%H:%M"]
//	    interval: 1
//	    fg: "#000000"
//	    bg: "#ffffff"
//
//	sep: "|"
//	prefix: " "
//	suffix: " "
//	status2d_color: true
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/sbar/internal/bar"
	"github.com/jpalmerr/sbar/internal/logging"
	"github.com/jpalmerr/sbar/internal/sink"
	"github.com/jpalmerr/sbar/internal/trigger"
)

// minTick is the shortest allowed tick. Shorter ticks mostly burn CPU
// re-running producers whose output cannot change that fast.
const minTick = 100 * time.Millisecond

// defaultTick is used when the configuration does not set one.
const defaultTick = time.Second

//go:embed default.yaml
var defaultYAML []byte

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Config is the root configuration structure for sbar.
//
// It maps directly to the YAML configuration file structure; TOML files use
// the same keys. Use [Load] or [Parse] to create a Config.
type Config struct {
	// List is the ordered list of bar items.
	List []ItemConfig `yaml:"list" toml:"list"`

	// Sep is placed between items.
	Sep string `yaml:"sep" toml:"sep"`

	// AutoSep inserts Sep between items. Defaults to true.
	AutoSep *bool `yaml:"auto_sep" toml:"auto_sep"`

	// Prefix and Suffix decorate items that do not set their own.
	Prefix string `yaml:"prefix" toml:"prefix"`
	Suffix string `yaml:"suffix" toml:"suffix"`

	// Status2DColor enables per-item fg/bg colors.
	Status2DColor bool `yaml:"status2d_color" toml:"status2d_color"`

	// Markup selects the color marker dialect: status2d (default), dzen2,
	// lemonbar or ansi.
	Markup string `yaml:"markup" toml:"markup"`

	// Sink is the display: x11 (default), stdout or file.
	Sink string `yaml:"sink" toml:"sink"`

	// Output is the X display for x11 or the path for file.
	Output string `yaml:"output" toml:"output"`

	// Tick is the duration of one tick. Defaults to 1s.
	Tick Duration `yaml:"tick" toml:"tick"`

	// HTTP is the listen address of the status server. Empty disables it.
	HTTP string `yaml:"http" toml:"http"`

	// Title is the status page title.
	Title string `yaml:"title" toml:"title"`

	// Log configures logging.
	Log LogConfig `yaml:"log" toml:"log"`
}

// ItemConfig defines one bar item.
type ItemConfig struct {
	// Name is the producer kind, e.g. battery, exec, time.
	Name string `yaml:"name" toml:"name"`

	// Params are passed to the producer.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Params []string `yaml:"params" toml:"params"`

	// Interval is the number of ticks between recomputations. 0 means the
	// item is computed at startup and on its signal only.
	Interval uint64 `yaml:"interval" toml:"interval"`

	// Signal is the number of the signal that recomputes the item. 0 means
	// none.
	Signal int `yaml:"signal" toml:"signal"`

	// Prefix and Suffix override the bar-wide ones when set.
	Prefix string `yaml:"prefix" toml:"prefix"`
	Suffix string `yaml:"suffix" toml:"suffix"`

	// FG and BG are "#RRGGBB" colors.
	FG string `yaml:"fg" toml:"fg"`
	BG string `yaml:"bg" toml:"bg"`

	// Watch lists files whose changes recompute the item.
	Watch []string `yaml:"watch" toml:"watch"`

	// Timeout bounds one producer run. 0 means no limit.
	Timeout Duration `yaml:"timeout" toml:"timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level      string `yaml:"level" toml:"level"`
	Format     string `yaml:"format" toml:"format"`
	File       string `yaml:"file" toml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" toml:"max_age_days"`
}

// Logging converts the section to the logger configuration.
func (l LogConfig) Logging() logging.Config {
	return logging.Config{
		Level:      l.Level,
		Format:     l.Format,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
	}
}

// Duration wraps time.Duration for YAML and TOML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler, used by TOML.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// AutoSeparator reports whether the separator is inserted between items.
func (c *Config) AutoSeparator() bool {
	return c.AutoSep == nil || *c.AutoSep
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// DefaultPath returns $XDG_CONFIG_HOME/sbar/config.yaml, falling back to
// $HOME/.config/sbar/config.yaml. It returns "" if neither is set.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "sbar", "config.yaml")
}

// DefaultYAML returns the embedded default configuration file.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultYAML...)
}

// Default returns the parsed embedded default configuration.
func Default() (*Config, error) {
	cfg, err := Parse(defaultYAML)
	if err != nil {
		return nil, fmt.Errorf("default config: %w", err)
	}
	return cfg, nil
}

// Load reads and parses a configuration file. Files ending in .toml are
// parsed as TOML, everything else as YAML.
//
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return ParseTOML(data)
	}
	return Parse(data)
}

// LoadOrDefault loads the configuration at path, or at [DefaultPath] when
// path is empty. A missing, unreadable or invalid file is not fatal: the
// problem is logged and the embedded default is returned instead.
//
// The returned string names the source actually used: a file path or
// "default".
func LoadOrDefault(path string, logger *slog.Logger) (*Config, string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	if path != "" {
		cfg, err := Load(path)
		switch {
		case err == nil:
			return cfg, path, nil
		case !explicit && errors.Is(err, os.ErrNotExist):
			logger.Debug("no config file, using default", "path", path)
		default:
			logger.Warn("failed to load config, using default", "path", path, "error", err)
		}
	}

	cfg, err := Default()
	if err != nil {
		return nil, "", err
	}
	return cfg, "default", nil
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in item params, prefixes, suffixes
// and watch paths. Defaults are applied for Tick (1s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return finish(&cfg)
}

// ParseTOML parses TOML configuration data. Keys are the same as for YAML.
func ParseTOML(data []byte) (*Config, error) {
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	return finish(&cfg)
}

func finish(cfg *Config) (*Config, error) {
	if cfg.Tick == 0 {
		cfg.Tick = Duration(defaultTick)
	}
	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if len(c.List) == 0 {
		return errors.New("list: at least one item is required")
	}

	if c.Tick.Duration() < minTick {
		return fmt.Errorf("tick must be at least %s, got %s", minTick, c.Tick.Duration())
	}

	if c.Markup != "" && !bar.Markup(c.Markup).Valid() {
		return fmt.Errorf("markup must be one of %v, got %q", bar.Markups, c.Markup)
	}

	switch c.Sink {
	case "", sink.KindX11, sink.KindStdout:
	case sink.KindFile:
		if c.Output == "" {
			return errors.New("sink file requires output")
		}
	default:
		return fmt.Errorf("sink must be %s, %s or %s, got %q", sink.KindX11, sink.KindStdout, sink.KindFile, c.Sink)
	}

	if c.HTTP != "" {
		if _, _, err := net.SplitHostPort(c.HTTP); err != nil {
			return fmt.Errorf("http: invalid address %q: %w", c.HTTP, err)
		}
	}

	var err error
	if c.Prefix, err = expandEnvVars(c.Prefix); err != nil {
		return fmt.Errorf("prefix: %w", err)
	}
	if c.Suffix, err = expandEnvVars(c.Suffix); err != nil {
		return fmt.Errorf("suffix: %w", err)
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("log.format must be %s or %s, got %q", logging.FormatText, logging.FormatJSON, c.Log.Format)
	}

	for i := range c.List {
		if err := c.List[i].expandAndValidate(i); err != nil {
			return err
		}
	}

	return nil
}

func (it *ItemConfig) expandAndValidate(i int) error {
	if it.Name == "" {
		return fmt.Errorf("list[%d]: name is required", i)
	}
	where := fmt.Sprintf("list[%d] (%s)", i, it.Name)

	for j, p := range it.Params {
		expanded, err := expandEnvVars(p)
		if err != nil {
			return fmt.Errorf("%s: params[%d]: %w", where, j, err)
		}
		it.Params[j] = expanded
	}

	for j, p := range it.Watch {
		if p == "" {
			return fmt.Errorf("%s: watch[%d]: path is empty", where, j)
		}
		expanded, err := expandEnvVars(p)
		if err != nil {
			return fmt.Errorf("%s: watch[%d]: %w", where, j, err)
		}
		it.Watch[j] = expanded
	}

	var err error
	if it.Prefix, err = expandEnvVars(it.Prefix); err != nil {
		return fmt.Errorf("%s: prefix: %w", where, err)
	}
	if it.Suffix, err = expandEnvVars(it.Suffix); err != nil {
		return fmt.Errorf("%s: suffix: %w", where, err)
	}

	if err := trigger.Validate(it.Signal); err != nil {
		return fmt.Errorf("%s: signal: %w", where, err)
	}

	if it.FG != "" && !colorPattern.MatchString(it.FG) {
		return fmt.Errorf("%s: fg must be in #RRGGBB form, got %q", where, it.FG)
	}
	if it.BG != "" && !colorPattern.MatchString(it.BG) {
		return fmt.Errorf("%s: bg must be in #RRGGBB form, got %q", where, it.BG)
	}

	if it.Timeout < 0 {
		return fmt.Errorf("%s: timeout cannot be negative, got %s", where, it.Timeout.Duration())
	}

	return nil
}

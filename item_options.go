package sbar

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jpalmerr/sbar/internal/trigger"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// itemConfig holds mutable state during item construction.
type itemConfig struct {
	params   []string
	interval uint64
	trigger  int
	prefix   string
	suffix   string
	fg       string
	bg       string
	watch    []string
	timeout  time.Duration
}

// ItemOption is a function that configures an [Item] during construction.
//
// Options return an error if validation fails.
type ItemOption func(*itemConfig) error

// WithParams sets the producer parameters, passed verbatim.
//
// Example:
//
//	vol, err := sbar.NewItem("exec", sbar.WithParams("pamixer", "--get-volume-human"))
func WithParams(params ...string) ItemOption {
	return func(cfg *itemConfig) error {
		cfg.params = append([]string(nil), params...)
		return nil
	}
}

// WithInterval recomputes the item every n ticks. Zero, the default, means
// the item is only computed at startup and on its trigger.
func WithInterval(n uint64) ItemOption {
	return func(cfg *itemConfig) error {
		cfg.interval = n
		return nil
	}
}

// WithTrigger binds the item to an external trigger id, which is the
// number of a signal that recomputes it (e.g. `pkill -RTMIN+12 sbar` for
// id 46).
//
// Returns an error for the lifecycle signals SIGHUP, SIGINT and SIGTERM,
// for signals that cannot be caught, and for ids outside 0..64.
func WithTrigger(id int) ItemOption {
	return func(cfg *itemConfig) error {
		if err := trigger.Validate(id); err != nil {
			return fmt.Errorf("invalid trigger: %w", err)
		}
		cfg.trigger = id
		return nil
	}
}

// WithPrefix sets text placed before the item, overriding the bar-wide
// prefix.
func WithPrefix(prefix string) ItemOption {
	return func(cfg *itemConfig) error {
		cfg.prefix = prefix
		return nil
	}
}

// WithSuffix sets text placed after the item, overriding the bar-wide
// suffix.
func WithSuffix(suffix string) ItemOption {
	return func(cfg *itemConfig) error {
		cfg.suffix = suffix
		return nil
	}
}

// WithColors sets the foreground and background colors as "#RRGGBB".
// Either may be empty. Colors are only rendered when the bar has a color
// mode, see [WithColorMode].
//
// Returns an error if a non-empty color is not in "#RRGGBB" form.
func WithColors(fg, bg string) ItemOption {
	return func(cfg *itemConfig) error {
		for _, c := range []string{fg, bg} {
			if c != "" && !colorPattern.MatchString(c) {
				return fmt.Errorf("color %q must be in #RRGGBB form", c)
			}
		}
		cfg.fg = fg
		cfg.bg = bg
		return nil
	}
}

// WithWatch recomputes the item whenever one of the given files changes.
//
// Returns an error if a path is empty.
func WithWatch(paths ...string) ItemOption {
	return func(cfg *itemConfig) error {
		for _, p := range paths {
			if p == "" {
				return errors.New("watch path cannot be empty")
			}
		}
		cfg.watch = append(cfg.watch, paths...)
		return nil
	}
}

// WithTimeout bounds a single run of the item's producer. A producer that
// exceeds it leaves the item without a value for that pass. By default
// there is no deadline.
//
// Returns an error if the duration is zero or negative.
func WithTimeout(d time.Duration) ItemOption {
	return func(cfg *itemConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

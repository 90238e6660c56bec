package sbar

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// barConfig holds mutable state during Bar construction.
type barConfig struct {
	items         []Item
	separator     string
	autoSeparator bool
	prefix        string
	suffix        string
	colorMode     bool
	markup        Markup
	tickPeriod    time.Duration
	sink          Sink
	logger        *slog.Logger
	producers     map[string]Producer
	callbacks     []func(Snapshot)
	httpAddr      string
	title         string
	signals       bool
	registry      *prometheus.Registry
}

// Option is a function that configures a [Bar] instance during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*barConfig) error

// WithItem appends a single [Item] to the bar.
//
// Can be called multiple times. Items are displayed in the order they are
// added. At least one item must be configured for [New] to succeed.
//
// Example:
//
//	b, err := sbar.New(
//	    sbar.WithItem(battery),
//	    sbar.WithItem(clock),
//	    sbar.WithSink(sbar.WriterSink(os.Stdout)),
//	)
func WithItem(it Item) Option {
	return func(cfg *barConfig) error {
		cfg.items = append(cfg.items, it)
		return nil
	}
}

// WithItems appends several items. Equivalent to calling [WithItem] for
// each of them.
func WithItems(items ...Item) Option {
	return func(cfg *barConfig) error {
		cfg.items = append(cfg.items, items...)
		return nil
	}
}

// WithSeparator sets the text placed between items. Defaults to " | ".
func WithSeparator(sep string) Option {
	return func(cfg *barConfig) error {
		cfg.separator = sep
		return nil
	}
}

// WithAutoSeparator controls whether the separator is inserted between
// items. When disabled, item texts are concatenated as they are and the
// item prefixes and suffixes are expected to do the spacing. Enabled by
// default.
func WithAutoSeparator(enabled bool) Option {
	return func(cfg *barConfig) error {
		cfg.autoSeparator = enabled
		return nil
	}
}

// WithDecoration sets the bar-wide prefix and suffix used by items that do
// not set their own.
func WithDecoration(prefix, suffix string) Option {
	return func(cfg *barConfig) error {
		cfg.prefix = prefix
		cfg.suffix = suffix
		return nil
	}
}

// WithColorMode enables per-item colors rendered with the given markup
// dialect.
//
// Example:
//
//	b, err := sbar.New(
//	    sbar.WithItems(items...),
//	    sbar.WithColorMode(sbar.MarkupLemonbar),
//	    sbar.WithSink(sink),
//	)
//
// Returns an error if the markup is unknown.
func WithColorMode(m Markup) Option {
	return func(cfg *barConfig) error {
		if !m.Valid() {
			return fmt.Errorf("unknown markup %q", m)
		}
		cfg.colorMode = true
		cfg.markup = m
		return nil
	}
}

// WithTickPeriod sets the duration of one tick. Item intervals are counted
// in ticks. Defaults to one second.
//
// Returns an error if the duration is zero or negative.
func WithTickPeriod(d time.Duration) Option {
	return func(cfg *barConfig) error {
		if d <= 0 {
			return errors.New("tick period must be positive")
		}
		cfg.tickPeriod = d
		return nil
	}
}

// WithSink sets the display that receives the composed bar. Required.
//
// The bar never closes the sink; the caller owns it.
func WithSink(s Sink) Option {
	return func(cfg *barConfig) error {
		if s == nil {
			return errors.New("sink cannot be nil")
		}
		cfg.sink = s
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Bar instance.
//
// If not specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *barConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithProducer registers a custom producer for kind, replacing a built-in
// one of the same name.
//
// Example:
//
//	b, err := sbar.New(
//	    sbar.WithItem(sbar.MustItem("weather", sbar.WithInterval(600))),
//	    sbar.WithProducer("weather", fetchWeather),
//	    sbar.WithSink(sink),
//	)
//
// Returns an error if kind is empty or fn is nil.
func WithProducer(kind string, fn Producer) Option {
	return func(cfg *barConfig) error {
		if kind == "" {
			return errors.New("producer kind cannot be empty")
		}
		if fn == nil {
			return fmt.Errorf("producer %q: function cannot be nil", kind)
		}
		if cfg.producers == nil {
			cfg.producers = make(map[string]Producer)
		}
		cfg.producers[kind] = fn
		return nil
	}
}

// WithPublishCallback registers a function to be called after every
// publish.
//
// The callback receives a [Snapshot] describing the published bar.
// Multiple callbacks may be registered; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. They run while the bar state is
// locked, so a slow callback delays every following update. Panics within
// callbacks are recovered and logged.
//
// Nil callbacks are silently ignored.
func WithPublishCallback(cb func(Snapshot)) Option {
	return func(cfg *barConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.callbacks = append(cfg.callbacks, cb)
		return nil
	}
}

// WithHTTPAddr enables the local status server on addr, e.g.
// "127.0.0.1:7777". It serves the status page, a JSON snapshot, a
// Server-Sent Events stream, a trigger endpoint and Prometheus metrics.
//
// Returns an error if addr is not a host:port pair.
func WithHTTPAddr(addr string) Option {
	return func(cfg *barConfig) error {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("invalid http address %q: %w", addr, err)
		}
		cfg.httpAddr = addr
		return nil
	}
}

// WithTitle sets the status page title. Defaults to "sbar".
func WithTitle(title string) Option {
	return func(cfg *barConfig) error {
		cfg.title = title
		return nil
	}
}

// WithSignalHandling controls whether [Bar.Run] subscribes to OS signals.
// When enabled (the default) item trigger signals recompute their items,
// SIGINT and SIGTERM stop the bar and SIGHUP is ignored.
//
// Disable it when embedding the bar in a program that owns its signals;
// triggers can still be delivered with [Bar.Trigger].
func WithSignalHandling(enabled bool) Option {
	return func(cfg *barConfig) error {
		cfg.signals = enabled
		return nil
	}
}

// WithRegistry sets the Prometheus registry the bar's metrics are
// registered with and served from. Defaults to a private registry.
//
// Returns an error if the registry is nil.
func WithRegistry(r *prometheus.Registry) Option {
	return func(cfg *barConfig) error {
		if r == nil {
			return errors.New("registry cannot be nil")
		}
		cfg.registry = r
		return nil
	}
}

// Package sbar provides a status bar engine for X11 window managers and
// terminal or pipe based bars.
//
// A bar is an ordered list of items. Each item names a producer kind and
// carries its parameters, a refresh interval in ticks and an optional
// real-time signal. On every tick, signal or watched file change the due
// items are recomputed, the bar text is rebuilt and published to a sink.
//
// # Quick Start
//
// Create items and run the bar until the context is cancelled:
//
//	clock, _ := sbar.NewItem("time", sbar.WithParams("%H:%M"), sbar.WithInterval(1))
//	volume, _ := sbar.NewItem("exec",
//	    sbar.WithParams("pamixer", "--get-volume-human"),
//	    sbar.WithTrigger(46),
//	)
//
//	b, err := sbar.New(
//	    sbar.WithItems(volume, clock),
//	    sbar.WithSink(sbar.WriterSink(os.Stdout)),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	b.Run(ctx) // blocks until ctx is cancelled or SIGINT/SIGTERM
//
// Sending SIGRTMIN+12 (signal 46) to the process recomputes the volume item.
//
// # Configuration
//
// The bar is configured with functional options:
//
//	b, err := sbar.New(
//	    sbar.WithItems(items...),
//	    sbar.WithSeparator(" | "),
//	    sbar.WithDecoration(" ", " "),
//	    sbar.WithColorMode(sbar.MarkupLemonbar),
//	    sbar.WithTickPeriod(500 * time.Millisecond),
//	    sbar.WithHTTPAddr("127.0.0.1:7777"),
//	)
//
// The config package builds the same options from a YAML or TOML file.
//
// # Producers
//
// Built-in kinds are battery, cpu, disk, exec, file, http, load, memory,
// temp, time and uptime. An item with an unknown kind stays empty. Custom
// kinds are added with [WithProducer]:
//
//	sbar.WithProducer("weather", func(ctx context.Context, params []string) (string, error) {
//	    return fetchWeather(ctx, params...)
//	})
//
// A producer error leaves the item's previous text in place.
//
// # Architecture
//
// sbar consists of several internal packages (under internal/):
//
//   - internal/bar: item records, text assembly and color markup
//   - internal/scheduler: tick, signal and refresh passes over the records
//   - internal/producer: the kind registry and built-in producers
//   - internal/trigger: real-time signal validation and delivery
//   - internal/watch: file watches that force recomputation
//   - internal/sink: X11 root window, terminal and file outputs
//   - internal/store: the latest snapshot with pub/sub for live views
//   - internal/server: optional status API, SSE stream and metrics
//   - dashboard: embedded page showing the live bar
//
// The internal packages are not part of the public API and may change
// without notice.
package sbar

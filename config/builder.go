package config

import (
	"fmt"

	"github.com/jpalmerr/sbar"
)

// BuildItems converts the parsed item list into SDK Item objects.
func BuildItems(cfg *Config) ([]sbar.Item, error) {
	items := make([]sbar.Item, 0, len(cfg.List))
	for i, ic := range cfg.List {
		it, err := buildItem(ic)
		if err != nil {
			return nil, fmt.Errorf("list[%d] (%s): %w", i, ic.Name, err)
		}
		items = append(items, it)
	}
	return items, nil
}

// buildItem converts a single ItemConfig to an SDK Item.
func buildItem(ic ItemConfig) (sbar.Item, error) {
	var opts []sbar.ItemOption

	if len(ic.Params) > 0 {
		opts = append(opts, sbar.WithParams(ic.Params...))
	}
	if ic.Interval != 0 {
		opts = append(opts, sbar.WithInterval(ic.Interval))
	}
	if ic.Signal != 0 {
		opts = append(opts, sbar.WithTrigger(ic.Signal))
	}
	if ic.Prefix != "" {
		opts = append(opts, sbar.WithPrefix(ic.Prefix))
	}
	if ic.Suffix != "" {
		opts = append(opts, sbar.WithSuffix(ic.Suffix))
	}
	if ic.FG != "" || ic.BG != "" {
		opts = append(opts, sbar.WithColors(ic.FG, ic.BG))
	}
	if len(ic.Watch) > 0 {
		opts = append(opts, sbar.WithWatch(ic.Watch...))
	}
	if ic.Timeout != 0 {
		opts = append(opts, sbar.WithTimeout(ic.Timeout.Duration()))
	}

	return sbar.NewItem(ic.Name, opts...)
}

// BarOptions converts the configuration into options for [sbar.New].
//
// The sink and logger are not part of the result; the caller acquires them
// and adds [sbar.WithSink] and [sbar.WithLogger].
func BarOptions(cfg *Config) ([]sbar.Option, error) {
	items, err := BuildItems(cfg)
	if err != nil {
		return nil, err
	}

	opts := []sbar.Option{
		sbar.WithItems(items...),
		sbar.WithSeparator(cfg.Sep),
		sbar.WithAutoSeparator(cfg.AutoSeparator()),
		sbar.WithDecoration(cfg.Prefix, cfg.Suffix),
		sbar.WithTickPeriod(cfg.Tick.Duration()),
	}

	if cfg.Status2DColor {
		markup := sbar.Markup(cfg.Markup)
		if markup == "" {
			markup = sbar.MarkupStatus2D
		}
		opts = append(opts, sbar.WithColorMode(markup))
	}
	if cfg.HTTP != "" {
		opts = append(opts, sbar.WithHTTPAddr(cfg.HTTP))
	}
	if cfg.Title != "" {
		opts = append(opts, sbar.WithTitle(cfg.Title))
	}

	return opts, nil
}

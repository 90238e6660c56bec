package sbar

import (
	"errors"
	"time"
)

// Item is one configured segment of the bar.
//
// Item is immutable after creation via [NewItem]. All fields are private
// with getter methods that return copies of mutable data (slices), so an
// item cannot be modified after construction.
//
// Items are configured using the functional options pattern with
// [ItemOption] functions such as [WithParams], [WithInterval],
// [WithTrigger], [WithPrefix], [WithSuffix], [WithColors], [WithWatch] and
// [WithTimeout].
type Item struct {
	kind     string
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

// Kind returns the producer kind that computes this item.
func (i Item) Kind() string {
	return i.kind
}

// Params returns a copy of the producer parameters.
func (i Item) Params() []string {
	return copyStrings(i.params)
}

// Interval returns the number of ticks between automatic recomputations.
// Zero means the item is computed once at startup and then only on its
// trigger.
func (i Item) Interval() uint64 {
	return i.interval
}

// Trigger returns the external trigger id (a signal number). Zero means
// none.
func (i Item) Trigger() int {
	return i.trigger
}

// Prefix returns the item prefix. Empty means the bar-wide prefix is used.
func (i Item) Prefix() string {
	return i.prefix
}

// Suffix returns the item suffix. Empty means the bar-wide suffix is used.
func (i Item) Suffix() string {
	return i.suffix
}

// Colors returns the foreground and background colors as "#RRGGBB".
// Empty values are unset.
func (i Item) Colors() (fg, bg string) {
	return i.fg, i.bg
}

// Watch returns a copy of the files whose changes recompute the item.
func (i Item) Watch() []string {
	return copyStrings(i.watch)
}

// Timeout returns the producer deadline. Zero means no deadline.
func (i Item) Timeout() time.Duration {
	return i.timeout
}

// NewItem creates an [Item] computed by the producer registered for kind.
//
// Kinds are resolved when the bar runs, so an item may name a kind that is
// registered later with [WithProducer]. An item whose kind is never
// registered renders as empty and logs a diagnostic.
//
// Returns an error if kind is empty or an option is invalid.
//
// Example:
//
//	clock, err := sbar.NewItem("time",
//	    sbar.WithParams("%H:%M"),
//	    sbar.WithInterval(1),
//	)
func NewItem(kind string, opts ...ItemOption) (Item, error) {
	if kind == "" {
		return Item{}, errors.New("item kind cannot be empty")
	}

	cfg := &itemConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Item{}, err
		}
	}

	return Item{
		kind:     kind,
		params:   cfg.params,
		interval: cfg.interval,
		trigger:  cfg.trigger,
		prefix:   cfg.prefix,
		suffix:   cfg.suffix,
		fg:       cfg.fg,
		bg:       cfg.bg,
		watch:    cfg.watch,
		timeout:  cfg.timeout,
	}, nil
}

// MustItem is like [NewItem] but panics on error. It is intended for
// package-level declarations and tests.
func MustItem(kind string, opts ...ItemOption) Item {
	it, err := NewItem(kind, opts...)
	if err != nil {
		panic(err)
	}
	return it
}

// copyStrings returns a copy of the slice, or nil if input is nil.
func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}

package sbar

import (
	"context"
	"io"
	"time"

	"github.com/jpalmerr/sbar/internal/bar"
	"github.com/jpalmerr/sbar/internal/scheduler"
	"github.com/jpalmerr/sbar/internal/sink"
	"github.com/jpalmerr/sbar/internal/store"
)

// Producer computes the text of one item from its parameters.
//
// Producers may block on I/O and must return promptly once ctx is done.
// A producer that has nothing to show returns an error; the item is then
// left out of the bar until it produces a value again.
//
// # Panic Safety
//
// Producers are called within a panic recovery boundary. A panicking
// producer leaves its item without a value and logs the stack trace with a
// correlation ID. It cannot crash the bar.
type Producer func(ctx context.Context, params []string) (string, error)

// Markup is a color marker dialect understood by a status bar program.
type Markup = bar.Markup

const (
	// MarkupStatus2D targets dwm with the status2d patch.
	MarkupStatus2D = bar.MarkupStatus2D

	// MarkupDzen2 targets dzen2.
	MarkupDzen2 = bar.MarkupDzen2

	// MarkupLemonbar targets lemonbar.
	MarkupLemonbar = bar.MarkupLemonbar

	// MarkupANSI emits true-color terminal escape sequences.
	MarkupANSI = bar.MarkupANSI
)

// Sink is the display that receives the composed bar text.
//
// Publish is called with the full text after every pass that recomputed at
// least one item. Errors are logged and counted; they never stop the bar.
type Sink interface {
	Publish(ctx context.Context, text string) error
}

// WriterSink returns a [Sink] writing one line per publish to w. When w is
// a terminal the line is rewritten in place.
func WriterSink(w io.Writer) Sink {
	if f, ok := w.(interface{ Fd() uintptr }); ok && sink.IsTerminal(f.Fd()) {
		return sink.NewWriter(w, true)
	}
	return sink.NewWriter(w, false)
}

// ItemSnapshot is the state of one item at publish time.
type ItemSnapshot struct {
	// Kind is the producer kind of the item.
	Kind string

	// Text is the rendered text including decoration. Empty when Present is
	// false.
	Text string

	// Present reports whether the item currently has a value.
	Present bool
}

// Snapshot describes one publish of the bar.
type Snapshot struct {
	// Text is the composed bar string handed to the sink.
	Text string

	// Items lists every item in display order, including absent ones.
	Items []ItemSnapshot

	// Tick is the tick counter value of the pass.
	Tick uint64

	// Reason is what caused the pass: "initial", "tick", "trigger" or "watch".
	Reason string

	// TriggerID is the trigger id of a trigger pass, 0 otherwise.
	TriggerID int

	// PublishedAt is when the text was handed to the sink.
	PublishedAt time.Time

	// Error is the sink error, nil if the publish succeeded.
	Error error
}

// schedulerSnapshotToPublic converts a scheduler snapshot to the public API
// type. The items slice is copied.
func schedulerSnapshotToPublic(s scheduler.Snapshot) Snapshot {
	items := make([]ItemSnapshot, len(s.Items))
	for i, it := range s.Items {
		items[i] = ItemSnapshot{Kind: it.Kind, Text: it.Text, Present: it.Present}
	}

	return Snapshot{
		Text:        s.Text,
		Items:       items,
		Tick:        s.Tick,
		Reason:      string(s.Reason),
		TriggerID:   s.TriggerID,
		PublishedAt: s.PublishedAt,
		Error:       s.Err,
	}
}

// schedulerSnapshotToStore converts a scheduler snapshot to a store
// snapshot.
func schedulerSnapshotToStore(s scheduler.Snapshot) store.Snapshot {
	items := make([]store.Item, len(s.Items))
	for i, it := range s.Items {
		items[i] = store.Item{Kind: it.Kind}
		if it.Present {
			text := it.Text
			items[i].Text = &text
		}
	}

	var errStr *string
	if s.Err != nil {
		e := s.Err.Error()
		errStr = &e
	}

	return store.Snapshot{
		Text:        s.Text,
		Items:       items,
		Tick:        s.Tick,
		Reason:      string(s.Reason),
		TriggerID:   s.TriggerID,
		PublishedAt: s.PublishedAt,
		Error:       errStr,
	}
}

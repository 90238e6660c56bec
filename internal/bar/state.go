package bar

import (
	"strings"
	"time"
)

// Record is one configured item of the bar.
//
// Everything except the rendered text is fixed at startup. The text is
// written only by the scheduler while it holds exclusive access to the
// owning [State].
type Record struct {
	// Kind selects the producer that computes this record.
	Kind string

	// Params are passed verbatim to the producer.
	Params []string

	// Interval is the number of ticks between automatic recomputations.
	// Zero means the record is only computed on the initial pass and on
	// external triggers.
	Interval uint64

	// TriggerID is the external trigger that forces recomputation.
	// Zero means no trigger.
	TriggerID int

	// Prefix and Suffix decorate the produced text. Empty values fall back
	// to the bar-wide defaults.
	Prefix string
	Suffix string

	// FG and BG are optional "#RRGGBB" colors. Empty means unset.
	FG string
	BG string

	// Watch lists files whose changes force recomputation.
	Watch []string

	// Timeout bounds a single producer run. Zero means no deadline.
	Timeout time.Duration

	text    string
	present bool
}

// Text returns the last rendered text and whether one is present.
func (r *Record) Text() (string, bool) {
	return r.text, r.present
}

// SetText stores a rendered text.
func (r *Record) SetText(s string) {
	r.text = s
	r.present = true
}

// Clear marks the record as having no value.
func (r *Record) Clear() {
	r.text = ""
	r.present = false
}

// HasColor reports whether the record overrides foreground or background.
func (r *Record) HasColor() bool {
	return r.FG != "" || r.BG != ""
}

// State is the complete mutable bar: records in display order plus global
// settings and the tick counter.
type State struct {
	Items []Record

	Separator     string
	AutoSeparator bool

	Prefix string
	Suffix string

	ColorMode bool
	Markup    Markup

	Tick uint64
}

// Decorate renders produced text for r using the per-item prefix and
// suffix (falling back to the bar-wide ones) and, in color mode, the
// record's color markers.
func (s *State) Decorate(r *Record, text string) string {
	prefix := r.Prefix
	if prefix == "" {
		prefix = s.Prefix
	}
	suffix := r.Suffix
	if suffix == "" {
		suffix = s.Suffix
	}

	if !s.ColorMode {
		return prefix + text + suffix
	}

	m := s.Markup
	if m == "" {
		m = MarkupStatus2D
	}
	out := prefix + m.Escape(text) + suffix
	if r.HasColor() {
		out = m.Wrap(r.FG, r.BG, out)
	}
	return out
}

// Compose joins the present record texts in list order.
//
// Records without a value are skipped entirely, so no separator is emitted
// for them. Compose does not modify s.
func Compose(s *State) string {
	parts := make([]string, 0, len(s.Items))
	for i := range s.Items {
		if text, ok := s.Items[i].Text(); ok {
			parts = append(parts, text)
		}
	}

	if s.AutoSeparator {
		return strings.Join(parts, s.Separator)
	}
	return strings.Join(parts, "")
}

// TriggerIDs returns the distinct non-zero trigger ids in list order.
func (s *State) TriggerIDs() []int {
	seen := make(map[int]struct{}, len(s.Items))
	ids := make([]int, 0, len(s.Items))
	for _, r := range s.Items {
		if r.TriggerID == 0 {
			continue
		}
		if _, dup := seen[r.TriggerID]; dup {
			continue
		}
		seen[r.TriggerID] = struct{}{}
		ids = append(ids, r.TriggerID)
	}
	return ids
}

// WatchPaths returns the watched files of every record, by record index.
func (s *State) WatchPaths() [][]string {
	paths := make([][]string, len(s.Items))
	for i, r := range s.Items {
		paths[i] = append([]string(nil), r.Watch...)
	}
	return paths
}

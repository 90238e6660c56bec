// Package bar holds the mutable bar state and the composer.
//
// This package is internal to sbar. It models the ordered list of item
// records, the bar-wide decoration settings and the tick counter, and it
// provides the pure functions that turn that state into one output string:
//
//   - [Record]: one configured item and its last rendered text
//   - [State]: the ordered records plus separator, decoration and color settings
//   - [Compose]: joins the present record texts into the bar string
//   - [Markup]: color marker formats understood by common status bars
//
// State carries no synchronization of its own. The scheduler owns it and
// serializes every mutation behind a single lock.
package bar

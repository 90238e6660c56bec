// Package scheduler drives recomputation of bar items.
//
// A [Scheduler] owns the bar state behind a single mutex. Every update
// path (the periodic tick, external triggers and file watch refreshes)
// acquires that mutex for the whole pass: select records, run their
// producers in list order, compose, publish. Passes are therefore totally
// ordered and a trigger arriving mid-tick waits for the tick to finish.
//
// The tick rule is:
//
//   - tick 0 recomputes every record (the initial pass)
//   - later ticks recompute records with interval != 0 and tick % interval == 0
//
// A pass publishes only when at least one record was recomputed, and never
// after its context has been cancelled.
package scheduler

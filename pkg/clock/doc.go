// Package clock provides the time source used by the simulation packages.
//
// # Clocks
//
// Every component that timestamps events, waits with a timeout, or delays
// an operation reads time through a Clock. Two implementations exist:
//
//   - Real: the wall clock, backed by time.AfterFunc and tickers.
//   - Virtual: a deterministic clock that only moves when Advance is called.
//
// # Virtual Time
//
// The virtual clock keeps a list of scheduled timers. Advance moves the
// clock forward and fires every timer whose deadline is at or before the
// new time, in deadline order. Timers with equal deadlines fire in the
// order they were scheduled.
//
// Advance drains iteratively: a callback that schedules another timer due
// inside the same window (including periodic timers re-arming themselves)
// fires during the same call. Before each callback runs, Now reports that
// timer's deadline, so timestamps taken inside callbacks are exact.
//
// Callbacks run on the goroutine calling Advance, outside the clock lock.
package clock

// Package scheduler triggers batch runs of the quote board.
//
// The Scheduler:
//   - Runs one batch immediately on start
//   - Runs again on a fixed interval (default 5m) until stopped
//   - Accepts manual triggers, ignored while a run is in flight
//   - Never lets two runs overlap
package scheduler

// Package wave runs a batch of independent solver jobs in concurrency-
// bounded waves.
//
// One orchestrating goroutine (the Scheduler) launches up to width jobs per
// wave and barrier-waits for the whole wave before advancing. Each job is an
// isolated subprocess with its own slot lease and log file; failures are
// always folded into an Outcome and never cross the wave boundary as errors.
package wave

import (
	"errors"
	"time"
)

// ErrDirectoryMissing reports a case directory that does not exist. It is a
// per-job failure: sibling jobs and later waves proceed unaffected.
var ErrDirectoryMissing = errors.New("case directory missing")

// Status classifies how a job ended.
type Status string

const (
	// StatusSucceeded is a solver exit code of zero.
	StatusSucceeded Status = "succeeded"

	// StatusSolverFailed is a nonzero solver exit code, recorded verbatim.
	// The engine never reinterprets what the code means.
	StatusSolverFailed Status = "solver-failed"

	// StatusErrored is an engine-side failure before or while launching the
	// solver: missing directory, unresolvable input, spawn failure.
	StatusErrored Status = "errored"

	// StatusNotRun marks items whose wave never started (cancellation
	// between waves). They are reported so every item is accounted for.
	StatusNotRun Status = "not-run"
)

// Outcome is the result of one job. Produced exactly once per work item and
// immutable afterwards.
type Outcome struct {
	// Case is the work item's identifier.
	Case string

	Status Status

	// ExitCode is the solver process exit code, zero unless the process ran.
	ExitCode int

	// Err carries the engine-side failure detail for StatusErrored.
	Err error

	// LogPath locates the job's dedicated log file, empty if the job never
	// got as far as opening one.
	LogPath string

	Started  time.Time
	Finished time.Time
}

// Failed reports whether the outcome counts against the batch.
func (o Outcome) Failed() bool {
	return o.Status == StatusSolverFailed || o.Status == StatusErrored
}

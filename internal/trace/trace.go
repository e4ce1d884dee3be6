// Package trace records the logical events of a batch run as JSON lines.
//
// The trace is observational only and must never affect execution behavior:
// sinks are inert (no panics, no returned errors) and the engine treats
// recording as fire-and-forget.
package trace

import "time"

// EventKind is the stable discriminator for run events.
type EventKind string

const (
	EventRunStarted  EventKind = "RunStarted"
	EventWaveStarted EventKind = "WaveStarted"
	EventJobStarted  EventKind = "JobStarted"
	EventJobFinished EventKind = "JobFinished"
	EventRunFinished EventKind = "RunFinished"
)

// Event is a single logical occurrence in a run.
type Event struct {
	Kind EventKind `json:"kind"`
	Time time.Time `json:"time"`

	// RunID tags the engine run. Set on run-level events.
	RunID string `json:"run_id,omitempty"`

	// Wave is the zero-based wave index for wave- and job-level events.
	Wave int `json:"wave,omitempty"`

	// Size is the wave's job count.
	Size int `json:"size,omitempty"`

	// Case identifies the job for job-level events.
	Case string `json:"case,omitempty"`

	// Status and ExitCode describe a finished job.
	Status   string `json:"status,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
}

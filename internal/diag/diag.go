// Package diag records the per-render-attempt event timeline.
package diag

import "time"

// Event is one timestamped entry on the timeline.
type Event struct {
	Time  time.Time `json:"time"`
	Event string    `json:"event"`
}

// Observer is invoked synchronously after every recorded event. Used by the
// render service to stream incremental fragments while a render is in flight.
type Observer func(*Diagnostics)

// Diagnostics is the structured timeline and outcome of one render attempt.
// It is owned exclusively by that invocation for its lifetime: events are
// append-only with non-decreasing timestamps, and exactly one of OutFile or
// Error is set after completion.
type Diagnostics struct {
	OperationID string     `json:"operationId"`
	WorkDir     string     `json:"workingDirectory,omitempty"`
	Events      []Event    `json:"events"`
	OutFile     string     `json:"outFile,omitempty"`
	Error       string     `json:"error,omitempty"`
	FinishedAt  *time.Time `json:"finishedAt,omitempty"`

	observer Observer
	clock    func() time.Time
}

// New creates a recorder for the given operation identifier.
func New(operationID string) *Diagnostics {
	return &Diagnostics{OperationID: operationID, clock: time.Now}
}

// SetObserver registers a callback fired after each recorded event.
func (d *Diagnostics) SetObserver(obs Observer) {
	d.observer = obs
}

// SetClock overrides the timestamp source. Test hook.
func (d *Diagnostics) SetClock(clock func() time.Time) {
	d.clock = clock
}

// SetWorkDir records the working directory allocated for this attempt.
func (d *Diagnostics) SetWorkDir(dir string) {
	d.WorkDir = dir
}

// SetOutFile records the produced artifact path.
func (d *Diagnostics) SetOutFile(path string) {
	d.OutFile = path
}

// Record appends an event to the timeline. It never fails; timestamps are
// clamped so the sequence stays non-decreasing even if the clock steps back.
func (d *Diagnostics) Record(event string) {
	d.Events = append(d.Events, Event{Time: d.now(), Event: event})
	if d.observer != nil {
		d.observer(d)
	}
}

// Fail captures a failure description. The first failure wins.
func (d *Diagnostics) Fail(description string) {
	if d.Error == "" {
		d.Error = description
	}
}

// Finish stamps the completion time. Called on every exit path.
func (d *Diagnostics) Finish() {
	now := d.now()
	d.FinishedAt = &now
}

func (d *Diagnostics) now() time.Time {
	clock := d.clock
	if clock == nil {
		clock = time.Now
	}
	now := clock().UTC()
	if n := len(d.Events); n > 0 && now.Before(d.Events[n-1].Time) {
		now = d.Events[n-1].Time
	}
	return now
}

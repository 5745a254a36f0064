package jobs

import "time"

// Job is one render work item persisted in SQLite. A record is eligible for
// dispatch iff it has not been attempted yet; one dispatch attempt writes
// either a result or an error, never both, and stamps RenderedAt so the
// record is never re-selected.
type Job struct {
	ID         int64
	URL        string
	Batch      string
	AddedAt    time.Time
	ResultJSON string
	ErrorText  string
	RenderedAt *time.Time
}

// Attempted reports whether a dispatch attempt has already been recorded.
func (j Job) Attempted() bool {
	return j.RenderedAt != nil
}

// Succeeded reports whether the attempt produced a result.
func (j Job) Succeeded() bool {
	return j.Attempted() && j.ResultJSON != ""
}

// Stats aggregates record counts per outcome.
type Stats struct {
	Total     int
	Pending   int
	Succeeded int
	Failed    int
}

package runner

import (
	"fmt"
	"strings"
	"time"
)

// ProcessError reports a non-zero exit from an external tool, carrying the
// exit code and the tail of the captured output.
type ProcessError struct {
	Bin      string
	ExitCode int
	Tail     []string
}

func (e *ProcessError) Error() string {
	if len(e.Tail) == 0 {
		return fmt.Sprintf("%s exited with code %d", e.Bin, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Bin, e.ExitCode, strings.Join(e.Tail, " | "))
}

// TimeoutError reports that an external tool exceeded its stage bound.
type TimeoutError struct {
	Bin   string
	Limit time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Bin, e.Limit)
}

package render

import (
	"errors"
	"fmt"
	"strings"

	"bmsrender/internal/runner"
)

var (
	ErrProcess       = errors.New("external tool error")
	ErrTimeout       = errors.New("timeout")
	ErrNoSongFound   = errors.New("no song found")
	ErrNoUsableChart = errors.New("no usable chart")
	ErrValidation    = errors.New("validation error")
	ErrNetwork       = errors.New("network error")
	ErrParse         = errors.New("parse error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, message string, err error) error {
	detail := buildDetail(stage, message)
	if marker == nil {
		marker = ErrProcess
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// WrapTool tags a runner failure with the marker matching its shape.
func WrapTool(stage string, err error) error {
	var timeoutErr *runner.TimeoutError
	if errors.As(err, &timeoutErr) {
		return Wrap(ErrTimeout, stage, "", err)
	}
	var procErr *runner.ProcessError
	if errors.As(err, &procErr) {
		return Wrap(ErrProcess, stage, "", err)
	}
	return Wrap(ErrProcess, stage, "", err)
}

// Describe renders a failure as the human-readable description stored on
// diagnostics and job records.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimSpace(err.Error())
}

func buildDetail(stage, message string) string {
	parts := make([]string, 0, 2)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "render failure"
	}
	return strings.Join(parts, ": ")
}

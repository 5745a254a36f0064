// Package runner spawns external tools with captured streams and bounded
// lifetimes.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"bmsrender/internal/logging"
)

// tailLines bounds the captured output kept for error descriptions.
const tailLines = 20

// Command describes one external tool invocation.
type Command struct {
	Bin     string
	Args    []string
	Dir     string
	Timeout time.Duration
}

// Executor abstracts command execution so pipeline tests can fake tools.
type Executor interface {
	Run(ctx context.Context, cmd Command) error
}

// Runner executes commands, forwarding each output line to its logger tagged
// with the tool's base name and stream. Line forwarding is best-effort
// observability; it never fails the invocation.
type Runner struct {
	logger *slog.Logger
}

// New constructs a Runner. A nil logger is replaced with a no-op logger.
func New(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{logger: logger}
}

// Run starts the command and waits for it to exit. It returns nil on exit
// code zero, a *ProcessError on non-zero exit, and a *TimeoutError when the
// timeout elapses first. Both stream readers are joined before the outcome is
// finalized so no line is lost.
func (r *Runner) Run(ctx context.Context, cmd Command) error {
	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	proc := exec.CommandContext(runCtx, cmd.Bin, cmd.Args...) //nolint:gosec
	proc.Dir = cmd.Dir

	stdout, err := proc.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	stderr, err := proc.StderrPipe()
	if err != nil {
		return fmt.Errorf("stderr pipe: %w", err)
	}

	if err := proc.Start(); err != nil {
		return fmt.Errorf("start %s: %w", cmd.Bin, err)
	}

	tool := filepath.Base(cmd.Bin)
	logger := r.logger.With(logging.String(logging.FieldTool, tool))
	tail := &tailBuffer{limit: tailLines}

	var wg sync.WaitGroup
	wg.Add(2)
	go r.forward(&wg, stdout, logger, "out", tail)
	go r.forward(&wg, stderr, logger, "err", tail)
	wg.Wait()

	waitErr := proc.Wait()
	if waitErr == nil {
		return nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return &TimeoutError{Bin: tool, Limit: cmd.Timeout}
	}

	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		return &ProcessError{Bin: tool, ExitCode: exitErr.ExitCode(), Tail: tail.lines()}
	}
	return fmt.Errorf("wait %s: %w", cmd.Bin, waitErr)
}

func (r *Runner) forward(wg *sync.WaitGroup, stream io.Reader, logger *slog.Logger, name string, tail *tailBuffer) {
	defer wg.Done()
	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		tail.add(line)
		logger.Debug(line, logging.String(logging.FieldStream, name))
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("stream read failed", logging.String(logging.FieldStream, name), logging.Error(err))
	}
}

// tailBuffer keeps the most recent lines across both streams.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []string
}

func (t *tailBuffer) add(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, line)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
}

func (t *tailBuffer) lines() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	cp := make([]string, len(t.buf))
	copy(cp, t.buf)
	return cp
}

var _ Executor = (*Runner)(nil)

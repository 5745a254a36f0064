package render

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"bmsrender/internal/logging"
	"bmsrender/internal/runner"
)

// audioExtensions are the asset types normalized before rendering.
var audioExtensions = map[string]struct{}{
	".wav": {},
	".mp3": {},
	".ogg": {},
}

// SoundPrep normalizes every discovered audio asset to 44.1 kHz stereo before
// rendering. Per-file failures are logged and never abort the batch; the
// source file is deleted in all cases so the stage is idempotent with respect
// to disk usage.
type SoundPrep struct {
	exec      runner.Executor
	converter string
	timeout   time.Duration
	workers   int
	logger    *slog.Logger
}

// NewSoundPrep constructs the conversion sub-stage. Worker count defaults to
// the number of available processing units.
func NewSoundPrep(exec runner.Executor, converter string, timeout time.Duration, logger *slog.Logger) *SoundPrep {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &SoundPrep{
		exec:      exec,
		converter: converter,
		timeout:   timeout,
		workers:   runtime.NumCPU(),
		logger:    logger,
	}
}

// SetWorkers overrides the concurrency bound. Test hook.
func (s *SoundPrep) SetWorkers(n int) {
	if n > 0 {
		s.workers = n
	}
}

// Run converts every audio file under srcDir into dstDir and returns the
// number of files handled. The source directory layout is mirrored so
// same-named files in different subdirectories never overwrite each other.
// Zero-byte sources are skipped without invoking the converter but still
// count as handled.
func (s *SoundPrep) Run(ctx context.Context, srcDir, dstDir string) int {
	type conversion struct {
		src string
		dst string
	}
	var work []conversion
	walkErr := filepath.WalkDir(srcDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := audioExtensions[ext]; !ok {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		work = append(work, conversion{src: path, dst: filepath.Join(dstDir, rel)})
		return nil
	})
	if walkErr != nil {
		s.logger.Error("audio discovery failed", logging.Error(walkErr))
		return 0
	}

	total := len(work)
	var handled atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.workers)
	for _, item := range work {
		group.Go(func() error {
			s.convertOne(groupCtx, item.src, item.dst)
			done := handled.Add(1)
			s.logger.Info("audio converted",
				logging.String("file", filepath.Base(item.src)),
				logging.Int64("done", done),
				logging.Int("total", total),
			)
			return nil
		})
	}
	_ = group.Wait()
	return int(handled.Load())
}

func (s *SoundPrep) convertOne(ctx context.Context, src, dst string) {
	// The source is removed in all cases: success, skip, or failure.
	defer func() {
		if err := os.Remove(src); err != nil {
			s.logger.Warn("remove source audio", logging.String("file", src), logging.Error(err))
		}
	}()

	info, err := os.Stat(src)
	if err != nil {
		s.logger.Warn("stat source audio", logging.String("file", src), logging.Error(err))
		return
	}
	if info.Size() == 0 {
		s.logger.Info("skipping empty audio file", logging.String("file", filepath.Base(src)))
		return
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		s.logger.Warn("create destination directory", logging.String("file", dst), logging.Error(err))
		return
	}

	err = s.exec.Run(ctx, runner.Command{
		Bin:     s.converter,
		Args:    []string{"-y", "-i", src, "-ar", "44100", "-ac", "2", dst},
		Timeout: s.timeout,
	})
	if err != nil {
		s.logger.Warn("audio conversion failed",
			logging.String("file", filepath.Base(src)),
			logging.Error(err),
		)
	}
}

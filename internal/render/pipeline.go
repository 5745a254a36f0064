// Package render drives a BMS package through the staged conversion into a
// normalized MP3.
package render

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"bmsrender/internal/config"
	"bmsrender/internal/diag"
	"bmsrender/internal/logging"
	"bmsrender/internal/runner"
)

// Timeline event tags, in stage order.
const (
	EventStart         = "start"
	EventDownloaded    = "downloaded"
	EventExtracted     = "extracted"
	EventPruned        = "unrelatedFilesRemoved"
	EventConverted     = "converted"
	EventChartsMoved   = "chartsMoved"
	EventIndexed       = "indexed"
	EventChartSelected = "chartSelected"
	EventRendered      = "rendered"
	EventNormalized    = "normalized"
	EventTrimmed       = "trimmed"
	EventEncoded       = "encoded"
	EventUploaded      = "uploaded"
)

// chartExtensions identify playable chart files inside a package.
var chartExtensions = map[string]struct{}{
	".bms":   {},
	".bme":   {},
	".bml":   {},
	".pms":   {},
	".bmson": {},
}

// sjisMarker is embedded in relocated chart extensions so downstream indexing
// treats the chart text as Shift-JIS.
const sjisMarker = ".sjis"

// Pipeline runs the staged render state machine. Stages execute strictly
// sequentially; any failure short-circuits the remainder and is captured on
// the diagnostics, never raised to the hosting process.
type Pipeline struct {
	cfg    *config.Config
	exec   runner.Executor
	sound  *SoundPrep
	logger *slog.Logger
}

// New constructs a pipeline over the given executor.
func New(cfg *config.Config, exec runner.Executor, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Pipeline{
		cfg:    cfg,
		exec:   exec,
		sound:  NewSoundPrep(exec, cfg.Tools.Converter, seconds(cfg.Timeouts.Convert), logging.NewComponentLogger(logger, "soundprep")),
		logger: logger,
	}
}

// Sound exposes the conversion sub-stage. Test hook.
func (p *Pipeline) Sound() *SoundPrep { return p.sound }

// Render drives one attempt for the given source URL. destPath, when
// non-empty, is where the encoded file is moved on success. obs, when
// non-nil, observes every recorded event. The returned diagnostics always
// carries a finish timestamp; on failure it carries the error description
// instead of an output path.
func (p *Pipeline) Render(ctx context.Context, operationID, url, destPath string, obs diag.Observer) *diag.Diagnostics {
	d := diag.New(operationID)
	d.SetObserver(obs)
	defer d.Finish()

	ctx = logging.WithOperationID(ctx, operationID)
	logger := logging.WithContext(ctx, p.logger)

	if err := p.run(ctx, logger, d, url, destPath); err != nil {
		// A completed attempt carries exactly one of an artifact path or an
		// error; a failure after the encode stage must not report both.
		d.SetOutFile("")
		d.Fail(Describe(err))
		logger.Error("render failed", logging.Error(err))
		return d
	}
	logger.Info("render completed", logging.String("out_file", d.OutFile))
	return d
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, d *diag.Diagnostics, url, destPath string) error {
	// Working directories are uniquely named so concurrent renders sharing a
	// filesystem never collide. They are left behind for external reaping;
	// post-hoc inspection of failed renders depends on that.
	workDir := filepath.Join(p.cfg.WorkRoot, uuid.NewString())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return Wrap(ErrValidation, "start", "create working directory", err)
	}
	d.SetWorkDir(workDir)
	d.Record(EventStart)

	archivePath := filepath.Join(workDir, "package.archive")
	if err := p.tool(ctx, "download", runner.Command{
		Bin:     p.cfg.Tools.Downloader,
		Args:    []string{"-q", "-O", archivePath, url},
		Dir:     workDir,
		Timeout: seconds(p.cfg.Timeouts.Download),
	}); err != nil {
		return err
	}
	d.Record(EventDownloaded)

	extractDir := filepath.Join(workDir, "extracted")
	if err := os.MkdirAll(extractDir, 0o755); err != nil {
		return Wrap(ErrValidation, "extract", "create extraction directory", err)
	}
	if err := p.tool(ctx, "extract", runner.Command{
		Bin:     p.cfg.Tools.Archiver,
		Args:    []string{"x", "-y", "-o" + extractDir, archivePath},
		Dir:     workDir,
		Timeout: seconds(p.cfg.Timeouts.Extract),
	}); err != nil {
		return err
	}
	d.Record(EventExtracted)

	if err := pruneUnrelated(extractDir); err != nil {
		return Wrap(ErrValidation, "prune", "remove unrelated files", err)
	}
	d.Record(EventPruned)

	renderDir := filepath.Join(workDir, "render")
	if err := os.MkdirAll(renderDir, 0o755); err != nil {
		return Wrap(ErrValidation, "convert", "create render directory", err)
	}
	p.sound.Run(ctx, extractDir, renderDir)
	d.Record(EventConverted)

	if err := relocateCharts(extractDir, renderDir); err != nil {
		return Wrap(ErrValidation, "relocate", "move chart files", err)
	}
	d.Record(EventChartsMoved)

	manifestPath := filepath.Join(workDir, "manifest.json")
	if err := p.tool(ctx, "index", runner.Command{
		Bin:     p.cfg.Tools.Indexer,
		Args:    []string{"--out", manifestPath, renderDir},
		Dir:     workDir,
		Timeout: seconds(p.cfg.Timeouts.Index),
	}); err != nil {
		return err
	}
	d.Record(EventIndexed)

	manifest, err := ParseManifest(manifestPath)
	if err != nil {
		return Wrap(ErrParse, "index", "manifest", err)
	}
	if len(manifest.Songs) == 0 {
		return Wrap(ErrNoSongFound, "index", "manifest contains no song entry", nil)
	}
	song := manifest.Songs[0]
	if len(song.Charts) == 0 {
		return Wrap(ErrNoUsableChart, "index", fmt.Sprintf("song %q has no charts", song.Title), nil)
	}

	chart := SelectChart(song.Charts)
	logger.Info("chart selected",
		logging.String("chart", chart.File),
		logging.Int("notes", chart.Notes),
		logging.Int("candidates", len(song.Charts)),
	)
	d.Record(EventChartSelected)

	rawWav := filepath.Join(workDir, "render.wav")
	if err := p.tool(ctx, "render", runner.Command{
		Bin:     p.cfg.Tools.Renderer,
		Args:    []string{"-o", rawWav, filepath.Join(renderDir, chart.File)},
		Dir:     renderDir,
		Timeout: seconds(p.cfg.Timeouts.Render),
	}); err != nil {
		return err
	}
	d.Record(EventRendered)

	if err := p.tool(ctx, "normalize", runner.Command{
		Bin:     p.cfg.Tools.Normalizer,
		Args:    []string{"-q", rawWav},
		Dir:     workDir,
		Timeout: seconds(p.cfg.Timeouts.Normalize),
	}); err != nil {
		return err
	}
	d.Record(EventNormalized)

	trimmedWav := filepath.Join(workDir, "trimmed.wav")
	if err := p.tool(ctx, "trim", runner.Command{
		Bin: p.cfg.Tools.Trimmer,
		Args: []string{
			rawWav, "-b", "16", trimmedWav,
			"silence", "1", "0", "0.1%", "reverse",
			"silence", "1", "0", "0.1%", "reverse",
		},
		Dir:     workDir,
		Timeout: seconds(p.cfg.Timeouts.Trim),
	}); err != nil {
		return err
	}
	if err := os.Remove(rawWav); err != nil {
		p.logger.Warn("remove pre-trim waveform", logging.Error(err))
	}
	d.Record(EventTrimmed)

	mp3Path := filepath.Join(workDir, "out.mp3")
	if err := p.tool(ctx, "encode", runner.Command{
		Bin:     p.cfg.Tools.Encoder,
		Args:    []string{"-b", "320", trimmedWav, mp3Path},
		Dir:     workDir,
		Timeout: seconds(p.cfg.Timeouts.Encode),
	}); err != nil {
		return err
	}
	if err := os.Remove(trimmedWav); err != nil {
		p.logger.Warn("remove intermediate waveform", logging.Error(err))
	}
	d.Record(EventEncoded)
	d.SetOutFile(mp3Path)

	if destPath != "" {
		if err := moveFile(mp3Path, destPath); err != nil {
			return Wrap(ErrValidation, "encode", "move encoded file", err)
		}
		d.SetOutFile(destPath)
	}
	return nil
}

func (p *Pipeline) tool(ctx context.Context, stage string, cmd runner.Command) error {
	stageCtx := logging.WithStage(ctx, stage)
	logger := logging.WithContext(stageCtx, p.logger)
	logger.Info("stage started", logging.String(logging.FieldTool, filepath.Base(cmd.Bin)))
	if err := p.exec.Run(stageCtx, cmd); err != nil {
		return WrapTool(stage, err)
	}
	return nil
}

// pruneUnrelated deletes every extracted file whose name matches neither a
// chart nor an audio extension.
func pruneUnrelated(dir string) error {
	return filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := chartExtensions[ext]; ok {
			return nil
		}
		if _, ok := audioExtensions[ext]; ok {
			return nil
		}
		return os.Remove(path)
	})
}

// relocateCharts moves chart files into the render directory, embedding the
// Shift-JIS marker before the final extension ("song.bms" -> "song.sjis.bms").
// The package's directory layout is preserved so same-named charts in
// different subdirectories never collide and chart-relative sound references
// stay valid.
func relocateCharts(srcDir, dstDir string) error {
	return filepath.WalkDir(srcDir, func(path string, entry os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if _, ok := chartExtensions[ext]; !ok {
			return nil
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return err
		}
		stem := strings.TrimSuffix(name, filepath.Ext(name))
		dst := filepath.Join(dstDir, filepath.Dir(rel), stem+sjisMarker+filepath.Ext(name))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		return moveFile(path, dst)
	})
}

// moveFile renames src to dst, falling back to copy+remove when rename fails,
// as it does when dst sits on a different filesystem than the work root.
func moveFile(src, dst string) error {
	if src == dst {
		return nil
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return fmt.Errorf("move %s: %w", filepath.Base(src), err)
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

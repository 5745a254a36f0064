package render_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"bmsrender/internal/render"
	"bmsrender/internal/runner"
	"bmsrender/internal/testsupport"
)

type convertExec struct {
	mu    sync.Mutex
	seen  []string
	fail  map[string]error
	write func(path string)
}

func (c *convertExec) Run(_ context.Context, cmd runner.Command) error {
	src := cmd.Args[2]
	c.mu.Lock()
	c.seen = append(c.seen, filepath.Base(src))
	c.mu.Unlock()

	if err, ok := c.fail[filepath.Base(src)]; ok {
		return err
	}
	c.write(cmd.Args[len(cmd.Args)-1])
	return nil
}

func (c *convertExec) sources() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen...)
}

func newConvertExec(t *testing.T) *convertExec {
	return &convertExec{
		fail: map[string]error{},
		write: func(path string) {
			testsupport.WriteFile(t, path, []byte("converted"))
		},
	}
}

func TestSoundPrepConvertsAndRemovesSources(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(srcDir, "kick.wav"), []byte("RIFF"))
	testsupport.WriteFile(t, filepath.Join(srcDir, "snare.ogg"), []byte("OggS"))
	testsupport.WriteFile(t, filepath.Join(srcDir, "readme.txt"), []byte("ignore"))

	exec := newConvertExec(t)
	prep := render.NewSoundPrep(exec, "ffmpeg", time.Minute, nil)
	prep.SetWorkers(1)

	handled := prep.Run(context.Background(), srcDir, dstDir)
	if handled != 2 {
		t.Fatalf("expected 2 handled files, got %d", handled)
	}
	for _, name := range []string{"kick.wav", "snare.ogg"} {
		if _, err := os.Stat(filepath.Join(dstDir, name)); err != nil {
			t.Fatalf("expected converted %s: %v", name, err)
		}
		if _, err := os.Stat(filepath.Join(srcDir, name)); !os.IsNotExist(err) {
			t.Fatalf("expected source %s to be removed", name)
		}
	}
	if _, err := os.Stat(filepath.Join(srcDir, "readme.txt")); err != nil {
		t.Fatalf("non-audio file must be left alone: %v", err)
	}
}

func TestSoundPrepSkipsEmptyFilesWithoutConverter(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(srcDir, "silent.wav"), nil)
	testsupport.WriteFile(t, filepath.Join(srcDir, "loud.wav"), []byte("RIFF"))

	exec := newConvertExec(t)
	prep := render.NewSoundPrep(exec, "ffmpeg", time.Minute, nil)
	prep.SetWorkers(1)

	handled := prep.Run(context.Background(), srcDir, dstDir)
	if handled != 2 {
		t.Fatalf("expected 2 handled files, got %d", handled)
	}
	for _, src := range exec.sources() {
		if src == "silent.wav" {
			t.Fatal("converter invoked for zero-byte source")
		}
	}
	if _, err := os.Stat(filepath.Join(srcDir, "silent.wav")); !os.IsNotExist(err) {
		t.Fatal("expected zero-byte source to be removed")
	}
	if _, err := os.Stat(filepath.Join(dstDir, "silent.wav")); !os.IsNotExist(err) {
		t.Fatal("zero-byte source must not produce a converted file")
	}
}

func TestSoundPrepMirrorsDirectoryLayout(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(srcDir, "x", "kick.wav"), []byte("RIFFx"))
	testsupport.WriteFile(t, filepath.Join(srcDir, "y", "kick.wav"), []byte("RIFFy"))

	exec := newConvertExec(t)
	prep := render.NewSoundPrep(exec, "ffmpeg", time.Minute, nil)
	prep.SetWorkers(1)

	handled := prep.Run(context.Background(), srcDir, dstDir)
	if handled != 2 {
		t.Fatalf("expected 2 handled files, got %d", handled)
	}
	for _, rel := range []string{filepath.Join("x", "kick.wav"), filepath.Join("y", "kick.wav")} {
		if _, err := os.Stat(filepath.Join(dstDir, rel)); err != nil {
			t.Fatalf("expected mirrored destination %s: %v", rel, err)
		}
	}
}

func TestSoundPrepToleratesPerFileFailure(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	testsupport.WriteFile(t, filepath.Join(srcDir, "bad.wav"), []byte("RIFF"))
	testsupport.WriteFile(t, filepath.Join(srcDir, "good.wav"), []byte("RIFF"))

	exec := newConvertExec(t)
	exec.fail["bad.wav"] = errors.New("unsupported codec")
	prep := render.NewSoundPrep(exec, "ffmpeg", time.Minute, nil)
	prep.SetWorkers(1)

	handled := prep.Run(context.Background(), srcDir, dstDir)
	if handled != 2 {
		t.Fatalf("expected the batch to continue past the failure, handled %d", handled)
	}
	if _, err := os.Stat(filepath.Join(dstDir, "good.wav")); err != nil {
		t.Fatalf("expected remaining file to convert: %v", err)
	}
	if _, err := os.Stat(filepath.Join(srcDir, "bad.wav")); !os.IsNotExist(err) {
		t.Fatal("failed source must still be removed")
	}
}

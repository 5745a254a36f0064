package render_test

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"bmsrender/internal/render"
)

func TestSelectChartPicksMedianByNoteCount(t *testing.T) {
	charts := []render.Chart{
		{File: "h.bms", Notes: 5},
		{File: "n.bms", Notes: 2},
		{File: "x.bms", Notes: 9},
		{File: "b.bms", Notes: 2},
	}
	// Sorted note counts [2 2 5 9]; median index floor(3/2) = 1.
	selected := render.SelectChart(charts)
	if selected.Notes != 2 {
		t.Fatalf("expected median chart with 2 notes, got %d (%s)", selected.Notes, selected.File)
	}
	if selected.File != "b.bms" {
		t.Fatalf("expected stable sort to keep encounter order, got %s", selected.File)
	}
}

func TestSelectChartSingle(t *testing.T) {
	selected := render.SelectChart([]render.Chart{{File: "only.bms", Notes: 7}})
	if selected.File != "only.bms" {
		t.Fatalf("unexpected selection: %s", selected.File)
	}
}

func TestParseManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "manifest.json")
	payload := `{"songs":[{"title":"Sample Song","charts":[{"file":"a.sjis.bms","notes":120}]}]}`
	if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	manifest, err := render.ParseManifest(path)
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if len(manifest.Songs) != 1 || manifest.Songs[0].Title != "Sample Song" {
		t.Fatalf("unexpected manifest: %#v", manifest)
	}
	if manifest.Songs[0].Charts[0].Notes != 120 {
		t.Fatalf("unexpected chart: %#v", manifest.Songs[0].Charts[0])
	}
}

func TestParseManifestDecodesShiftJIS(t *testing.T) {
	payload := `{"songs":[{"title":"発狂","charts":[{"file":"a.sjis.bms","notes":1}]}]}`
	encoded, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(payload))
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	path := filepath.Join(t.TempDir(), "manifest.json")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	manifest, err := render.ParseManifest(path)
	if err != nil {
		t.Fatalf("ParseManifest failed: %v", err)
	}
	if manifest.Songs[0].Title != "発狂" {
		t.Fatalf("expected Shift-JIS title to round-trip, got %q", manifest.Songs[0].Title)
	}
}

func TestParseManifestMissingFile(t *testing.T) {
	if _, err := render.ParseManifest(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing manifest")
	}
}

package render

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Chart is one playable difficulty inside a song entry.
type Chart struct {
	File  string `json:"file"`
	Title string `json:"title"`
	Notes int    `json:"notes"`
}

// Song groups the charts the indexer discovered for one package.
type Song struct {
	Title  string  `json:"title"`
	Charts []Chart `json:"charts"`
}

// Manifest is the indexer's output over an assembled render directory.
type Manifest struct {
	Songs []Song `json:"songs"`
}

// ParseManifest reads and decodes an indexer manifest. Chart text inside a
// BMS package is Shift-JIS, so a manifest that is not valid UTF-8 is
// transformed before JSON decoding.
func ParseManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("decode manifest text: %w", err)
		}
		data = decoded
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &manifest, nil
}

// SelectChart picks the representative difficulty. Charts are sorted
// ascending by note count with a stable sort; the median at index
// floor((N-1)/2) is returned.
func SelectChart(charts []Chart) Chart {
	sorted := make([]Chart, len(charts))
	copy(sorted, charts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Notes < sorted[j].Notes
	})
	return sorted[(len(sorted)-1)/2]
}

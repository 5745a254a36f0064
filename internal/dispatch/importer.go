package dispatch

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"bmsrender/internal/jobs"
	"bmsrender/internal/logging"
)

// ImportSummary reports the outcome of one import run.
type ImportSummary struct {
	Batch   string
	Total   int
	Added   int
	Skipped int
	DryRun  bool
}

// Import reads one URL per line from path and inserts each as a pending job
// tagged with a fresh batch identifier. Blank lines and #-comments are
// ignored. Unless apply is set the run is a dry run: the file is parsed and
// counted but nothing is written. Re-importing an already known URL is a
// no-op, so import stays idempotent.
func Import(ctx context.Context, store *jobs.Store, path string, apply bool, logger *slog.Logger) (ImportSummary, error) {
	logger = logging.NewComponentLogger(logger, "import")

	file, err := os.Open(path)
	if err != nil {
		return ImportSummary{}, fmt.Errorf("open import file: %w", err)
	}
	defer file.Close()

	summary := ImportSummary{
		Batch:  uuid.NewString(),
		DryRun: !apply,
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		summary.Total++

		if !apply {
			continue
		}
		added, err := store.Add(ctx, line, summary.Batch)
		if err != nil {
			return summary, fmt.Errorf("import %s: %w", line, err)
		}
		if added {
			summary.Added++
		} else {
			summary.Skipped++
			logger.Info("url already imported", logging.String("url", line))
		}
	}
	if err := scanner.Err(); err != nil {
		return summary, fmt.Errorf("read import file: %w", err)
	}

	logger.Info("import finished",
		logging.String("batch", summary.Batch),
		logging.Int("total", summary.Total),
		logging.Int("added", summary.Added),
		logging.Int("skipped", summary.Skipped),
		logging.Bool("dry_run", summary.DryRun),
	)
	return summary, nil
}

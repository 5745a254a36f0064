// Package dispatch drives pending render jobs through the render service
// under a bounded concurrency cap.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"bmsrender/internal/diag"
	"bmsrender/internal/jobs"
	"bmsrender/internal/logging"
	"bmsrender/internal/render"
)

// RenderCaller submits one render attempt. Satisfied by *renderclient.Client.
type RenderCaller interface {
	Render(ctx context.Context, operationID, sourceURL string) (*diag.Diagnostics, error)
}

// CycleSummary is the completion accounting of one dispatch cycle.
type CycleSummary struct {
	Attempted int
	Succeeded int
	Failed    int
}

// Dispatcher pulls unattempted job records and renders them concurrently.
// One job's failure never aborts or delays its siblings; every attempted
// record ends the cycle with either a result or an error.
type Dispatcher struct {
	store       *jobs.Store
	caller      RenderCaller
	maxInFlight int64
	logger      *slog.Logger
}

// New constructs a dispatcher. maxInFlight bounds simultaneous render
// attempts across the whole cycle.
func New(store *jobs.Store, caller RenderCaller, maxInFlight int, logger *slog.Logger) *Dispatcher {
	if maxInFlight <= 0 {
		maxInFlight = 128
	}
	return &Dispatcher{
		store:       store,
		caller:      caller,
		maxInFlight: int64(maxInFlight),
		logger:      logging.NewComponentLogger(logger, "dispatch"),
	}
}

// RunCycle performs one full pass over all pending job records. Each record
// is attempted exactly once; the cycle returns once every attempt has been
// accounted for.
func (d *Dispatcher) RunCycle(ctx context.Context) (CycleSummary, error) {
	pending, err := d.store.Pending(ctx)
	if err != nil {
		return CycleSummary{}, err
	}
	d.logger.Info("dispatch cycle started", logging.Int("pending", len(pending)))

	sem := semaphore.NewWeighted(d.maxInFlight)
	var wg sync.WaitGroup
	var succeeded, failed atomic.Int64

	for _, job := range pending {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Shutdown mid-cycle: unstarted jobs stay pending for a later run.
			break
		}
		wg.Add(1)
		go func(job *jobs.Job) {
			defer wg.Done()
			defer sem.Release(1)
			if d.attempt(ctx, job) {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
		}(job)
	}
	wg.Wait()

	summary := CycleSummary{
		Succeeded: int(succeeded.Load()),
		Failed:    int(failed.Load()),
	}
	summary.Attempted = summary.Succeeded + summary.Failed
	d.logger.Info("dispatch cycle finished",
		logging.Int("attempted", summary.Attempted),
		logging.Int("succeeded", summary.Succeeded),
		logging.Int("failed", summary.Failed),
	)
	return summary, nil
}

// attempt runs one job to its stored outcome and reports success. It never
// propagates a failure; both branches stamp the render timestamp so the
// record is not re-selected on a later cycle.
func (d *Dispatcher) attempt(ctx context.Context, job *jobs.Job) bool {
	operationID := uuid.NewString()
	jobCtx := logging.WithJobID(logging.WithOperationID(ctx, operationID), job.ID)
	logger := logging.WithContext(jobCtx, d.logger)

	result, err := d.caller.Render(jobCtx, operationID, job.URL)
	if err != nil {
		description := render.Describe(err)
		logger.Error("render attempt failed", logging.Error(err))
		if storeErr := d.store.SetError(ctx, job.ID, description); storeErr != nil {
			logger.Error("persist attempt error", logging.Error(storeErr))
		}
		return false
	}

	payload, err := json.Marshal(result)
	if err != nil {
		logger.Error("encode render result", logging.Error(err))
		if storeErr := d.store.SetError(ctx, job.ID, "encode render result: "+err.Error()); storeErr != nil {
			logger.Error("persist attempt error", logging.Error(storeErr))
		}
		return false
	}
	if err := d.store.SetResult(ctx, job.ID, string(payload)); err != nil {
		logger.Error("persist render result", logging.Error(err))
		return false
	}
	logger.Info("render attempt stored",
		logging.String("out_file", result.OutFile),
		logging.Bool("errored", result.Error != ""),
	)
	return true
}

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/andresuchdata/s3csv2sfdc/internal/storage"
	"github.com/rs/zerolog/log"
)

// Worker runs a Step for one object at a time and keeps the run ledger current.
type Worker struct {
	step  Step
	store storage.ObjectStorage
	opts  Options
	repo  ExecutionRepository
}

// NewWorker creates a new sync worker. repo may be nil when no ledger is configured.
func NewWorker(step Step, store storage.ObjectStorage, opts Options, repo ExecutionRepository) *Worker {
	return &Worker{
		step:  step,
		store: store,
		opts:  opts,
		repo:  repo,
	}
}

// Process syncs bucket/key: download, run the step, finish up, clean up.
// Any stage failure ends the run; nothing is rolled back.
func (w *Worker) Process(ctx context.Context, key, bucket string) (*Summary, error) {
	startTime := time.Now()
	logger := log.With().Str("step", w.step.Name()).Str("bucket", bucket).Str("key", key).Logger()
	logger.Info().Msg("starting sync")

	exec := &Execution{
		StepName:  w.step.Name(),
		Bucket:    bucket,
		ObjectKey: key,
		Status:    StatusPending,
		StartedAt: startTime,
	}
	w.createExecution(ctx, exec)

	o, err := NewOrchestrator(ctx, w.store, key, bucket, w.opts)
	if err != nil {
		return nil, w.markFailed(ctx, exec, fmt.Errorf("download failed: %w", err))
	}
	defer o.Cleanup()
	o.SetTimestamp("")

	exec.Status = StatusProcessing
	exec.ArchiveKey = o.ArchiveKey()
	exec.ErrorKey = o.ErrorKey()
	w.updateExecution(ctx, exec)

	if err := w.step.Run(ctx, o); err != nil {
		w.applySummary(exec, o.Summary())
		return nil, w.markFailed(ctx, exec, fmt.Errorf("step %s failed: %w", w.step.Name(), err))
	}

	if err := o.FinishUp(ctx); err != nil {
		w.applySummary(exec, o.Summary())
		return nil, w.markFailed(ctx, exec, fmt.Errorf("finish up failed: %w", err))
	}

	summary := o.Summary()
	w.applySummary(exec, summary)
	exec.Status = StatusCompleted
	now := time.Now()
	exec.CompletedAt = &now
	w.updateExecution(ctx, exec)

	logger.Info().
		Int("batches", summary.Batches).
		Int("rows", summary.Rows).
		Int("errors", summary.ErrorCount).
		Str("execution_id", summary.ExecutionID).
		Dur("duration", time.Since(startTime)).
		Msg("sync completed")

	return &summary, nil
}

func (w *Worker) applySummary(exec *Execution, s Summary) {
	exec.TotalRows = s.Rows
	exec.ErrorCount = s.ErrorCount
	exec.ErrorCodes = s.ErrorCodes
	exec.SFDCExecutionID = s.ExecutionID
}

// markFailed records err on the execution and returns it
func (w *Worker) markFailed(ctx context.Context, exec *Execution, err error) error {
	exec.Status = StatusFailed
	exec.ErrorMessage = err.Error()
	now := time.Now()
	exec.CompletedAt = &now
	w.updateExecution(ctx, exec)

	log.Error().Err(err).Str("step", w.step.Name()).Str("key", exec.ObjectKey).Msg("sync failed")
	return err
}

// Ledger writes are best effort.
func (w *Worker) createExecution(ctx context.Context, exec *Execution) {
	if w.repo == nil {
		return
	}
	if err := w.repo.CreateExecution(ctx, exec); err != nil {
		log.Warn().Err(err).Str("key", exec.ObjectKey).Msg("failed to create execution record")
	}
}

func (w *Worker) updateExecution(ctx context.Context, exec *Execution) {
	if w.repo == nil || exec.ID == 0 {
		return
	}
	if err := w.repo.UpdateExecution(ctx, exec); err != nil {
		log.Warn().Err(err).Int64("id", exec.ID).Msg("failed to update execution record")
	}
}

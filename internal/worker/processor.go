package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/crosslister/dispatch-be/internal/jobstore"
	"github.com/crosslister/dispatch-be/internal/listing"
)

// processJob claims one job and drives it to a terminal status. A lost claim
// means another worker won the race and is not an error.
func (e *Engine) processJob(ctx context.Context, msg *JobMessage) error {
	claimed, err := e.store.Transition(ctx, []string{msg.JobID}, jobstore.StatusQueued, jobstore.StatusProcessing, "")
	if err != nil {
		// Store unavailable: nothing was claimed, safe to requeue.
		return NewRetryableError(fmt.Errorf("failed to claim job: %w", err))
	}
	if len(claimed) == 0 {
		e.logger.Warn("Job already claimed or terminal, skipping",
			slog.String("job_id", msg.JobID),
		)
		return nil
	}

	job, err := e.store.Get(ctx, msg.JobID)
	if err != nil {
		return fmt.Errorf("failed to load claimed job: %w", err)
	}

	executor, ok := e.executors.Get(job.Platform)
	if !ok {
		e.logger.Error("No executor for platform",
			slog.String("job_id", job.JobID),
			slog.String("platform", string(job.Platform)),
		)
		return e.store.MarkTerminal(ctx, job.JobID, jobstore.StatusFailed, jobstore.Outcome{
			ErrorMessage: fmt.Sprintf("no server-side executor for platform %s", job.Platform),
		})
	}

	var snapshot *listing.Listing
	if job.Operation == jobstore.OpCreate {
		snapshot = &listing.Listing{}
		if err := json.Unmarshal([]byte(job.Payload), snapshot); err != nil {
			return e.store.MarkTerminal(ctx, job.JobID, jobstore.StatusFailed, jobstore.Outcome{
				ErrorMessage: fmt.Sprintf("invalid listing snapshot: %s", err.Error()),
			})
		}
	}

	return e.runAttempts(ctx, job, snapshot, executor)
}

// runAttempts executes the job up to the attempt cap with exponential
// backoff, recording each attempt boundary so status reads never show stale
// mid-retry state.
func (e *Engine) runAttempts(ctx context.Context, job *jobstore.Job, snapshot *listing.Listing, executor Executor) error {
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		outcome, err := e.executeOnce(ctx, job, snapshot, executor)
		if err == nil {
			e.logger.Info("Job completed",
				slog.String("job_id", job.JobID),
				slog.String("platform", string(job.Platform)),
				slog.Int("attempt", attempt),
			)
			return e.store.MarkTerminal(ctx, job.JobID, jobstore.StatusCompleted, *outcome)
		}

		lastErr = err

		if recordErr := e.store.RecordAttempt(ctx, job.JobID, attempt, err.Error()); recordErr != nil {
			e.logger.Error("Failed to record attempt",
				slog.String("job_id", job.JobID),
				slog.String("error", recordErr.Error()),
			)
		}

		if !IsRetryable(err) {
			e.logger.Error("Job failed with non-retryable error",
				slog.String("job_id", job.JobID),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()),
			)
			break
		}

		if attempt < e.maxAttempts {
			delay := e.backoffBase * time.Duration(1<<uint(attempt-1))
			e.logger.Warn("Job attempt failed, backing off",
				slog.String("job_id", job.JobID),
				slog.Int("attempt", attempt),
				slog.Int("max_attempts", e.maxAttempts),
				slog.Duration("backoff", delay),
				slog.String("error", err.Error()),
			)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				// The parent context is gone; finalize with a detached one so
				// the terminal write still lands.
				return e.store.MarkTerminal(context.WithoutCancel(ctx), job.JobID, jobstore.StatusFailed, jobstore.Outcome{
					ErrorMessage: "worker shutting down mid-retry: " + lastErr.Error(),
				})
			}
		}
	}

	return e.store.MarkTerminal(ctx, job.JobID, jobstore.StatusFailed, jobstore.Outcome{
		ErrorMessage: lastErr.Error(),
	})
}

// executeOnce runs a single attempt under the job timeout.
func (e *Engine) executeOnce(ctx context.Context, job *jobstore.Job, snapshot *listing.Listing, executor Executor) (*jobstore.Outcome, error) {
	attemptCtx := ctx
	if e.jobTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, e.jobTimeout)
		defer cancel()
	}

	return executor.Execute(attemptCtx, job, snapshot)
}

package jobstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// FailStale marks jobs stuck in processing longer than olderThan as failed.
// A claimed job whose response never reached the extension stays processing
// forever otherwise; failing it loudly beats silently re-queuing work the
// marketplace may already have executed.
func (s *Store) FailStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    error_message = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE status = $3
		  AND updated_at < NOW() - $4::interval
	`

	res, err := s.db.ExecContext(ctx, query,
		StatusFailed,
		"delivery timed out: job was claimed but never reported back",
		StatusProcessing,
		olderThan.String(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to fail stale jobs: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows > 0 {
		s.logger.Warn("Stale processing jobs failed",
			slog.Int64("count", rows),
			slog.Duration("older_than", olderThan),
		)
	}

	return rows, nil
}

// PruneCompleted deletes completed jobs beyond the newest keep rows or older
// than maxAge, whichever trims more.
func (s *Store) PruneCompleted(ctx context.Context, keep int, maxAge time.Duration) (int64, error) {
	query := `
		DELETE FROM jobs
		WHERE status = $1
		  AND (
		    completed_at < NOW() - $2::interval
		    OR job_id NOT IN (
		      SELECT job_id FROM jobs
		      WHERE status = $1
		      ORDER BY completed_at DESC
		      LIMIT $3
		    )
		  )
	`

	res, err := s.db.ExecContext(ctx, query, StatusCompleted, maxAge.String(), keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune completed jobs: %w", err)
	}

	return res.RowsAffected()
}

// PruneFailed deletes failed jobs beyond the newest keep rows.
func (s *Store) PruneFailed(ctx context.Context, keep int) (int64, error) {
	query := `
		DELETE FROM jobs
		WHERE status = $1
		  AND job_id NOT IN (
		    SELECT job_id FROM jobs
		    WHERE status = $1
		    ORDER BY completed_at DESC
		    LIMIT $2
		  )
	`

	res, err := s.db.ExecContext(ctx, query, StatusFailed, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune failed jobs: %w", err)
	}

	return res.RowsAffected()
}

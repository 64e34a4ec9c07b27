package jobstore

import (
	"context"
	"fmt"
	"time"
)

// JobFilter narrows the job listing query.
type JobFilter struct {
	UserID   string
	Platform string
	Status   string
	PageSize int
	Cursor   *JobCursor
}

// JobCursor is the keyset pagination position: the (created_at, job_id) pair
// of the last row on the previous page.
type JobCursor struct {
	CreatedAt time.Time
	JobID     string
}

// List returns jobs matching the filter, newest first, fetching one extra row
// so callers can tell whether another page exists.
func (s *Store) List(ctx context.Context, filter JobFilter) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.UserID != "" {
		query += fmt.Sprintf(" AND user_id = $%d", argIdx)
		args = append(args, filter.UserID)
		argIdx++
	}

	if filter.Platform != "" {
		query += fmt.Sprintf(" AND platform = $%d", argIdx)
		args = append(args, filter.Platform)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, job_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}

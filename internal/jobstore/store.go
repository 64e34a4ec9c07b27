package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crosslister/dispatch-be/internal/platform"
	"github.com/crosslister/dispatch-be/shared/postgresql"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// Store owns every job lifecycle transition. Other components request
// transitions through this contract and never touch job rows directly.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a job store on top of the shared PostgreSQL client.
func NewStore(pg *postgresql.Client, logger *slog.Logger) *Store {
	return &Store{
		db:     pg.GetDB(),
		logger: logger,
	}
}

// Create inserts a new job in queued state.
func (s *Store) Create(ctx context.Context, job *Job) error {
	query := `
		INSERT INTO jobs (
			job_id, user_id, listing_id, platform, operation, target,
			status, payload, platform_listing_id, attempt, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, 0, $10, $11
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.JobID,
		job.UserID,
		job.ListingID,
		job.Platform,
		job.Operation,
		job.Target,
		job.Status,
		payloadParam(job.Payload),
		job.PlatformListingID,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == pgUniqueViolation {
			return ErrDuplicateJob
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("Job created",
		slog.String("job_id", job.JobID),
		slog.String("platform", string(job.Platform)),
		slog.String("operation", string(job.Operation)),
		slog.String("target", string(job.Target)),
	)

	return nil
}

// payloadParam renders the snapshot for the jsonb payload column. DELETE jobs
// carry no snapshot, and the column only accepts valid JSON, so an empty
// payload must be stored as NULL rather than ''.
func payloadParam(payload string) sql.NullString {
	return sql.NullString{String: payload, Valid: payload != ""}
}

// payload reads back as '' for NULL so Job.Payload stays a plain string.
const jobColumns = `
	job_id, user_id, listing_id, platform, operation, target,
	status, COALESCE(payload::text, '') AS payload, platform_listing_id, platform_url,
	error_message, attempt, created_at, updated_at, completed_at
`

// Get retrieves a single job by id.
func (s *Store) Get(ctx context.Context, jobID string) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE job_id = $1`

	var job Job
	err := s.db.GetContext(ctx, &job, query, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// ListPending returns queued extension-target jobs for a user on the given
// platforms, oldest first. A non-nil since restricts to jobs created at or
// after that time.
func (s *Store) ListPending(ctx context.Context, userID string, platforms []platform.Platform, since *time.Time, limit int) ([]Job, error) {
	query := `
		SELECT ` + jobColumns + `
		FROM jobs
		WHERE user_id = $1
		  AND status = $2
		  AND target = $3
		  AND platform = ANY($4)
	`
	args := []interface{}{userID, StatusQueued, TargetExtension, pq.Array(platformStrings(platforms))}
	argIdx := 5

	if since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *since)
		argIdx++
	}

	query += " ORDER BY created_at ASC, job_id ASC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	var jobs []Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list pending jobs: %w", err)
	}

	return jobs, nil
}

// Transition conditionally moves a set of jobs from one status to another in
// a single statement and returns the ids that actually moved. Jobs not
// currently in the expected from status are left untouched, which makes this
// the sole arbiter for concurrent claims: at most one caller ever sees a
// given id in the returned set.
func (s *Store) Transition(ctx context.Context, jobIDs []string, from, to Status, errMsg string) ([]string, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}

	query := `
		UPDATE jobs
		SET status = $1,
		    error_message = NULLIF($2, ''),
		    completed_at = CASE WHEN $1 IN ($3, $4) THEN NOW() ELSE completed_at END,
		    updated_at = NOW()
		WHERE job_id = ANY($5)
		  AND status = $6
		RETURNING job_id
	`

	var moved []string
	err := s.db.SelectContext(ctx, &moved, query,
		to, errMsg, StatusCompleted, StatusFailed, pq.Array(jobIDs), from)
	if err != nil {
		return nil, fmt.Errorf("failed to transition jobs: %w", err)
	}

	if len(moved) < len(jobIDs) {
		s.logger.Debug("Some jobs lost the transition race",
			slog.Int("requested", len(jobIDs)),
			slog.Int("moved", len(moved)),
			slog.String("from", string(from)),
			slog.String("to", string(to)),
		)
	}

	return moved, nil
}

// MarkTerminal finalizes a job as completed or failed with its outcome
// fields. Jobs already in a terminal state are never changed.
func (s *Store) MarkTerminal(ctx context.Context, jobID string, status Status, outcome Outcome) error {
	if !status.Terminal() {
		return fmt.Errorf("status %q is not terminal", status)
	}

	query := `
		UPDATE jobs
		SET status = $1,
		    platform_listing_id = COALESCE(NULLIF($2, ''), platform_listing_id),
		    platform_url = COALESCE(NULLIF($3, ''), platform_url),
		    error_message = NULLIF($4, ''),
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE job_id = $5
		  AND status NOT IN ($6, $7)
	`

	res, err := s.db.ExecContext(ctx, query,
		status, outcome.PlatformListingID, outcome.PlatformURL, outcome.ErrorMessage,
		jobID, StatusCompleted, StatusFailed)
	if err != nil {
		return fmt.Errorf("failed to mark job terminal: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		if _, getErr := s.Get(ctx, jobID); getErr != nil {
			return getErr
		}
		return ErrTerminalState
	}

	s.logger.Info("Job finalized",
		slog.String("job_id", jobID),
		slog.String("status", string(status)),
	)

	return nil
}

// RecordAttempt persists the attempt counter and last error at a retry
// boundary so status reads never show stale mid-retry state.
func (s *Store) RecordAttempt(ctx context.Context, jobID string, attempt int, errMsg string) error {
	query := `
		UPDATE jobs
		SET attempt = $1,
		    error_message = NULLIF($2, ''),
		    updated_at = NOW()
		WHERE job_id = $3
		  AND status = $4
	`

	_, err := s.db.ExecContext(ctx, query, attempt, errMsg, jobID, StatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}

	return nil
}

func platformStrings(platforms []platform.Platform) []string {
	out := make([]string, len(platforms))
	for i, p := range platforms {
		out[i] = string(p)
	}
	return out
}

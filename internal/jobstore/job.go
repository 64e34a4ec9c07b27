package jobstore

import (
	"database/sql"
	"errors"
	"time"

	"github.com/crosslister/dispatch-be/internal/platform"
)

// Status is the lifecycle state of a job. Transitions only move forward:
// queued -> processing -> completed|failed.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Operation is what the executor should do on the marketplace.
type Operation string

const (
	OpCreate Operation = "CREATE"
	OpDelete Operation = "DELETE"
)

// Target selects which execution path drains the job: the polling browser
// extension or the server-side worker pool.
type Target string

const (
	TargetExtension Target = "extension"
	TargetWorker    Target = "worker"
)

var (
	// ErrJobNotFound is returned when a job id is unknown.
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicateJob is returned when creating a job whose id already exists.
	ErrDuplicateJob = errors.New("job already exists")

	// ErrTerminalState is returned when a terminal update targets a job that
	// already reached completed or failed.
	ErrTerminalState = errors.New("job is already in a terminal state")
)

// Job is the unit of work dispatched to a marketplace.
type Job struct {
	JobID     string            `db:"job_id"`
	UserID    string            `db:"user_id"`
	ListingID string            `db:"listing_id"`
	Platform  platform.Platform `db:"platform"`
	Operation Operation         `db:"operation"`
	Target    Target            `db:"target"`
	Status    Status            `db:"status"`

	// Payload is the listing snapshot JSON for CREATE jobs, empty for DELETE.
	Payload string `db:"payload"`

	// Set on success for CREATE jobs, required at creation for DELETE jobs.
	PlatformListingID sql.NullString `db:"platform_listing_id"`
	PlatformURL       sql.NullString `db:"platform_url"`

	ErrorMessage sql.NullString `db:"error_message"`
	Attempt      int            `db:"attempt"`

	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
	CompletedAt *time.Time `db:"completed_at"`
}

// Outcome carries the terminal fields recorded when a job completes or fails.
type Outcome struct {
	PlatformListingID string
	PlatformURL       string
	ErrorMessage      string
}

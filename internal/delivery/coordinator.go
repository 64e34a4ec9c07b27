package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crosslister/dispatch-be/internal/connection"
	"github.com/crosslister/dispatch-be/internal/jobstore"
	"github.com/crosslister/dispatch-be/internal/listing"
	"github.com/crosslister/dispatch-be/internal/platform"
)

var (
	// ErrInvalidPlatform is returned when credentials target an unsupported
	// marketplace.
	ErrInvalidPlatform = errors.New("invalid platform")

	// ErrEncryptionFailure is returned when the credential encryptor errors.
	ErrEncryptionFailure = errors.New("failed to encrypt credentials")
)

// JobStore is the slice of the job store contract the coordinator needs.
type JobStore interface {
	ListPending(ctx context.Context, userID string, platforms []platform.Platform, since *time.Time, limit int) ([]jobstore.Job, error)
	Transition(ctx context.Context, jobIDs []string, from, to jobstore.Status, errMsg string) ([]string, error)
	Get(ctx context.Context, jobID string) (*jobstore.Job, error)
}

// ConnectionStore reads and writes platform connections.
type ConnectionStore interface {
	ActiveForUser(ctx context.Context, userID string, platforms []platform.Platform) ([]connection.Connection, error)
	SaveCredentials(ctx context.Context, userID string, p platform.Platform, username, encrypted string) error
}

// IdentityVerifier validates the extension's identity and records presence.
type IdentityVerifier interface {
	Verify(ctx context.Context, userID, token string) error
	TouchExtension(ctx context.Context, userID string) error
}

// Encryptor seals a credential pair into an opaque token.
type Encryptor interface {
	Encrypt(username, password string) (string, error)
}

// DeliveredJob is one unit of work handed to the extension. CREATE jobs carry
// the mapped listing payload; DELETE jobs carry only the marketplace listing
// id.
type DeliveredJob struct {
	JobID             string             `json:"job_id"`
	Platform          platform.Platform  `json:"platform"`
	Operation         jobstore.Operation `json:"operation"`
	ListingData       map[string]any     `json:"listing_data,omitempty"`
	PlatformListingID string             `json:"platform_listing_id,omitempty"`
}

// RegisterResult is the response to an extension registration.
type RegisterResult struct {
	Connected   bool           `json:"connected"`
	PendingJobs []DeliveredJob `json:"pending_jobs"`
}

// PollResult is the response to a poll cycle.
type PollResult struct {
	HasNewJobs bool           `json:"has_new_jobs"`
	Jobs       []DeliveredJob `json:"jobs"`
}

// JobStatusView is the externally visible status of a job.
type JobStatusView struct {
	JobID             string     `json:"job_id"`
	Status            string     `json:"status"`
	PlatformListingID string     `json:"platform_listing_id,omitempty"`
	PlatformURL       string     `json:"platform_url,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// Config holds coordinator settings.
type Config struct {
	Logger     *slog.Logger
	Jobs       JobStore
	Conns      ConnectionStore
	Identity   IdentityVerifier
	Encryptor  Encryptor
	PageSize   int
	PollWindow time.Duration
}

// Coordinator implements the polling protocol for the browser extension. All
// claiming funnels through the store's conditional transition, so concurrent
// register/poll calls can never hand the same job out twice.
type Coordinator struct {
	logger     *slog.Logger
	jobs       JobStore
	conns      ConnectionStore
	identity   IdentityVerifier
	encryptor  Encryptor
	pageSize   int
	pollWindow time.Duration
	now        func() time.Time
}

const (
	defaultPageSize   = 10
	defaultPollWindow = 30 * time.Second
)

// NewCoordinator creates a coordinator with the given collaborators.
func NewCoordinator(cfg *Config) *Coordinator {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	pollWindow := cfg.PollWindow
	if pollWindow <= 0 {
		pollWindow = defaultPollWindow
	}

	return &Coordinator{
		logger:     cfg.Logger,
		jobs:       cfg.Jobs,
		conns:      cfg.Conns,
		identity:   cfg.Identity,
		encryptor:  cfg.Encryptor,
		pageSize:   pageSize,
		pollWindow: pollWindow,
		now:        time.Now,
	}
}

// Register announces extension presence and claims the whole queued backlog
// for the user, oldest first, capped at one page.
func (c *Coordinator) Register(ctx context.Context, userID, token string) (*RegisterResult, error) {
	if err := c.identity.Verify(ctx, userID, token); err != nil {
		return nil, err
	}

	if err := c.identity.TouchExtension(ctx, userID); err != nil {
		return nil, err
	}

	jobs, err := c.claim(ctx, userID, nil)
	if err != nil {
		return nil, err
	}

	c.logger.Info("Extension registered",
		slog.String("user_id", userID),
		slog.Int("pending_jobs", len(jobs)),
	)

	return &RegisterResult{Connected: true, PendingJobs: jobs}, nil
}

// Poll claims jobs created within the trailing poll window. The window bounds
// how much backlog each poll has to rescan; Register covers the full backlog
// when the extension comes up.
func (c *Coordinator) Poll(ctx context.Context, userID, token string) (*PollResult, error) {
	if err := c.identity.Verify(ctx, userID, token); err != nil {
		return nil, err
	}

	if err := c.identity.TouchExtension(ctx, userID); err != nil {
		return nil, err
	}

	since := c.now().Add(-c.pollWindow)
	jobs, err := c.claim(ctx, userID, &since)
	if err != nil {
		return nil, err
	}

	return &PollResult{HasNewJobs: len(jobs) > 0, Jobs: jobs}, nil
}

// claim runs the delivery protocol: read queued candidates, fail the ones
// whose platform is not deliverable, conditionally transition the rest to
// processing, and shape payloads for only the jobs this caller actually won.
func (c *Coordinator) claim(ctx context.Context, userID string, since *time.Time) ([]DeliveredJob, error) {
	candidates, err := c.jobs.ListPending(ctx, userID, platform.Supported(), since, c.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending jobs: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	deliverable, err := c.deliverablePlatforms(ctx, userID, candidates)
	if err != nil {
		return nil, err
	}

	// Candidates on unconnected platforms are failed outright instead of
	// being handed to an agent that cannot execute them.
	var claimable []string
	unconnected := make(map[platform.Platform][]string)
	for _, job := range candidates {
		if deliverable[job.Platform] {
			claimable = append(claimable, job.JobID)
		} else {
			unconnected[job.Platform] = append(unconnected[job.Platform], job.JobID)
		}
	}

	for p, ids := range unconnected {
		msg := fmt.Sprintf("platform not connected: %s", platform.DisplayName(p))
		if _, err := c.jobs.Transition(ctx, ids, jobstore.StatusQueued, jobstore.StatusFailed, msg); err != nil {
			return nil, fmt.Errorf("failed to fail unconnected jobs: %w", err)
		}
		c.logger.Warn("Jobs failed: platform not connected",
			slog.String("user_id", userID),
			slog.String("platform", string(p)),
			slog.Int("count", len(ids)),
		)
	}

	// The conditional transition is the sole claim arbiter: ids missing from
	// the returned set lost the race to a concurrent poll and are dropped.
	claimed, err := c.jobs.Transition(ctx, claimable, jobstore.StatusQueued, jobstore.StatusProcessing, "")
	if err != nil {
		return nil, fmt.Errorf("failed to claim jobs: %w", err)
	}

	claimedSet := make(map[string]bool, len(claimed))
	for _, id := range claimed {
		claimedSet[id] = true
	}

	delivered := make([]DeliveredJob, 0, len(claimed))
	for _, job := range candidates {
		if !claimedSet[job.JobID] {
			continue
		}

		out, err := c.shape(ctx, &job)
		if err != nil {
			c.logger.Error("Failed to shape claimed job",
				slog.String("job_id", job.JobID),
				slog.String("error", err.Error()),
			)
			continue
		}
		delivered = append(delivered, *out)
	}

	return delivered, nil
}

// deliverablePlatforms reads the user's active connections for the candidate
// platforms and keeps only those with real, non-placeholder credentials.
func (c *Coordinator) deliverablePlatforms(ctx context.Context, userID string, candidates []jobstore.Job) (map[platform.Platform]bool, error) {
	seen := make(map[platform.Platform]bool)
	var platforms []platform.Platform
	for _, job := range candidates {
		if !seen[job.Platform] {
			seen[job.Platform] = true
			platforms = append(platforms, job.Platform)
		}
	}

	conns, err := c.conns.ActiveForUser(ctx, userID, platforms)
	if err != nil {
		return nil, fmt.Errorf("failed to read connections: %w", err)
	}

	deliverable := make(map[platform.Platform]bool, len(conns))
	for i := range conns {
		if conns[i].Deliverable() {
			deliverable[conns[i].Platform] = true
		}
	}

	return deliverable, nil
}

// shape builds the wire payload for one claimed job. CREATE jobs run through
// the field mapper; DELETE jobs carry the minimal identifier payload. A job
// whose snapshot cannot be mapped is failed in place.
func (c *Coordinator) shape(ctx context.Context, job *jobstore.Job) (*DeliveredJob, error) {
	out := &DeliveredJob{
		JobID:     job.JobID,
		Platform:  job.Platform,
		Operation: job.Operation,
	}

	switch job.Operation {
	case jobstore.OpDelete:
		out.PlatformListingID = job.PlatformListingID.String
		return out, nil

	case jobstore.OpCreate:
		var snapshot listing.Listing
		if err := json.Unmarshal([]byte(job.Payload), &snapshot); err != nil {
			c.failClaimed(ctx, job.JobID, "invalid listing snapshot")
			return nil, fmt.Errorf("failed to decode listing snapshot: %w", err)
		}

		data, err := listing.MapFor(&snapshot, job.Platform)
		if err != nil {
			c.failClaimed(ctx, job.JobID, err.Error())
			return nil, fmt.Errorf("failed to map listing: %w", err)
		}

		out.ListingData = data
		return out, nil
	}

	c.failClaimed(ctx, job.JobID, fmt.Sprintf("unknown operation %q", job.Operation))
	return nil, fmt.Errorf("unknown operation %q", job.Operation)
}

func (c *Coordinator) failClaimed(ctx context.Context, jobID, msg string) {
	if _, err := c.jobs.Transition(ctx, []string{jobID}, jobstore.StatusProcessing, jobstore.StatusFailed, msg); err != nil {
		c.logger.Error("Failed to fail claimed job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
	}
}

// JobStatus reads the externally visible status of one job.
func (c *Coordinator) JobStatus(ctx context.Context, jobID string) (*JobStatusView, error) {
	job, err := c.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &JobStatusView{
		JobID:             job.JobID,
		Status:            string(job.Status),
		PlatformListingID: job.PlatformListingID.String,
		PlatformURL:       job.PlatformURL.String,
		ErrorMessage:      job.ErrorMessage.String,
		CreatedAt:         job.CreatedAt,
		CompletedAt:       job.CompletedAt,
	}, nil
}

// SaveCredentials encrypts and stores marketplace credentials, activating the
// connection.
func (c *Coordinator) SaveCredentials(ctx context.Context, userID, platformName, username, password string) error {
	p, err := platform.Parse(platformName)
	if err != nil || !platform.IsSupported(p) {
		return fmt.Errorf("%w: %q", ErrInvalidPlatform, platformName)
	}

	token, err := c.encryptor.Encrypt(username, password)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEncryptionFailure, err)
	}

	if err := c.conns.SaveCredentials(ctx, userID, p, username, token); err != nil {
		return err
	}

	return nil
}

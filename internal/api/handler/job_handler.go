package handler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/crosslister/dispatch-be/internal/api/dto"
	"github.com/crosslister/dispatch-be/internal/jobstore"
	"github.com/crosslister/dispatch-be/internal/listing"
	"github.com/crosslister/dispatch-be/internal/platform"
	"github.com/crosslister/dispatch-be/internal/worker"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CreateJob handles POST /api/v1/jobs
// Validates the listing against the target marketplace's rules, persists the
// job in queued state, and for worker-target jobs publishes the dispatch
// message.
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.JobID != "" {
		if _, err := uuid.Parse(req.JobID); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
			return
		}
	}

	p, err := platform.Parse(req.Platform)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Recognized-but-unimplemented marketplaces can never be delivered, so
	// jobs for them must be rejected up front regardless of operation.
	if !platform.IsSupported(p) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error": fmt.Sprintf("%s listings are not yet available", platform.DisplayName(p)),
		})
		return
	}

	job := jobstore.Job{
		JobID:     req.JobID,
		UserID:    req.UserID,
		ListingID: req.ListingID,
		Platform:  p,
		Operation: jobstore.Operation(req.Operation),
		Target:    jobstore.Target(req.Target),
		Status:    jobstore.StatusQueued,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Target == "" {
		job.Target = jobstore.TargetExtension
	}

	switch job.Operation {
	case jobstore.OpCreate:
		if req.Listing == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "listing is required for CREATE jobs"})
			return
		}

		if result := listing.Validate(req.Listing, p); !result.Valid {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":          result.Message(),
				"missing_fields": result.Missing,
			})
			return
		}

		snapshot, err := json.Marshal(req.Listing)
		if err != nil {
			h.logger.Error("Failed to marshal listing snapshot", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job"})
			return
		}
		job.Payload = string(snapshot)

	case jobstore.OpDelete:
		if req.PlatformListingID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "platform_listing_id is required for DELETE jobs"})
			return
		}
		job.PlatformListingID = sql.NullString{String: req.PlatformListingID, Valid: true}
	}

	if err := h.store.Create(c.Request.Context(), &job); err != nil {
		if errors.Is(err, jobstore.ErrDuplicateJob) {
			c.JSON(http.StatusConflict, gin.H{"error": "Job already exists"})
			return
		}
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create job"})
		return
	}

	if job.Target == jobstore.TargetWorker {
		if err := h.publishJob(c, job.JobID); err != nil {
			// The row exists and the staleness machinery will not touch a
			// queued job; surface the dispatch failure so the caller can
			// retry with the same job_id.
			h.logger.Error("Failed to publish job message",
				slog.String("job_id", job.JobID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to dispatch job"})
			return
		}
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":   job.JobID,
		"status":   job.Status,
		"platform": job.Platform,
		"target":   job.Target,
	})
}

func (h *JobHandler) publishJob(c *gin.Context, jobID string) error {
	body, err := json.Marshal(worker.JobMessage{JobID: jobID})
	if err != nil {
		return err
	}
	return h.rabbitClient.PublishWithRetry(c.Request.Context(), body, "application/json")
}

// GetJobStatus handles GET /api/v1/jobs/:job_id
func (h *JobHandler) GetJobStatus(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job_id must be a valid UUID"})
		return
	}

	view, err := h.coordinator.JobStatus(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobstore.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		h.logger.Error("Failed to get job status",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get job"})
		return
	}

	c.JSON(http.StatusOK, view)
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with filtering and cursor pagination.
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}
	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
		return
	}

	filter := jobstore.JobFilter{
		UserID:   req.UserID,
		Platform: req.Platform,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	jobs, err := h.store.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list jobs"})
		return
	}

	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}

	out := make([]dto.JobDTO, len(jobs))
	for i, job := range jobs {
		out[i] = dto.JobDTO{
			JobID:             job.JobID,
			UserID:            job.UserID,
			ListingID:         job.ListingID,
			Platform:          string(job.Platform),
			Operation:         string(job.Operation),
			Target:            string(job.Target),
			Status:            string(job.Status),
			PlatformListingID: job.PlatformListingID.String,
			PlatformURL:       job.PlatformURL.String,
			ErrorMessage:      job.ErrorMessage.String,
			Attempt:           job.Attempt,
			CreatedAt:         job.CreatedAt.Format(time.RFC3339),
		}
		if job.CompletedAt != nil {
			out[i].CompletedAt = job.CompletedAt.Format(time.RFC3339)
		}
	}

	var nextCursor string
	if hasMore {
		last := jobs[len(jobs)-1]
		nextCursor, err = EncodeJobCursor(&jobstore.JobCursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
		if err != nil {
			h.logger.Error("Failed to encode next cursor", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode next cursor"})
			return
		}
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{Jobs: out, NextCursor: nextCursor})
}

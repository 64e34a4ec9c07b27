package dto

import "github.com/crosslister/dispatch-be/internal/listing"

// CreateJobRequest creates a dispatch job for a listing.
type CreateJobRequest struct {
	// JobID is optional; the server generates one when empty.
	JobID     string `json:"job_id"`
	UserID    string `json:"user_id" binding:"required"`
	ListingID string `json:"listing_id" binding:"required"`
	Platform  string `json:"platform" binding:"required"`
	Operation string `json:"operation" binding:"required,oneof=CREATE DELETE"`

	// Target defaults to extension when empty.
	Target string `json:"target" binding:"omitempty,oneof=extension worker"`

	// Listing is the snapshot embedded into CREATE jobs.
	Listing *listing.Listing `json:"listing,omitempty"`

	// PlatformListingID identifies the marketplace listing for DELETE jobs.
	PlatformListingID string `json:"platform_listing_id,omitempty"`
}

// JobDTO is the job representation on the listing endpoint.
type JobDTO struct {
	JobID             string `json:"job_id"`
	UserID            string `json:"user_id"`
	ListingID         string `json:"listing_id"`
	Platform          string `json:"platform"`
	Operation         string `json:"operation"`
	Target            string `json:"target"`
	Status            string `json:"status"`
	PlatformListingID string `json:"platform_listing_id,omitempty"`
	PlatformURL       string `json:"platform_url,omitempty"`
	ErrorMessage      string `json:"error_message,omitempty"`
	Attempt           int    `json:"attempt"`
	CreatedAt         string `json:"created_at"`
	CompletedAt       string `json:"completed_at,omitempty"`
}

// ListJobsRequest filters the job listing.
type ListJobsRequest struct {
	UserID   string `form:"user_id"`
	Platform string `form:"platform"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

// ListJobsResponse is one page of jobs plus the cursor for the next.
type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"next_cursor,omitempty"`
}

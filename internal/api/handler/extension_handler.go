package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/crosslister/dispatch-be/internal/api/dto"
	"github.com/crosslister/dispatch-be/internal/delivery"
	"github.com/crosslister/dispatch-be/internal/identity"
	"github.com/gin-gonic/gin"
)

// Register handles POST /api/v1/extension/register
// The extension announces presence and receives its queued backlog.
func (h *ExtensionHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.coordinator.Register(c.Request.Context(), req.UserID, req.AuthToken)
	if err != nil {
		h.respondError(c, "Register", req.UserID, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Poll handles POST /api/v1/extension/poll
// The extension calls this on an interval to claim recently created jobs.
func (h *ExtensionHandler) Poll(c *gin.Context) {
	var req dto.PollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := h.coordinator.Poll(c.Request.Context(), req.UserID, req.AuthToken)
	if err != nil {
		h.respondError(c, "Poll", req.UserID, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// SaveCredentials handles POST /api/v1/connections/credentials
func (h *ExtensionHandler) SaveCredentials(c *gin.Context) {
	var req dto.SaveCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	err := h.coordinator.SaveCredentials(c.Request.Context(), req.UserID, req.Platform, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, delivery.ErrInvalidPlatform):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, delivery.ErrEncryptionFailure):
			h.logger.Error("Credential encryption failed",
				slog.String("user_id", req.UserID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store credentials"})
		default:
			h.logger.Error("Failed to save credentials",
				slog.String("user_id", req.UserID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store credentials"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// respondError maps coordinator errors to HTTP without leaking internals.
func (h *ExtensionHandler) respondError(c *gin.Context, op, userID string, err error) {
	if errors.Is(err, identity.ErrUnauthenticated) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid user or token"})
		return
	}

	h.logger.Error("Extension request failed",
		slog.String("op", op),
		slog.String("user_id", userID),
		slog.String("error", err.Error()),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
}

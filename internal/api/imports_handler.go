package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/sis-monitor/internal/logger"
	"github.com/jonesrussell/north-cloud/sis-monitor/internal/sis"
)

// requeueImport deletes a queued import so the server re-queues its
// items. Upstream rejections pass through with their status and message.
// POST /api/v1/imports/:id/requeue
func (r *Router) requeueImport(c *gin.Context) {
	queueID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid queue ID format",
		})
		return
	}

	if err := r.tracker.Requeue(c.Request.Context(), queueID); err != nil {
		r.log.Error("requeue failed",
			logger.Int("queue_id", queueID),
			logger.Error(err))
		handleUpstreamError(c, err, "requeue import")
		return
	}

	c.JSON(http.StatusOK, gin.H{"queue_id": queueID})
}

// startGroupImport triggers a group membership import upstream.
// POST /api/v1/imports/group
func (r *Router) startGroupImport(c *gin.Context) {
	if err := r.tracker.TriggerGroupImport(c.Request.Context()); err != nil {
		r.log.Error("group import failed", logger.Error(err))
		handleUpstreamError(c, err, "start group import")
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// handleUpstreamError surfaces a provisioning API rejection with its
// original status and message, and everything else as a bad gateway.
func handleUpstreamError(c *gin.Context, err error, operation string) {
	var apiErr *sis.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.StatusCode, gin.H{"error": apiErr.Message})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{
		"error": "Failed to " + operation,
	})
}

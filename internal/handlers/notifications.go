package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"tourchat-service/internal/models"
	"tourchat-service/internal/repositories"
)

const notificationPageSize = 50

// NotificationHandler exposes the persisted notification feed.
type NotificationHandler struct {
	repo repositories.NotificationRepository
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(repo repositories.NotificationRepository) *NotificationHandler {
	return &NotificationHandler{repo: repo}
}

// List returns the caller's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	userID := c.GetInt("userID")

	list, err := h.repo.ListForRecipient(c.Request.Context(), userID, notificationPageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load notifications"})
		return
	}
	if list == nil {
		list = []models.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": list})
}

// MarkRead acknowledges one of the caller's notifications.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notificationID, err := strconv.Atoi(c.Param("notification_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid notification id"})
		return
	}
	userID := c.GetInt("userID")

	if err := h.repo.MarkRead(c.Request.Context(), notificationID, userID); err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not update notification"})
		return
	}

	c.Status(http.StatusNoContent)
}

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pushdash-backend/internal/store"
)

type trackRequest struct {
	WebsiteID      string `json:"websiteId"`
	NotificationID string `json:"notificationId"`
	Event          string `json:"event"`
	Action         string `json:"action"`
}

// Track handles POST /api/track. Events are advisory: they may arrive in any
// order and each updates its own fields last-write-wins.
func (h *Handler) Track(c *gin.Context) {
	var req trackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	if req.WebsiteID == "" || len(req.WebsiteID) > maxWebsiteIDLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "websiteId is required"})
		return
	}
	if req.NotificationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "notificationId is required"})
		return
	}

	event := store.Event(req.Event)
	if !event.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event must be delivered, clicked or dismissed"})
		return
	}

	// A body click reports no action name; record it as the default action.
	action := req.Action
	if event == store.EventClicked && action == "" {
		action = "default"
	}

	err := h.store.TrackEvent(c.Request.Context(), req.WebsiteID, req.NotificationID, event, action, time.Now().UTC())
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

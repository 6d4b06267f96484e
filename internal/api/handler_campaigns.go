package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pushdash-backend/internal/model"
	"pushdash-backend/internal/store"
)

type campaignAction struct {
	Action string `json:"action" binding:"required"`
	Title  string `json:"title" binding:"required"`
	Icon   string `json:"icon"`
}

type createCampaignRequest struct {
	Title              string           `json:"title" binding:"required"`
	Body               string           `json:"body" binding:"required"`
	Icon               string           `json:"icon"`
	Image              string           `json:"image"`
	Badge              string           `json:"badge"`
	URL                string           `json:"url"`
	Tag                string           `json:"tag"`
	RequireInteraction bool             `json:"requireInteraction"`
	Actions            []campaignAction `json:"actions"`
	ScheduledAt        *time.Time       `json:"scheduledAt"`
}

// CreateCampaign handles POST /api/websites/:website_id/campaigns.
// Campaigns without a schedule are dispatched to the delivery pool right
// away; scheduled ones wait for the scheduler to pick them up.
func (h *Handler) CreateCampaign(c *gin.Context) {
	var req createCampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and body are required"})
		return
	}

	website, err := h.store.GetWebsite(c.Request.Context(), c.Param("website_id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "website not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if website.Status == model.WebsiteInactive {
		c.JSON(http.StatusBadRequest, gin.H{"error": "website is inactive"})
		return
	}

	var actions string
	if len(req.Actions) > 0 {
		raw, err := json.Marshal(req.Actions)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid actions"})
			return
		}
		actions = string(raw)
	}

	now := time.Now().UTC()
	campaign := model.Campaign{
		ID:                 uuid.NewString(),
		WebsiteID:          website.ID,
		Title:              req.Title,
		Body:               req.Body,
		Icon:               req.Icon,
		Image:              req.Image,
		Badge:              req.Badge,
		URL:                req.URL,
		Actions:            actions,
		Tag:                req.Tag,
		RequireInteraction: req.RequireInteraction,
		Status:             model.CampaignSending,
		ScheduledAt:        req.ScheduledAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if req.ScheduledAt != nil && req.ScheduledAt.After(now) {
		campaign.Status = model.CampaignScheduled
	}

	if err := h.store.CreateCampaign(c.Request.Context(), &campaign); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if campaign.Status == model.CampaignSending && h.dispatcher != nil {
		h.dispatcher.Dispatch(campaign.ID)
	}

	c.JSON(http.StatusCreated, campaign)
}

// GetCampaignStats handles
// GET /api/websites/:website_id/campaigns/:campaign_id/stats.
func (h *Handler) GetCampaignStats(c *gin.Context) {
	campaign, err := h.store.GetCampaign(c.Request.Context(), c.Param("website_id"), c.Param("campaign_id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "campaign not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	stats, err := h.store.CampaignStats(c.Request.Context(), campaign.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"campaign_id": campaign.ID,
		"status":      campaign.Status,
		"stats":       stats,
	})
}

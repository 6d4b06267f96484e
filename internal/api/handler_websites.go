package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pushdash-backend/internal/model"
	"pushdash-backend/internal/store"
	"pushdash-backend/internal/vapid"
)

type createWebsiteRequest struct {
	Name   string `json:"name" binding:"required"`
	Domain string `json:"domain" binding:"required"`
}

// CreateWebsite handles POST /api/websites. Each website gets its own
// freshly generated VAPID key pair; new websites start out pending, which
// already accepts subscribers.
func (h *Handler) CreateWebsite(c *gin.Context) {
	var req createWebsiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and domain are required"})
		return
	}

	publicKey, privateKey, err := vapid.GenerateKeyPair()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	website := model.Website{
		ID:              uuid.NewString(),
		Name:            req.Name,
		Domain:          req.Domain,
		VAPIDPublicKey:  publicKey,
		VAPIDPrivateKey: privateKey,
		Status:          model.WebsitePending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.store.CreateWebsite(c.Request.Context(), &website); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, website)
}

// GetWebsite handles GET /api/websites/:website_id.
func (h *Handler) GetWebsite(c *gin.Context) {
	website, err := h.store.GetWebsite(c.Request.Context(), c.Param("website_id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "website not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, website)
}

type websiteStatusRequest struct {
	Status model.WebsiteStatus `json:"status" binding:"required"`
}

// UpdateWebsiteStatus handles PATCH /api/websites/:website_id/status.
func (h *Handler) UpdateWebsiteStatus(c *gin.Context) {
	var req websiteStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	switch req.Status {
	case model.WebsiteActive, model.WebsitePending, model.WebsiteInactive:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid website status"})
		return
	}

	err := h.store.UpdateWebsiteStatus(c.Request.Context(), c.Param("website_id"), req.Status)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "website not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetVAPIDPublicKey handles GET /api/websites/:website_id/vapid_public_key.
// The reconciler fetches this before subscribing.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	website, err := h.store.GetWebsite(c.Request.Context(), c.Param("website_id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "website not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if website.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vapid keys are not configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"public_key": website.VAPIDPublicKey})
}

package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"pushdash-backend/config"
	"pushdash-backend/internal/mw"
	"pushdash-backend/internal/store"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(s store.Store, cfg *config.Config, dispatcher Dispatcher) *gin.Engine {
	r := gin.Default()

	handler := NewHandler(s, &cfg.Push, dispatcher)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	cacheTTL := time.Duration(cfg.Server.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Integration snippet / service worker surface.
		api.POST("/register", handler.Register)
		api.POST("/track", handler.Track)
		api.GET("/websites/:website_id/vapid_public_key", caching, handler.GetVAPIDPublicKey)

		// Dashboard surface.
		api.POST("/websites", handler.CreateWebsite)
		api.GET("/websites/:website_id", handler.GetWebsite)
		api.PATCH("/websites/:website_id/status", handler.UpdateWebsiteStatus)
		api.PATCH("/subscribers/:subscriber_id/status", handler.UpdateSubscriberStatus)
		api.POST("/websites/:website_id/campaigns", handler.CreateCampaign)
		api.GET("/websites/:website_id/campaigns/:campaign_id/stats", handler.GetCampaignStats)
	}

	return r
}

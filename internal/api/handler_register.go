package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"pushdash-backend/internal/model"
	"pushdash-backend/internal/store"
	"pushdash-backend/internal/useragent"
)

const (
	maxWebsiteIDLen = 64
	maxEndpointLen  = 1024
	maxKeyLen       = 256
	maxTokenLen     = 512
)

type subscriptionKeys struct {
	P256DH string `json:"p256dh"`
	Auth   string `json:"auth"`
}

type subscriptionPayload struct {
	Endpoint string            `json:"endpoint"`
	Keys     *subscriptionKeys `json:"keys"`
}

// registerRequest accepts both request-body shapes emitted by generated
// integration snippets: the nested subscription object and the older
// flattened fields. Both normalize to one canonical registration before
// any validation runs.
type registerRequest struct {
	WebsiteID    string               `json:"websiteId"`
	Subscription *subscriptionPayload `json:"subscription"`
	FCMToken     string               `json:"fcmToken"`
	APNSToken    string               `json:"apnsToken"`
	UserAgent    string               `json:"userAgent"`
	Language     string               `json:"language"`
	Timezone     string               `json:"timezone"`

	// Flattened legacy subscription shape.
	Endpoint string `json:"endpoint"`
	P256DH   string `json:"p256dh"`
	Auth     string `json:"auth"`

	// Flattened device hints. When present they win over user-agent sniffing.
	Browser        string `json:"browser"`
	BrowserVersion string `json:"browserVersion"`
	DeviceType     string `json:"deviceType"`
	OS             string `json:"os"`
	Platform       string `json:"platform"`
}

// registration is the canonical internal shape produced from either request
// body variant.
type registration struct {
	websiteID string
	endpoint  string
	p256dh    string
	auth      string
	fcmToken  string
	apnsToken string
}

func (r *registerRequest) normalize() registration {
	reg := registration{
		websiteID: r.WebsiteID,
		endpoint:  r.Endpoint,
		p256dh:    r.P256DH,
		auth:      r.Auth,
		fcmToken:  r.FCMToken,
		apnsToken: r.APNSToken,
	}
	if r.Subscription != nil {
		reg.endpoint = r.Subscription.Endpoint
		if r.Subscription.Keys != nil {
			reg.p256dh = r.Subscription.Keys.P256DH
			reg.auth = r.Subscription.Keys.Auth
		}
	}
	return reg
}

func (r registration) validate() (status int, reason string) {
	if r.websiteID == "" {
		return http.StatusBadRequest, "websiteId is required"
	}
	if len(r.websiteID) > maxWebsiteIDLen {
		return http.StatusBadRequest, "websiteId is too long"
	}
	if len(r.endpoint) > maxEndpointLen {
		return http.StatusBadRequest, "subscription endpoint is too long"
	}
	if len(r.p256dh) > maxKeyLen || len(r.auth) > maxKeyLen {
		return http.StatusBadRequest, "subscription keys are too long"
	}
	if len(r.fcmToken) > maxTokenLen || len(r.apnsToken) > maxTokenLen {
		return http.StatusBadRequest, "push token is too long"
	}
	if r.endpoint == "" && r.fcmToken == "" && r.apnsToken == "" {
		return http.StatusBadRequest, "no valid subscription provided"
	}
	return http.StatusOK, ""
}

// derivePlatform picks the subscriber platform. Token kind is authoritative;
// an explicit hint is honored only when no token forces the choice.
func (r registration) derivePlatform(hint string) model.Platform {
	switch {
	case r.apnsToken != "":
		return model.PlatformIOS
	case r.fcmToken != "":
		return model.PlatformAndroid
	}
	switch model.Platform(hint) {
	case model.PlatformWeb, model.PlatformAndroid, model.PlatformIOS:
		return model.Platform(hint)
	}
	return model.PlatformWeb
}

// naturalKey is the endpoint component of the (website_id, endpoint) unique
// pair. Mobile subscribers have no web endpoint, so their token serves as it.
func (r registration) naturalKey() string {
	if r.endpoint != "" {
		return r.endpoint
	}
	if r.fcmToken != "" {
		return r.fcmToken
	}
	return r.apnsToken
}

// Register handles POST /api/register. The upsert is idempotent: repeated
// calls for the same (website, endpoint) update the existing row in place
// and revive its status to active.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	reg := req.normalize()
	if status, reason := reg.validate(); reason != "" {
		c.JSON(status, gin.H{"error": reason})
		return
	}

	website, err := h.store.GetWebsite(c.Request.Context(), reg.websiteID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "invalid website"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !website.Status.AcceptsSubscribers() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "website not accepting subscribers"})
		return
	}

	// Hints from the caller win over user-agent sniffing; the classifier is
	// only a fallback and never more than descriptive.
	class := useragent.Classification{
		Browser:        req.Browser,
		BrowserVersion: req.BrowserVersion,
		OS:             req.OS,
		DeviceType:     model.DeviceType(req.DeviceType),
	}
	if class.Browser == "" && class.OS == "" && class.DeviceType == "" {
		class = useragent.Classify(req.UserAgent)
	}

	now := time.Now().UTC()
	sub := model.Subscriber{
		ID:             uuid.NewString(),
		WebsiteID:      website.ID,
		Endpoint:       reg.naturalKey(),
		P256DH:         reg.p256dh,
		Auth:           reg.auth,
		FCMToken:       reg.fcmToken,
		APNSToken:      reg.apnsToken,
		Platform:       reg.derivePlatform(req.Platform),
		Browser:        class.Browser,
		BrowserVersion: class.BrowserVersion,
		OS:             class.OS,
		DeviceType:     class.DeviceType,
		Language:       req.Language,
		Timezone:       req.Timezone,
		Status:         model.SubscriberActive,
		CreatedAt:      now,
		LastSeenAt:     now,
	}

	if err := h.store.UpsertSubscriber(c.Request.Context(), &sub); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "subscriberId": sub.ID})
}

type subscriberStatusRequest struct {
	Status model.SubscriberStatus `json:"status" binding:"required"`
}

// UpdateSubscriberStatus handles PATCH /api/subscribers/:subscriber_id/status.
// This is the only path besides a fresh registration that changes subscriber
// status; nothing transitions it automatically.
func (h *Handler) UpdateSubscriberStatus(c *gin.Context) {
	var req subscriberStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	switch req.Status {
	case model.SubscriberActive, model.SubscriberInactive, model.SubscriberUnsubscribed:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid subscriber status"})
		return
	}

	err := h.store.UpdateSubscriberStatus(c.Request.Context(), c.Param("subscriber_id"), req.Status)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "subscriber not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

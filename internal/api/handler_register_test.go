package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"pushdash-backend/config"
	"pushdash-backend/internal/db"
	"pushdash-backend/internal/model"
	"pushdash-backend/internal/store"
)

// fakeDispatcher records dispatched campaign IDs.
type fakeDispatcher struct {
	campaigns []string
}

func (d *fakeDispatcher) Dispatch(campaignID string) {
	d.campaigns = append(d.campaigns, campaignID)
}

var testDBSeq int

func newTestEnv(t *testing.T) (*gin.Engine, store.Store, *fakeDispatcher) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDBSeq++
	dsn := fmt.Sprintf("file:apitest%d?mode=memory&cache=shared", testDBSeq)
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	cfg := &config.Config{}
	cfg.Server.RateLimitPerSec = 1000
	cfg.Server.RateLimitBurst = 1000
	cfg.Server.CacheTTLSeconds = 1
	cfg.Push.Subject = "mailto:test@example.com"
	cfg.Push.TTL = 60
	cfg.Push.MaxRetries = 2

	s := store.NewGormStore(gormDB)
	dispatcher := &fakeDispatcher{}
	return NewRouter(s, cfg, dispatcher), s, dispatcher
}

func seedWebsite(t *testing.T, s store.Store, status model.WebsiteStatus) model.Website {
	t.Helper()
	now := time.Now().UTC()
	website := model.Website{
		ID:              "site-" + string(status),
		Name:            "Test Site",
		Domain:          "example.com",
		VAPIDPublicKey:  "BPubKey",
		VAPIDPrivateKey: "PrivKey",
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	require.NoError(t, s.CreateWebsite(context.Background(), &website))
	return website
}

func postJSON(router *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

func TestRegisterNestedShape(t *testing.T) {
	router, s, _ := newTestEnv(t)
	website := seedWebsite(t, s, model.WebsiteActive)

	w := postJSON(router, "/api/register", gin.H{
		"websiteId": website.ID,
		"subscription": gin.H{
			"endpoint": "https://push.example.com/abc",
			"keys":     gin.H{"p256dh": "p-key", "auth": "a-key"},
		},
		"userAgent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		"language":  "en-US",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success      bool   `json:"success"`
		SubscriberID string `json:"subscriberId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.NotEmpty(t, resp.SubscriberID)

	var sub model.Subscriber
	require.NoError(t, s.DB().First(&sub, "id = ?", resp.SubscriberID).Error)
	assert.Equal(t, "https://push.example.com/abc", sub.Endpoint)
	assert.Equal(t, "p-key", sub.P256DH)
	assert.Equal(t, model.PlatformWeb, sub.Platform)
	assert.Equal(t, "Chrome", sub.Browser)
	assert.Equal(t, "Windows", sub.OS)
	assert.Equal(t, model.SubscriberActive, sub.Status)
}

func TestRegisterFlattenedShape(t *testing.T) {
	router, s, _ := newTestEnv(t)
	website := seedWebsite(t, s, model.WebsiteActive)

	w := postJSON(router, "/api/register", gin.H{
		"websiteId":  website.ID,
		"endpoint":   "https://push.example.com/legacy",
		"p256dh":     "p-key",
		"auth":       "a-key",
		"browser":    "Firefox",
		"os":         "Linux",
		"deviceType": "desktop",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var sub model.Subscriber
	require.NoError(t, s.DB().First(&sub, "endpoint = ?", "https://push.example.com/legacy").Error)
	// Flattened hints win over user-agent sniffing.
	assert.Equal(t, "Firefox", sub.Browser)
	assert.Equal(t, "Linux", sub.OS)
	assert.Equal(t, model.DeviceDesktop, sub.DeviceType)
}

func TestRegisterIdempotentUpsert(t *testing.T) {
	router, s, _ := newTestEnv(t)
	website := seedWebsite(t, s, model.WebsiteActive)

	body := gin.H{
		"websiteId": website.ID,
		"subscription": gin.H{
			"endpoint": "https://push.example.com/same",
			"keys":     gin.H{"p256dh": "p1", "auth": "a1"},
		},
	}

	w1 := postJSON(router, "/api/register", body)
	require.Equal(t, http.StatusOK, w1.Code)
	var first struct {
		SubscriberID string `json:"subscriberId"`
	}
	require.NoError(t, json.Unmarshal(w1.Body.Bytes(), &first))

	w2 := postJSON(router, "/api/register", body)
	require.Equal(t, http.StatusOK, w2.Code)
	var second struct {
		SubscriberID string `json:"subscriberId"`
	}
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &second))

	// Same endpoint yields the same row, never a duplicate.
	assert.Equal(t, first.SubscriberID, second.SubscriberID)

	var count int64
	require.NoError(t, s.DB().Model(&model.Subscriber{}).
		Where("website_id = ?", website.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRegisterRevivesUnsubscribedRow(t *testing.T) {
	router, s, _ := newTestEnv(t)
	website := seedWebsite(t, s, model.WebsiteActive)

	body := gin.H{
		"websiteId":    website.ID,
		"subscription": gin.H{"endpoint": "https://push.example.com/revive", "keys": gin.H{"p256dh": "p", "auth": "a"}},
	}
	w := postJSON(router, "/api/register", body)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		SubscriberID string `json:"subscriberId"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	require.NoError(t, s.UpdateSubscriberStatus(context.Background(), resp.SubscriberID, model.SubscriberUnsubscribed))

	w = postJSON(router, "/api/register", body)
	require.Equal(t, http.StatusOK, w.Code)

	var sub model.Subscriber
	require.NoError(t, s.DB().First(&sub, "id = ?", resp.SubscriberID).Error)
	assert.Equal(t, model.SubscriberActive, sub.Status)
}

func TestRegisterNoSubscriptionMethod(t *testing.T) {
	router, s, _ := newTestEnv(t)
	website := seedWebsite(t, s, model.WebsiteActive)

	w := postJSON(router, "/api/register", gin.H{"websiteId": website.ID, "language": "en"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "no valid subscription provided")

	var count int64
	require.NoError(t, s.DB().Model(&model.Subscriber{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestRegisterWebsiteStatusGate(t *testing.T) {
	router, s, _ := newTestEnv(t)
	inactive := seedWebsite(t, s, model.WebsiteInactive)
	pending := seedWebsite(t, s, model.WebsitePending)

	sub := gin.H{"endpoint": "https://push.example.com/gate", "keys": gin.H{"p256dh": "p", "auth": "a"}}

	w := postJSON(router, "/api/register", gin.H{"websiteId": inactive.ID, "subscription": sub})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not accepting subscribers")

	w = postJSON(router, "/api/register", gin.H{"websiteId": "no-such-site", "subscription": sub})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "invalid website")

	// Pending websites are deliberately permissive.
	w = postJSON(router, "/api/register", gin.H{"websiteId": pending.ID, "subscription": sub})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRegisterPlatformDerivation(t *testing.T) {
	router, s, _ := newTestEnv(t)
	website := seedWebsite(t, s, model.WebsiteActive)

	w := postJSON(router, "/api/register", gin.H{"websiteId": website.ID, "fcmToken": "fcm-token-1"})
	require.Equal(t, http.StatusOK, w.Code)

	var sub model.Subscriber
	require.NoError(t, s.DB().First(&sub, "fcm_token = ?", "fcm-token-1").Error)
	assert.Equal(t, model.PlatformAndroid, sub.Platform)

	// An iOS token forces ios even with a contradicting hint.
	w = postJSON(router, "/api/register", gin.H{"websiteId": website.ID, "apnsToken": "apns-token-1", "platform": "web"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, s.DB().First(&sub, "apns_token = ?", "apns-token-1").Error)
	assert.Equal(t, model.PlatformIOS, sub.Platform)
}

func TestRegisterMalformedBody(t *testing.T) {
	router, _, _ := newTestEnv(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/register", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid JSON body")
}

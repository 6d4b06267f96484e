package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pushdash-backend/internal/model"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Event is a client-reported notification lifecycle event.
type Event string

const (
	EventDelivered Event = "delivered"
	EventClicked   Event = "clicked"
	EventDismissed Event = "dismissed"
)

// Valid reports whether e is a recognized tracking event.
func (e Event) Valid() bool {
	return e == EventDelivered || e == EventClicked || e == EventDismissed
}

// CampaignStats aggregates NotificationLog rows for one campaign.
type CampaignStats struct {
	Total     int64 `json:"total"`
	Delivered int64 `json:"delivered"`
	Clicked   int64 `json:"clicked"`
	Dismissed int64 `json:"dismissed"`
	Failed    int64 `json:"failed"`
}

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB

	CreateWebsite(ctx context.Context, website *model.Website) error
	GetWebsite(ctx context.Context, id string) (model.Website, error)
	UpdateWebsiteStatus(ctx context.Context, id string, status model.WebsiteStatus) error

	UpsertSubscriber(ctx context.Context, sub *model.Subscriber) error
	UpdateSubscriberStatus(ctx context.Context, id string, status model.SubscriberStatus) error
	ActiveWebSubscribers(ctx context.Context, websiteID string) ([]model.Subscriber, error)

	CreateCampaign(ctx context.Context, campaign *model.Campaign) error
	GetCampaign(ctx context.Context, websiteID, id string) (model.Campaign, error)
	CampaignByID(ctx context.Context, id string) (model.Campaign, error)
	DueCampaigns(ctx context.Context, now time.Time) ([]model.Campaign, error)
	SetCampaignStatus(ctx context.Context, id string, status model.CampaignStatus, sentAt *time.Time) error

	CreateNotificationLog(ctx context.Context, entry *model.NotificationLog) error
	UpdateNotificationResult(ctx context.Context, logID string, status model.NotificationStatus, errorCode, errorMessage string, retryCount int) error
	TrackEvent(ctx context.Context, websiteID, notificationID string, event Event, action string, now time.Time) error
	CampaignStats(ctx context.Context, campaignID string) (CampaignStats, error)
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) CreateWebsite(ctx context.Context, website *model.Website) error {
	if err := s.db.WithContext(ctx).Create(website).Error; err != nil {
		return fmt.Errorf("create website: %w", err)
	}
	return nil
}

func (s *gormStore) GetWebsite(ctx context.Context, id string) (model.Website, error) {
	var website model.Website
	err := s.db.WithContext(ctx).First(&website, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Website{}, ErrNotFound
	}
	if err != nil {
		return model.Website{}, fmt.Errorf("get website: %w", err)
	}
	return website, nil
}

func (s *gormStore) UpdateWebsiteStatus(ctx context.Context, id string, status model.WebsiteStatus) error {
	tx := s.db.WithContext(ctx).Model(&model.Website{}).Where("id = ?", id).Update("status", status)
	if tx.Error != nil {
		return fmt.Errorf("update website status: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// subscriberUpdateColumns are the fields overwritten when a registration
// hits an existing (website_id, endpoint) row. Status is always forced back
// to active: a fresh registration revives a previously inactive or
// unsubscribed row.
var subscriberUpdateColumns = []string{
	"p256dh", "auth", "fcm_token", "apns_token", "platform",
	"browser", "browser_version", "os", "device_type",
	"language", "timezone", "status", "last_seen_at",
}

// UpsertSubscriber inserts or updates a subscriber keyed on
// (website_id, endpoint). On return sub holds the canonical row, including
// the original ID when the endpoint was already registered.
func (s *gormStore) UpsertSubscriber(ctx context.Context, sub *model.Subscriber) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "website_id"}, {Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns(subscriberUpdateColumns),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("upsert subscriber: %w", err)
	}

	// On conflict the existing row keeps its primary key; read the row back
	// so callers always see the canonical subscriber ID.
	err = s.db.WithContext(ctx).
		Where("website_id = ? AND endpoint = ?", sub.WebsiteID, sub.Endpoint).
		First(sub).Error
	if err != nil {
		return fmt.Errorf("reload subscriber after upsert: %w", err)
	}
	return nil
}

func (s *gormStore) UpdateSubscriberStatus(ctx context.Context, id string, status model.SubscriberStatus) error {
	tx := s.db.WithContext(ctx).Model(&model.Subscriber{}).Where("id = ?", id).Update("status", status)
	if tx.Error != nil {
		return fmt.Errorf("update subscriber status: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ActiveWebSubscribers returns the active web-push recipients of a website.
// Mobile-token subscribers are excluded; they are delivered through their
// own transports, not the web push service.
func (s *gormStore) ActiveWebSubscribers(ctx context.Context, websiteID string) ([]model.Subscriber, error) {
	var subs []model.Subscriber
	err := s.db.WithContext(ctx).
		Where("website_id = ? AND status = ? AND platform = ?", websiteID, model.SubscriberActive, model.PlatformWeb).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("fetch active subscribers: %w", err)
	}
	return subs, nil
}

func (s *gormStore) CreateCampaign(ctx context.Context, campaign *model.Campaign) error {
	if err := s.db.WithContext(ctx).Create(campaign).Error; err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}
	return nil
}

func (s *gormStore) GetCampaign(ctx context.Context, websiteID, id string) (model.Campaign, error) {
	var campaign model.Campaign
	err := s.db.WithContext(ctx).First(&campaign, "website_id = ? AND id = ?", websiteID, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Campaign{}, ErrNotFound
	}
	if err != nil {
		return model.Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	return campaign, nil
}

func (s *gormStore) CampaignByID(ctx context.Context, id string) (model.Campaign, error) {
	var campaign model.Campaign
	err := s.db.WithContext(ctx).First(&campaign, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Campaign{}, ErrNotFound
	}
	if err != nil {
		return model.Campaign{}, fmt.Errorf("get campaign: %w", err)
	}
	return campaign, nil
}

// DueCampaigns returns scheduled campaigns whose scheduled_at has passed.
func (s *gormStore) DueCampaigns(ctx context.Context, now time.Time) ([]model.Campaign, error) {
	var campaigns []model.Campaign
	err := s.db.WithContext(ctx).
		Where("status = ? AND scheduled_at IS NOT NULL AND scheduled_at <= ?", model.CampaignScheduled, now).
		Find(&campaigns).Error
	if err != nil {
		return nil, fmt.Errorf("fetch due campaigns: %w", err)
	}
	return campaigns, nil
}

func (s *gormStore) SetCampaignStatus(ctx context.Context, id string, status model.CampaignStatus, sentAt *time.Time) error {
	updates := map[string]any{"status": status}
	if sentAt != nil {
		updates["sent_at"] = *sentAt
	}
	tx := s.db.WithContext(ctx).Model(&model.Campaign{}).Where("id = ?", id).Updates(updates)
	if tx.Error != nil {
		return fmt.Errorf("set campaign status: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) CreateNotificationLog(ctx context.Context, entry *model.NotificationLog) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create notification log: %w", err)
	}
	return nil
}

func (s *gormStore) UpdateNotificationResult(ctx context.Context, logID string, status model.NotificationStatus, errorCode, errorMessage string, retryCount int) error {
	tx := s.db.WithContext(ctx).Model(&model.NotificationLog{}).Where("id = ?", logID).Updates(map[string]any{
		"status":        status,
		"error_code":    errorCode,
		"error_message": errorMessage,
		"retry_count":   retryCount,
	})
	if tx.Error != nil {
		return fmt.Errorf("update notification result: %w", tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// TrackEvent applies a client-reported event to a NotificationLog row.
// Events are advisory and last-write-wins per field; the only coupling is
// that a click also stamps delivered_at when it is still unset, since a
// clicked notification was necessarily delivered.
func (s *gormStore) TrackEvent(ctx context.Context, websiteID, notificationID string, event Event, action string, now time.Time) error {
	updates := map[string]any{"updated_at": now}
	switch event {
	case EventDelivered:
		updates["delivered_at"] = gorm.Expr("COALESCE(delivered_at, ?)", now)
	case EventClicked:
		updates["clicked_at"] = now
		updates["delivered_at"] = gorm.Expr("COALESCE(delivered_at, ?)", now)
		updates["click_action"] = action
	case EventDismissed:
		updates["dismissed_at"] = now
	default:
		return fmt.Errorf("unknown tracking event %q", event)
	}

	tx := s.db.WithContext(ctx).Model(&model.NotificationLog{}).
		Where("website_id = ? AND id = ?", websiteID, notificationID).
		Updates(updates)
	if tx.Error != nil {
		return fmt.Errorf("track %s event: %w", event, tx.Error)
	}
	if tx.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CampaignStats aggregates delivery and engagement counts in one query.
func (s *gormStore) CampaignStats(ctx context.Context, campaignID string) (CampaignStats, error) {
	var stats CampaignStats
	err := s.db.WithContext(ctx).Model(&model.NotificationLog{}).
		Select("COUNT(*) as total, " +
			"COUNT(delivered_at) as delivered, " +
			"COUNT(clicked_at) as clicked, " +
			"COUNT(dismissed_at) as dismissed, " +
			"COALESCE(SUM(CASE WHEN status = 'failed' THEN 1 ELSE 0 END), 0) as failed").
		Where("campaign_id = ?", campaignID).
		Scan(&stats).Error
	if err != nil {
		return CampaignStats{}, fmt.Errorf("aggregate campaign stats: %w", err)
	}
	return stats, nil
}

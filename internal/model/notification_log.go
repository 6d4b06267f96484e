package model

import "time"

// NotificationStatus is the send-side outcome recorded by the delivery worker.
type NotificationStatus string

const (
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
	NotificationExpired NotificationStatus = "expired"
)

// NotificationLog records one delivery attempt per (campaign, subscriber).
// The client-side tracking events fill in delivered_at / clicked_at /
// dismissed_at after the fact; ordering between them is advisory and each
// field is last-write-wins. RetryCount increments only on transport failure,
// never on business-logic rejection.
type NotificationLog struct {
	ID           string `gorm:"primaryKey;size:36" json:"id"`
	WebsiteID    string `gorm:"size:36;not null;index:idx_log_website_notification" json:"website_id"`
	CampaignID   string `gorm:"size:36;not null;index" json:"campaign_id"`
	SubscriberID string `gorm:"size:36;not null;index" json:"subscriber_id"`

	Status       NotificationStatus `gorm:"size:16;not null;default:sent" json:"status"`
	DeliveredAt  *time.Time         `json:"delivered_at"`
	ClickedAt    *time.Time         `json:"clicked_at"`
	DismissedAt  *time.Time         `json:"dismissed_at"`
	ClickAction  string             `gorm:"size:64" json:"click_action"`
	ErrorCode    string             `gorm:"size:32" json:"error_code"`
	ErrorMessage string             `gorm:"size:512" json:"error_message"`
	RetryCount   int                `gorm:"not null;default:0" json:"retry_count"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

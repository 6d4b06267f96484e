package model

import "time"

// CampaignStatus tracks a campaign through its delivery lifecycle.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignSending   CampaignStatus = "sending"
	CampaignSent      CampaignStatus = "sent"
	CampaignFailed    CampaignStatus = "failed"
)

// Campaign is one notification blast to a website's subscribers.
// Actions is a JSON-encoded array of {action, title, icon} objects
// matching the Notification API's action buttons.
type Campaign struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	WebsiteID string `gorm:"size:36;not null;index" json:"website_id"`

	Title              string `gorm:"size:256;not null" json:"title"`
	Body               string `gorm:"size:1024;not null" json:"body"`
	Icon               string `gorm:"size:512" json:"icon"`
	Image              string `gorm:"size:512" json:"image"`
	Badge              string `gorm:"size:512" json:"badge"`
	URL                string `gorm:"size:1024" json:"url"`
	Actions            string `gorm:"size:2048" json:"actions"`
	Tag                string `gorm:"size:128" json:"tag"`
	RequireInteraction bool   `json:"require_interaction"`

	Status      CampaignStatus `gorm:"size:16;not null;default:draft" json:"status"`
	ScheduledAt *time.Time     `gorm:"index" json:"scheduled_at"`
	SentAt      *time.Time     `json:"sent_at"`
	CreatedAt   time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null" json:"updated_at"`
}

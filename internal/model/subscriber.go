package model

import "time"

// SubscriberStatus enumerates the states a subscriber can be in.
// Transitions are explicit: a fresh registration revives a row to active,
// the status API moves it anywhere, and nothing else changes it.
type SubscriberStatus string

const (
	SubscriberActive       SubscriberStatus = "active"
	SubscriberInactive     SubscriberStatus = "inactive"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
)

// Platform identifies which kind of push credential a subscriber carries.
type Platform string

const (
	PlatformWeb     Platform = "web"
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

// DeviceType is a best-effort device classification.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
)

// Subscriber is one push recipient of a website, identified by the
// (website_id, endpoint) pair for web push. Mobile token fields are
// mutually exclusive with the web push fields by platform type.
// Device and browser fields are descriptive only and never participate
// in validation or delivery decisions.
type Subscriber struct {
	ID        string `gorm:"primaryKey;size:36" json:"id"`
	WebsiteID string `gorm:"size:36;not null;index;uniqueIndex:idx_website_endpoint,priority:1" json:"website_id"`

	// Web push credentials.
	Endpoint string `gorm:"size:1024;uniqueIndex:idx_website_endpoint,priority:2" json:"endpoint"`
	P256DH   string `gorm:"column:p256dh;size:256" json:"p256dh"`
	Auth     string `gorm:"size:256" json:"auth"`

	// Mobile push tokens.
	FCMToken  string `gorm:"size:512" json:"fcm_token,omitempty"`
	APNSToken string `gorm:"size:512" json:"apns_token,omitempty"`

	Platform       Platform   `gorm:"size:16;not null;default:web" json:"platform"`
	Browser        string     `gorm:"size:64" json:"browser"`
	BrowserVersion string     `gorm:"size:32" json:"browser_version"`
	OS             string     `gorm:"size:64" json:"os"`
	DeviceType     DeviceType `gorm:"size:16" json:"device_type"`
	Language       string     `gorm:"size:16" json:"language"`
	Timezone       string     `gorm:"size:64" json:"timezone"`

	Status     SubscriberStatus `gorm:"size:16;not null;default:active" json:"status"`
	CreatedAt  time.Time        `gorm:"not null" json:"created_at"`
	LastSeenAt time.Time        `gorm:"not null" json:"last_seen_at"`
}

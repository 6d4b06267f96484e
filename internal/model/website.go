package model

import "time"

// WebsiteStatus gates whether a website accepts new subscribers.
type WebsiteStatus string

const (
	WebsiteActive   WebsiteStatus = "active"
	WebsitePending  WebsiteStatus = "pending"
	WebsiteInactive WebsiteStatus = "inactive"
)

// AcceptsSubscribers reports whether registration is allowed for this status.
// Pending websites are deliberately permissive so onboarding can collect
// subscribers before verification completes.
func (s WebsiteStatus) AcceptsSubscribers() bool {
	return s == WebsiteActive || s == WebsitePending
}

// Website is the tenant-scoping entity. It owns subscribers and campaigns
// and holds the VAPID key pair used to push to its subscribers.
type Website struct {
	ID              string        `gorm:"primaryKey;size:36" json:"id"`
	Name            string        `gorm:"size:128;not null" json:"name"`
	Domain          string        `gorm:"size:256;not null" json:"domain"`
	VAPIDPublicKey  string        `gorm:"size:256;not null" json:"vapid_public_key"`
	VAPIDPrivateKey string        `gorm:"size:256;not null" json:"-"`
	Status          WebsiteStatus `gorm:"size:16;not null;default:pending" json:"status"`
	CreatedAt       time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time     `gorm:"not null" json:"updated_at"`

	// Associations
	Subscribers []Subscriber `gorm:"foreignKey:WebsiteID" json:"-"`
	Campaigns   []Campaign   `gorm:"foreignKey:WebsiteID" json:"-"`
}

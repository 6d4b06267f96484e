package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"

	"pushdash-backend/config"
	"pushdash-backend/internal/model"
	"pushdash-backend/internal/store"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real Sender backed by the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Payload is the JSON the service worker receives for each notification.
type Payload struct {
	Title              string          `json:"title"`
	Body               string          `json:"body"`
	Icon               string          `json:"icon,omitempty"`
	Image              string          `json:"image,omitempty"`
	Badge              string          `json:"badge,omitempty"`
	URL                string          `json:"url,omitempty"`
	Actions            json.RawMessage `json:"actions,omitempty"`
	NotificationID     string          `json:"notificationId,omitempty"`
	RequireInteraction bool            `json:"requireInteraction,omitempty"`
	Tag                string          `json:"tag,omitempty"`
}

// WorkerPool manages a pool of workers delivering campaigns.
type WorkerPool struct {
	size   int
	jobs   chan string
	store  store.Store
	push   config.PushConfig
	sender Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, push config.PushConfig) *WorkerPool {
	return &WorkerPool{
		size:   size,
		jobs:   make(chan string, size), // Buffered channel
		store:  s,
		push:   push,
		sender: &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Delivery worker %d started", id)
	for {
		select {
		case campaignID := <-wp.jobs:
			log.Printf("Delivery worker %d processing campaign %s", id, campaignID)
			wp.deliverCampaign(ctx, campaignID)
		case <-ctx.Done():
			log.Printf("Delivery worker %d shutting down", id)
			return
		}
	}
}

// Dispatch sends a campaign to the worker pool.
func (wp *WorkerPool) Dispatch(campaignID string) {
	wp.jobs <- campaignID
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan string {
	return wp.jobs
}

// deliverCampaign pushes one campaign to every active web subscriber of its
// website, logging one NotificationLog row per recipient.
func (wp *WorkerPool) deliverCampaign(ctx context.Context, campaignID string) {
	campaign, err := wp.store.CampaignByID(ctx, campaignID)
	if err != nil {
		log.Printf("Error loading campaign %s: %v", campaignID, err)
		return
	}

	website, err := wp.store.GetWebsite(ctx, campaign.WebsiteID)
	if err != nil {
		log.Printf("Error loading website %s for campaign %s: %v", campaign.WebsiteID, campaignID, err)
		return
	}

	subscribers, err := wp.store.ActiveWebSubscribers(ctx, website.ID)
	if err != nil {
		log.Printf("Error fetching subscribers for campaign %s: %v", campaignID, err)
		return
	}

	if err := wp.store.SetCampaignStatus(ctx, campaign.ID, model.CampaignSending, nil); err != nil {
		log.Printf("Error marking campaign %s sending: %v", campaignID, err)
	}

	options := &webpush.Options{
		VAPIDPublicKey:  website.VAPIDPublicKey,
		VAPIDPrivateKey: website.VAPIDPrivateKey,
		Subscriber:      wp.push.Subject,
		TTL:             wp.push.TTL,
	}

	log.Printf("Sending campaign %s to %d subscribers", campaignID, len(subscribers))

	var sent int
	for _, sub := range subscribers {
		if wp.sendToSubscriber(ctx, &campaign, sub, options) {
			sent++
		}
	}

	now := time.Now().UTC()
	status := model.CampaignSent
	if sent == 0 && len(subscribers) > 0 {
		status = model.CampaignFailed
	}
	if err := wp.store.SetCampaignStatus(ctx, campaign.ID, status, &now); err != nil {
		log.Printf("Error marking campaign %s %s: %v", campaignID, status, err)
	}
}

// sendToSubscriber delivers one notification and records the outcome.
// Transport failures are retried a bounded number of times and counted on
// the log row; push-service rejections are recorded without retrying, since
// they are not transport failures.
func (wp *WorkerPool) sendToSubscriber(ctx context.Context, campaign *model.Campaign, sub model.Subscriber, options *webpush.Options) bool {
	now := time.Now().UTC()
	entry := model.NotificationLog{
		ID:           newLogID(),
		WebsiteID:    campaign.WebsiteID,
		CampaignID:   campaign.ID,
		SubscriberID: sub.ID,
		Status:       model.NotificationSent,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := wp.store.CreateNotificationLog(ctx, &entry); err != nil {
		log.Printf("Error creating notification log for subscriber %s: %v", sub.ID, err)
		return false
	}

	payload := Payload{
		Title:              campaign.Title,
		Body:               campaign.Body,
		Icon:               campaign.Icon,
		Image:              campaign.Image,
		Badge:              campaign.Badge,
		URL:                campaign.URL,
		NotificationID:     entry.ID,
		RequireInteraction: campaign.RequireInteraction,
		Tag:                campaign.Tag,
	}
	if payload.Icon == "" {
		payload.Icon = wp.push.DefaultIcon
	}
	if campaign.Actions != "" {
		payload.Actions = json.RawMessage(campaign.Actions)
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshaling payload for campaign %s: %v", campaign.ID, err)
		return false
	}

	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	var retries int
	for {
		resp, err := wp.sender.Send(data, wpSub, options)
		if err != nil {
			retries++
			if retries <= wp.push.MaxRetries {
				continue
			}
			wp.recordResult(ctx, entry.ID, model.NotificationFailed, "transport", err.Error(), retries)
			return false
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusGone:
			// The push service dropped the subscription. Recorded on the log
			// only; subscriber status changes are operator-driven.
			wp.recordResult(ctx, entry.ID, model.NotificationExpired, "gone", "subscription expired at push service", retries)
			return false
		case resp.StatusCode >= 400:
			wp.recordResult(ctx, entry.ID, model.NotificationFailed, fmt.Sprintf("http_%d", resp.StatusCode), "push service rejected notification", retries)
			return false
		default:
			if retries > 0 {
				wp.recordResult(ctx, entry.ID, model.NotificationSent, "", "", retries)
			}
			return true
		}
	}
}

func newLogID() string {
	return uuid.NewString()
}

func (wp *WorkerPool) recordResult(ctx context.Context, logID string, status model.NotificationStatus, code, message string, retries int) {
	if err := wp.store.UpdateNotificationResult(ctx, logID, status, code, message, retries); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("Error updating notification log %s: %v", logID, err)
		}
	}
}

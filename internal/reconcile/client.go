package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// ErrBackendRejected wraps a 4xx response from the backend. The reconciler
// surfaces it without retrying; the next page load retries from scratch.
var ErrBackendRejected = errors.New("reconcile: backend rejected request")

// RegisterRequest is the payload of a registration call.
type RegisterRequest struct {
	WebsiteID    string        `json:"websiteId"`
	Subscription *Subscription `json:"subscription"`
	UserAgent    string        `json:"userAgent,omitempty"`
	Language     string        `json:"language,omitempty"`
	Timezone     string        `json:"timezone,omitempty"`
}

// TrackRequest is the payload of a tracking call.
type TrackRequest struct {
	WebsiteID      string `json:"websiteId"`
	NotificationID string `json:"notificationId"`
	Event          string `json:"event"`
	Action         string `json:"action,omitempty"`
}

// Client talks to the registration and tracking endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a backend client for the given API base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Register reports a subscription to the backend and returns the subscriber
// ID. A 4xx response maps to ErrBackendRejected with the backend's reason;
// any network error is returned as-is (a transport failure, retried only by
// the next reconciliation run).
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	var resp struct {
		Success      bool   `json:"success"`
		SubscriberID string `json:"subscriberId"`
	}
	if err := c.post(ctx, "/api/register", req, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.SubscriberID == "" {
		return "", fmt.Errorf("%w: registration did not return a subscriber id", ErrBackendRejected)
	}
	return resp.SubscriberID, nil
}

// Track reports a notification lifecycle event. Fire-and-forget: failures
// are logged and swallowed, never retried.
func (c *Client) Track(ctx context.Context, req TrackRequest) {
	if err := c.post(ctx, "/api/track", req, nil); err != nil {
		log.Printf("track %s for notification %s: %v", req.Event, req.NotificationID, err)
	}
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		reason := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			reason = apiErr.Error
		}
		if resp.StatusCode < 500 {
			return fmt.Errorf("%w: %s (%d)", ErrBackendRejected, reason, resp.StatusCode)
		}
		return fmt.Errorf("backend error %d: %s", resp.StatusCode, reason)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

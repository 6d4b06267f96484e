package reconcile

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// Config is the configuration a reconciliation run needs. It is resolved
// once at startup from whichever transport the generated integration uses
// and passed in explicitly; nothing is read from ambient state afterwards.
type Config struct {
	WebsiteID      string `json:"websiteId"`
	VAPIDPublicKey string `json:"vapidPublicKey"`
	BaseURL        string `json:"apiBase"`

	// Optional device metadata forwarded to the registration endpoint.
	UserAgent string `json:"userAgent"`
	Language  string `json:"language"`
	Timezone  string `json:"timezone"`
}

// Validate checks the fields without which reconciliation cannot start.
// The VAPID key's format is checked separately, during the run itself.
func (c Config) Validate() error {
	if c.WebsiteID == "" {
		return fmt.Errorf("reconcile config: websiteId is required")
	}
	if c.VAPIDPublicKey == "" {
		return fmt.Errorf("reconcile config: vapidPublicKey is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("reconcile config: apiBase is required")
	}
	return nil
}

// ConfigFromQuery parses a config from service-worker URL query parameters,
// the shape older integration snippets generate
// (sw.js?websiteId=...&vapidPublicKey=...&apiBase=...).
func ConfigFromQuery(rawQuery string) (Config, error) {
	values, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Config{}, fmt.Errorf("parse config query: %w", err)
	}
	cfg := Config{
		WebsiteID:      values.Get("websiteId"),
		VAPIDPublicKey: values.Get("vapidPublicKey"),
		BaseURL:        values.Get("apiBase"),
		UserAgent:      values.Get("userAgent"),
		Language:       values.Get("language"),
		Timezone:       values.Get("timezone"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ConfigFromMessage parses a config from a JSON message payload, the shape
// newer integration snippets post to the worker.
func ConfigFromMessage(data []byte) (Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config message: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

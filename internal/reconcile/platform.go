package reconcile

import (
	"context"
	"errors"
)

// Permission mirrors the Notification API permission states.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ErrInvalidState is the error class a platform reports when a conflicting
// subscription still occupies the single subscription slot. The reconciler
// recovers from it with one forced unsubscribe-and-retry cycle.
var ErrInvalidState = errors.New("reconcile: conflicting subscription present")

// Keys are the client encryption keys of a push subscription, opaque
// base64url strings.
type Keys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Subscription is a platform-issued push credential.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	Keys     Keys   `json:"keys"`

	// ApplicationServerKey is the raw VAPID public key the subscription was
	// created with, when the platform can report it. Nil means unavailable,
	// which the reconciler treats the same as a mismatch.
	ApplicationServerKey []byte `json:"-"`
}

// Platform abstracts the browser push machinery a reconciliation run talks
// to. A browser may hold at most one subscription per registration; the
// platform raises ErrInvalidState instead of migrating when Subscribe is
// called while a subscription with a different key exists.
type Platform interface {
	// Supported reports whether notification and push APIs are available.
	Supported() bool

	// Permission returns the current notification permission.
	Permission(ctx context.Context) (Permission, error)

	// RequestPermission prompts the user. Blocks until the user responds or
	// the context is cancelled.
	RequestPermission(ctx context.Context) (Permission, error)

	// Subscription returns the current subscription, or nil when none exists.
	Subscription(ctx context.Context) (*Subscription, error)

	// Subscribe creates a subscription for the given application server key
	// with user-visible-only delivery.
	Subscribe(ctx context.Context, applicationServerKey []byte) (*Subscription, error)

	// Unsubscribe removes the current subscription, if any.
	Unsubscribe(ctx context.Context) error

	// ShowNotification displays a local notification. Best-effort.
	ShowNotification(ctx context.Context, title, body string) error
}

// Package reconcile keeps a browser install's push subscription consistent
// with a target VAPID key and registers the result with the backend. One run
// guarantees that afterwards the platform holds exactly one subscription
// created with the target key, migrating away from stale-key subscriptions
// as needed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log"

	"pushdash-backend/internal/vapid"
)

// State is the terminal state of a reconciliation run.
type State string

const (
	// StateUnsupported means the platform lacks push capability. Terminal,
	// never retried.
	StateUnsupported State = "unsupported"
	// StateDenied means the user declined or previously blocked notification
	// permission. Terminal until the user changes browser settings.
	StateDenied State = "denied"
	// StateConfigError means the target VAPID key is malformed. Terminal,
	// requires an operator fix; no platform call is attempted.
	StateConfigError State = "config_error"
	// StateRegistered means a subscription with the target key is in place.
	// Backend registration may still have failed; see Result.RegistrationErr.
	StateRegistered State = "registered"
	// StateFailed covers platform errors that the run could not recover from.
	StateFailed State = "failed"
)

// Result reports the outcome of one reconciliation run.
type Result struct {
	State        State
	Subscription *Subscription
	SubscriberID string

	// RegistrationErr is set when the backend call failed after a successful
	// local subscription. The subscription is deliberately kept: staying
	// subscribed-but-untracked beats re-prompting the user for permission.
	RegistrationErr error

	// Err is set for StateConfigError and StateFailed.
	Err error
}

// Registrar is the backend side of a reconciliation run. *Client implements it.
type Registrar interface {
	Register(ctx context.Context, req RegisterRequest) (string, error)
}

// Reconciler drives the subscription state machine against a Platform.
type Reconciler struct {
	cfg      Config
	platform Platform
	backend  Registrar
}

// New creates a Reconciler. The config must already be resolved; see
// ConfigFromQuery and ConfigFromMessage.
func New(cfg Config, platform Platform, backend Registrar) *Reconciler {
	return &Reconciler{cfg: cfg, platform: platform, backend: backend}
}

// Reconcile runs one reconciliation attempt. Every platform call is awaited
// in order; in particular an unsubscribe always completes before the next
// subscribe so the run never races the platform's single-subscription rule
// against itself. The platform's current subscription is the only source of
// truth: nothing is cached across runs, which makes the protocol
// self-correcting after an aborted attempt.
func (r *Reconciler) Reconcile(ctx context.Context) Result {
	if !r.platform.Supported() {
		return Result{State: StateUnsupported}
	}

	// Refuse malformed keys before touching the platform; subscribing with
	// one would fail with a far less diagnosable platform error.
	target, err := vapid.DecodePublicKey(r.cfg.VAPIDPublicKey)
	if err != nil {
		return Result{State: StateConfigError, Err: err}
	}

	perm, err := r.platform.Permission(ctx)
	if err != nil {
		return Result{State: StateFailed, Err: fmt.Errorf("query permission: %w", err)}
	}
	if perm == PermissionDenied {
		return Result{State: StateDenied}
	}
	if perm == PermissionDefault {
		perm, err = r.platform.RequestPermission(ctx)
		if err != nil {
			return Result{State: StateFailed, Err: fmt.Errorf("request permission: %w", err)}
		}
		if perm != PermissionGranted {
			return Result{State: StateDenied}
		}
	}

	existing, err := r.platform.Subscription(ctx)
	if err != nil {
		return Result{State: StateFailed, Err: fmt.Errorf("inspect subscription: %w", err)}
	}

	if existing != nil {
		if existing.ApplicationServerKey != nil &&
			vapid.EncodePublicKey(existing.ApplicationServerKey) == vapid.EncodePublicKey(target) {
			// Already subscribed with the target key. Re-register anyway:
			// the backend upsert is idempotent and refreshes last_seen_at.
			return r.register(ctx, existing)
		}

		// Key mismatch, or the platform cannot report the key: the old
		// subscription must go before a new key can be used. Unsubscribe
		// failure is tolerated; re-attempt once if the stale subscription is
		// still observably present, then let Subscribe surface any conflict.
		if err := r.platform.Unsubscribe(ctx); err != nil {
			log.Printf("unsubscribe stale subscription: %v", err)
			if stale, qerr := r.platform.Subscription(ctx); qerr == nil && stale != nil {
				if err := r.platform.Unsubscribe(ctx); err != nil {
					log.Printf("unsubscribe stale subscription (retry): %v", err)
				}
			}
		}
	}

	sub, err := r.platform.Subscribe(ctx, target)
	if errors.Is(err, ErrInvalidState) {
		// A conflicting subscription still holds the slot. Force-clean it
		// and retry once.
		if err := r.platform.Unsubscribe(ctx); err != nil {
			log.Printf("forced unsubscribe before retry: %v", err)
		}
		sub, err = r.platform.Subscribe(ctx, target)
	}
	if err != nil {
		return Result{State: StateFailed, Err: fmt.Errorf("platform subscribe: %w", err)}
	}

	return r.register(ctx, sub)
}

// register reports the subscription to the backend. A backend failure never
// rolls back the local subscription.
func (r *Reconciler) register(ctx context.Context, sub *Subscription) Result {
	res := Result{State: StateRegistered, Subscription: sub}

	id, err := r.backend.Register(ctx, RegisterRequest{
		WebsiteID:    r.cfg.WebsiteID,
		Subscription: sub,
		UserAgent:    r.cfg.UserAgent,
		Language:     r.cfg.Language,
		Timezone:     r.cfg.Timezone,
	})
	if err != nil {
		log.Printf("backend registration failed (subscription kept): %v", err)
		res.RegistrationErr = err
		return res
	}
	res.SubscriberID = id

	if err := r.platform.ShowNotification(ctx, "Notifications enabled", "You will now receive updates from this site."); err != nil {
		log.Printf("confirmation notification: %v", err)
	}
	return res
}

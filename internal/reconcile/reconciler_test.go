package reconcile

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(marker byte, fill byte) (string, []byte) {
	raw := make([]byte, 65)
	raw[0] = marker
	for i := 1; i < len(raw); i++ {
		raw[i] = fill
	}
	return base64.RawURLEncoding.EncodeToString(raw), raw
}

// fakePlatform simulates the browser push machinery: a single subscription
// slot and a notification permission.
type fakePlatform struct {
	supported  bool
	permission Permission
	promptTo   Permission

	current *Subscription

	subscribeErrs []error // popped per Subscribe call before the slot logic

	permissionCalls  int
	promptCalls      int
	subscribeCalls   int
	unsubscribeCalls int
	notifications    int
}

func (p *fakePlatform) Supported() bool { return p.supported }

func (p *fakePlatform) Permission(ctx context.Context) (Permission, error) {
	p.permissionCalls++
	return p.permission, nil
}

func (p *fakePlatform) RequestPermission(ctx context.Context) (Permission, error) {
	p.promptCalls++
	p.permission = p.promptTo
	return p.promptTo, nil
}

func (p *fakePlatform) Subscription(ctx context.Context) (*Subscription, error) {
	return p.current, nil
}

func (p *fakePlatform) Subscribe(ctx context.Context, applicationServerKey []byte) (*Subscription, error) {
	p.subscribeCalls++
	if len(p.subscribeErrs) > 0 {
		err := p.subscribeErrs[0]
		p.subscribeErrs = p.subscribeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	if p.current != nil {
		return nil, ErrInvalidState
	}
	p.current = &Subscription{
		Endpoint:             "https://push.example.com/sub",
		Keys:                 Keys{P256dh: "p256dh-key", Auth: "auth-key"},
		ApplicationServerKey: applicationServerKey,
	}
	return p.current, nil
}

func (p *fakePlatform) Unsubscribe(ctx context.Context) error {
	p.unsubscribeCalls++
	p.current = nil
	return nil
}

func (p *fakePlatform) ShowNotification(ctx context.Context, title, body string) error {
	p.notifications++
	return nil
}

// mockRegistrar records registration calls.
type mockRegistrar struct {
	requests []RegisterRequest
	id       string
	err      error
}

func (m *mockRegistrar) Register(ctx context.Context, req RegisterRequest) (string, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	return m.id, nil
}

func newTestReconciler(key string, platform *fakePlatform, backend *mockRegistrar) *Reconciler {
	return New(Config{
		WebsiteID:      "site-1",
		VAPIDPublicKey: key,
		BaseURL:        "https://api.example.com",
	}, platform, backend)
}

func TestReconcileUnsupportedPlatform(t *testing.T) {
	key, _ := testKey(0x04, 0xaa)
	platform := &fakePlatform{supported: false}
	res := newTestReconciler(key, platform, &mockRegistrar{id: "sub-1"}).Reconcile(context.Background())

	assert.Equal(t, StateUnsupported, res.State)
	assert.Zero(t, platform.subscribeCalls)
}

func TestReconcileMalformedKeyRefusedBeforePlatformCalls(t *testing.T) {
	platform := &fakePlatform{supported: true, permission: PermissionGranted}
	backend := &mockRegistrar{id: "sub-1"}
	res := newTestReconciler("not-a-valid-key", platform, backend).Reconcile(context.Background())

	assert.Equal(t, StateConfigError, res.State)
	assert.Error(t, res.Err)
	// The platform must never be touched with a malformed key.
	assert.Zero(t, platform.permissionCalls)
	assert.Zero(t, platform.subscribeCalls)
	assert.Zero(t, platform.unsubscribeCalls)
	assert.Empty(t, backend.requests)
}

func TestReconcilePermissionDenied(t *testing.T) {
	key, _ := testKey(0x04, 0xaa)
	platform := &fakePlatform{supported: true, permission: PermissionDenied}
	res := newTestReconciler(key, platform, &mockRegistrar{id: "sub-1"}).Reconcile(context.Background())

	assert.Equal(t, StateDenied, res.State)
	assert.Zero(t, platform.subscribeCalls)
}

func TestReconcilePermissionPromptRefused(t *testing.T) {
	key, _ := testKey(0x04, 0xaa)
	platform := &fakePlatform{supported: true, permission: PermissionDefault, promptTo: PermissionDenied}
	res := newTestReconciler(key, platform, &mockRegistrar{id: "sub-1"}).Reconcile(context.Background())

	assert.Equal(t, StateDenied, res.State)
	assert.Equal(t, 1, platform.promptCalls)
	assert.Zero(t, platform.subscribeCalls)
}

func TestReconcileFreshSubscribe(t *testing.T) {
	key, raw := testKey(0x04, 0xaa)
	platform := &fakePlatform{supported: true, permission: PermissionDefault, promptTo: PermissionGranted}
	backend := &mockRegistrar{id: "sub-42"}

	res := newTestReconciler(key, platform, backend).Reconcile(context.Background())

	require.Equal(t, StateRegistered, res.State)
	assert.Equal(t, "sub-42", res.SubscriberID)
	assert.NoError(t, res.RegistrationErr)
	assert.Equal(t, 1, platform.subscribeCalls)
	assert.Zero(t, platform.unsubscribeCalls)
	assert.Equal(t, 1, platform.notifications)

	require.NotNil(t, platform.current)
	assert.Equal(t, raw, platform.current.ApplicationServerKey)

	require.Len(t, backend.requests, 1)
	assert.Equal(t, "site-1", backend.requests[0].WebsiteID)
	assert.Equal(t, "https://push.example.com/sub", backend.requests[0].Subscription.Endpoint)
}

func TestReconcileMatchingKeyReregistersIdempotently(t *testing.T) {
	key, raw := testKey(0x04, 0xaa)
	platform := &fakePlatform{
		supported:  true,
		permission: PermissionGranted,
		current: &Subscription{
			Endpoint:             "https://push.example.com/existing",
			Keys:                 Keys{P256dh: "p", Auth: "a"},
			ApplicationServerKey: raw,
		},
	}
	backend := &mockRegistrar{id: "sub-7"}

	res := newTestReconciler(key, platform, backend).Reconcile(context.Background())

	require.Equal(t, StateRegistered, res.State)
	assert.Zero(t, platform.subscribeCalls)
	assert.Zero(t, platform.unsubscribeCalls)
	require.Len(t, backend.requests, 1)
	assert.Equal(t, "https://push.example.com/existing", backend.requests[0].Subscription.Endpoint)
}

func TestReconcileKeyMismatchMigration(t *testing.T) {
	keyB, rawB := testKey(0x04, 0xbb)
	_, rawA := testKey(0x04, 0xaa)
	platform := &fakePlatform{
		supported:  true,
		permission: PermissionGranted,
		current: &Subscription{
			Endpoint:             "https://push.example.com/old",
			ApplicationServerKey: rawA,
		},
	}
	backend := &mockRegistrar{id: "sub-8"}

	res := newTestReconciler(keyB, platform, backend).Reconcile(context.Background())

	require.Equal(t, StateRegistered, res.State)
	assert.Equal(t, 1, platform.unsubscribeCalls)
	assert.Equal(t, 1, platform.subscribeCalls)

	// Exactly one subscription remains, created with key B.
	require.NotNil(t, platform.current)
	assert.Equal(t, rawB, platform.current.ApplicationServerKey)
}

func TestReconcileUnreadableKeyTreatedAsMismatch(t *testing.T) {
	key, raw := testKey(0x04, 0xaa)
	platform := &fakePlatform{
		supported:  true,
		permission: PermissionGranted,
		current: &Subscription{
			Endpoint:             "https://push.example.com/old",
			ApplicationServerKey: nil, // platform cannot report the key
		},
	}

	res := newTestReconciler(key, platform, &mockRegistrar{id: "sub-9"}).Reconcile(context.Background())

	require.Equal(t, StateRegistered, res.State)
	assert.Equal(t, 1, platform.unsubscribeCalls)
	assert.Equal(t, raw, platform.current.ApplicationServerKey)
}

func TestReconcileConflictingSubscriptionRetry(t *testing.T) {
	key, _ := testKey(0x04, 0xaa)
	platform := &fakePlatform{
		supported:     true,
		permission:    PermissionGranted,
		subscribeErrs: []error{ErrInvalidState},
	}
	backend := &mockRegistrar{id: "sub-10"}

	res := newTestReconciler(key, platform, backend).Reconcile(context.Background())

	require.Equal(t, StateRegistered, res.State)
	assert.Equal(t, 2, platform.subscribeCalls)
	assert.Equal(t, 1, platform.unsubscribeCalls)
	require.NotNil(t, platform.current)
}

func TestReconcileSubscribeFailureIsTerminal(t *testing.T) {
	key, _ := testKey(0x04, 0xaa)
	platform := &fakePlatform{
		supported:     true,
		permission:    PermissionGranted,
		subscribeErrs: []error{errors.New("push service unreachable")},
	}
	backend := &mockRegistrar{id: "sub-11"}

	res := newTestReconciler(key, platform, backend).Reconcile(context.Background())

	assert.Equal(t, StateFailed, res.State)
	assert.ErrorContains(t, res.Err, "push service unreachable")
	assert.Empty(t, backend.requests)
}

func TestReconcileBackendFailureKeepsSubscription(t *testing.T) {
	key, _ := testKey(0x04, 0xaa)
	platform := &fakePlatform{supported: true, permission: PermissionGranted}
	backend := &mockRegistrar{err: errors.New("registration unavailable")}

	res := newTestReconciler(key, platform, backend).Reconcile(context.Background())

	// Subscribed but not tracked is preferred over unsubscribed and untracked.
	require.Equal(t, StateRegistered, res.State)
	assert.Error(t, res.RegistrationErr)
	assert.Empty(t, res.SubscriberID)
	assert.NotNil(t, platform.current)
	assert.Zero(t, platform.notifications)
}

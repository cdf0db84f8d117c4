package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/nexbridge/bridge-middleware/pkg/app/errors"
	"github.com/nexbridge/bridge-middleware/pkg/webhook"
	"github.com/nexbridge/bridge-middleware/pkg/webhookstore"
)

type mockStore struct {
	CreateSubscriptionFunc         func(ctx context.Context, sub *webhook.Subscription) error
	GetSubscriptionFunc            func(ctx context.Context, id string) (*webhook.Subscription, error)
	DeactivateSubscriptionFunc     func(ctx context.Context, id string) error
	ListAttemptsBySubscriptionFunc func(ctx context.Context, subscriptionID string, limit int) ([]*webhook.DeliveryAttempt, error)
}

func (m *mockStore) CreateSubscription(ctx context.Context, sub *webhook.Subscription) error {
	if m.CreateSubscriptionFunc != nil {
		return m.CreateSubscriptionFunc(ctx, sub)
	}
	return nil
}

func (m *mockStore) GetSubscription(ctx context.Context, id string) (*webhook.Subscription, error) {
	if m.GetSubscriptionFunc != nil {
		return m.GetSubscriptionFunc(ctx, id)
	}
	return nil, webhookstore.ErrSubscriptionNotFound
}

func (m *mockStore) DeactivateSubscription(ctx context.Context, id string) error {
	if m.DeactivateSubscriptionFunc != nil {
		return m.DeactivateSubscriptionFunc(ctx, id)
	}
	return nil
}

func (m *mockStore) ListAttemptsBySubscription(ctx context.Context, subscriptionID string, limit int) ([]*webhook.DeliveryAttempt, error) {
	if m.ListAttemptsBySubscriptionFunc != nil {
		return m.ListAttemptsBySubscriptionFunc(ctx, subscriptionID, limit)
	}
	return nil, nil
}

func validRegisterRequest() *RegisterRequest {
	return &RegisterRequest{
		URL:    "https://hooks.example.com/bridge",
		Secret: "a-sufficiently-long-secret",
		Events: []string{"transaction.completed", "transaction.failed"},
	}
}

func newSubService(store Store) *subscriptionService {
	svc := NewService(store, zap.NewNop()).(*subscriptionService)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	svc.newID = func() string { return "sub-fixed" }
	return svc
}

func TestRegister_Success(t *testing.T) {
	var saved *webhook.Subscription
	store := &mockStore{CreateSubscriptionFunc: func(_ context.Context, sub *webhook.Subscription) error {
		saved = sub
		return nil
	}}
	svc := newSubService(store)

	sub, err := svc.Register(context.Background(), validRegisterRequest())
	require.NoError(t, err)

	assert.Equal(t, "sub-fixed", sub.ID)
	assert.True(t, sub.Active)
	assert.Equal(t, []string{"transaction.completed", "transaction.failed"}, sub.Events)
	require.NotNil(t, saved)
	assert.Equal(t, "a-sufficiently-long-secret", saved.Secret)
}

func TestRegister_Validation(t *testing.T) {
	svc := newSubService(&mockStore{})

	cases := []struct {
		name   string
		mutate func(*RegisterRequest)
	}{
		{"missing url", func(r *RegisterRequest) { r.URL = "" }},
		{"relative url", func(r *RegisterRequest) { r.URL = "/hooks" }},
		{"unsupported scheme", func(r *RegisterRequest) { r.URL = "ftp://hooks.example.com" }},
		{"short secret", func(r *RegisterRequest) { r.Secret = "too-short" }},
		{"unknown event", func(r *RegisterRequest) { r.Events = []string{"transaction.rebooted"} }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRegisterRequest()
			tc.mutate(req)
			_, err := svc.Register(context.Background(), req)
			assert.True(t, apperrors.Is(err, apperrors.CategoryDataError))
		})
	}
}

func TestRegister_WildcardEventsAccepted(t *testing.T) {
	svc := newSubService(&mockStore{})

	for _, events := range [][]string{
		{"*"},
		{"transaction.*"},
		nil,
	} {
		req := validRegisterRequest()
		req.Events = events
		_, err := svc.Register(context.Background(), req)
		assert.NoError(t, err, "events %v", events)
	}
}

func TestRegister_EventMatchingIsCaseInsensitive(t *testing.T) {
	svc := newSubService(&mockStore{})

	req := validRegisterRequest()
	req.Events = []string{"Transaction.Completed"}
	_, err := svc.Register(context.Background(), req)
	assert.NoError(t, err)
}

func TestRegister_StoreError(t *testing.T) {
	store := &mockStore{CreateSubscriptionFunc: func(context.Context, *webhook.Subscription) error {
		return errors.New("db down")
	}}
	svc := newSubService(store)

	_, err := svc.Register(context.Background(), validRegisterRequest())
	assert.Error(t, err)
}

func TestListDeliveries_UnknownSubscription(t *testing.T) {
	svc := newSubService(&mockStore{})

	_, err := svc.ListDeliveries(context.Background(), "missing", 10)
	assert.ErrorIs(t, err, webhookstore.ErrSubscriptionNotFound)
}

func TestListDeliveries_PassesLimitThrough(t *testing.T) {
	store := &mockStore{
		GetSubscriptionFunc: func(context.Context, string) (*webhook.Subscription, error) {
			return &webhook.Subscription{ID: "sub-1"}, nil
		},
		ListAttemptsBySubscriptionFunc: func(_ context.Context, subscriptionID string, limit int) ([]*webhook.DeliveryAttempt, error) {
			assert.Equal(t, "sub-1", subscriptionID)
			assert.Equal(t, 25, limit)
			return []*webhook.DeliveryAttempt{{ID: 1}}, nil
		},
	}
	svc := newSubService(store)

	attempts, err := svc.ListDeliveries(context.Background(), "sub-1", 25)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)
}

// Package service implements webhook subscription management.
package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/nexbridge/bridge-middleware/pkg/app/errors"
	"github.com/nexbridge/bridge-middleware/pkg/webhook"
)

const minSecretLength = 16

// knownEvents are the event families a subscription may filter on, besides
// the catch-all "*".
var knownEvents = map[string]bool{
	"transaction.created":          true,
	"transaction.source_confirmed": true,
	"transaction.in_transit":       true,
	"transaction.completed":        true,
	"transaction.failed":           true,
	"transaction.*":                true,
	"*":                            true,
}

// Store is the narrow data-access interface for the subscription service.
type Store interface {
	CreateSubscription(ctx context.Context, sub *webhook.Subscription) error
	GetSubscription(ctx context.Context, id string) (*webhook.Subscription, error)
	DeactivateSubscription(ctx context.Context, id string) error
	ListAttemptsBySubscription(ctx context.Context, subscriptionID string, limit int) ([]*webhook.DeliveryAttempt, error)
}

// RegisterRequest creates a new webhook subscription.
type RegisterRequest struct {
	URL    string   `json:"url"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

// Service defines the subscription management interface.
type Service interface {
	Register(ctx context.Context, req *RegisterRequest) (*webhook.Subscription, error)
	Get(ctx context.Context, id string) (*webhook.Subscription, error)
	Deactivate(ctx context.Context, id string) error
	ListDeliveries(ctx context.Context, subscriptionID string, limit int) ([]*webhook.DeliveryAttempt, error)
}

type subscriptionService struct {
	store  Store
	logger *zap.Logger

	now   func() time.Time
	newID func() string
}

// NewService creates the subscription service.
func NewService(store Store, logger *zap.Logger) Service {
	return &subscriptionService{
		store:  store,
		logger: logger,
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
}

// Register validates and persists a new active subscription. The secret is
// stored as given; deliveries are signed with it verbatim.
func (s *subscriptionService) Register(ctx context.Context, req *RegisterRequest) (*webhook.Subscription, error) {
	if err := validateRegister(req); err != nil {
		return nil, err
	}

	sub := &webhook.Subscription{
		ID:        s.newID(),
		URL:       req.URL,
		Secret:    req.Secret,
		Events:    req.Events,
		Active:    true,
		CreatedAt: s.now(),
	}

	if err := s.store.CreateSubscription(ctx, sub); err != nil {
		return nil, fmt.Errorf("save subscription: %w", err)
	}

	s.logger.Info("webhook subscription registered",
		zap.String("subscription_id", sub.ID),
		zap.Strings("events", sub.Events))
	return sub, nil
}

func (s *subscriptionService) Get(ctx context.Context, id string) (*webhook.Subscription, error) {
	return s.store.GetSubscription(ctx, id)
}

func (s *subscriptionService) Deactivate(ctx context.Context, id string) error {
	return s.store.DeactivateSubscription(ctx, id)
}

func (s *subscriptionService) ListDeliveries(ctx context.Context, subscriptionID string, limit int) ([]*webhook.DeliveryAttempt, error) {
	if _, err := s.store.GetSubscription(ctx, subscriptionID); err != nil {
		return nil, err
	}
	return s.store.ListAttemptsBySubscription(ctx, subscriptionID, limit)
}

func validateRegister(req *RegisterRequest) error {
	parsed, err := url.Parse(req.URL)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return apperrors.BadRequestError(err, "url must be a valid http(s) URL")
	}
	if len(req.Secret) < minSecretLength {
		return apperrors.BadRequestError(nil,
			fmt.Sprintf("secret must be at least %d characters", minSecretLength))
	}
	for _, event := range req.Events {
		if !knownEvents[strings.ToLower(event)] {
			return apperrors.BadRequestError(nil, fmt.Sprintf("unknown event %q", event))
		}
	}
	return nil
}

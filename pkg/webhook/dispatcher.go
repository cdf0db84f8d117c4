package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nexbridge/bridge-middleware/internal/metrics"
	"github.com/nexbridge/bridge-middleware/pkg/operation"
)

// Store is the persistence interface the dispatcher depends on.
type Store interface {
	ListActiveSubscriptions(ctx context.Context) ([]*Subscription, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	// RecordAttempt appends one immutable delivery attempt record.
	RecordAttempt(ctx context.Context, attempt *DeliveryAttempt) error
	// UpdateSubscriptionStats bumps the rolling delivery counters.
	UpdateSubscriptionStats(ctx context.Context, subscriptionID string, succeeded bool, at time.Time) error
}

// Config holds the delivery budgets and retry policy.
type Config struct {
	DeliveryTimeout time.Duration
	MaxAttempts     int
	BackoffBase     time.Duration
	BackoffFactor   int
	Workers         int
	QueueSize       int
}

func (c Config) withDefaults() Config {
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = 5 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 5 * time.Second
	}
	if c.BackoffFactor <= 0 {
		c.BackoffFactor = 5
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	return c
}

// Backoff returns the wait before the given retry. Attempt numbering is
// one-based, so the wait after attempt n is base*factor^(n-1).
func (c Config) Backoff(attempt int) time.Duration {
	wait := c.BackoffBase
	for i := 1; i < attempt; i++ {
		wait *= time.Duration(c.BackoffFactor)
	}
	return wait
}

// job is one subscription's delivery chain for one event.
type job struct {
	subscription *Subscription
	operationID  string
	event        string
	payload      []byte
	// firstAttempt is 1 for fresh events and higher when a crashed chain
	// is resumed by the sweeper.
	firstAttempt int
}

// Dispatcher fans operation events out to matching subscriptions. Each
// worker owns a full retry chain: deliver, record the attempt, back off,
// retry, until success or the attempt budget runs out.
type Dispatcher struct {
	cfg    Config
	store  Store
	client *http.Client
	logger *zap.Logger

	jobs chan job
	wg   sync.WaitGroup

	// mu guards stopped so enqueue never races the channel close in Stop.
	mu      sync.Mutex
	stopped bool

	baseCtx context.Context
	cancel  context.CancelFunc
	now     func() time.Time
}

// NewDispatcher creates a dispatcher. Call Start before enqueuing events.
func NewDispatcher(cfg Config, store Store, logger *zap.Logger) *Dispatcher {
	cfg = cfg.withDefaults()
	return &Dispatcher{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: cfg.DeliveryTimeout},
		logger: logger,
		jobs:   make(chan job, cfg.QueueSize),
		now:    time.Now,
	}
}

// Start launches the delivery workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.baseCtx, d.cancel = context.WithCancel(ctx)
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	d.logger.Info("webhook dispatcher started", zap.Int("workers", d.cfg.Workers))
}

// Stop drains in-flight deliveries and waits for the workers to exit.
// Retry chains in progress are cut short; the sweeper picks them up.
// Safe to call more than once.
func (d *Dispatcher) Stop() {
	if d.cancel != nil {
		d.cancel()
	}
	d.mu.Lock()
	if !d.stopped {
		d.stopped = true
		close(d.jobs)
	}
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Info("webhook dispatcher stopped")
}

type eventPayload struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// OperationEvent enqueues one delivery chain per interested subscription.
// It never blocks the caller; if the queue is full the event is dropped
// and logged, the sweeper cannot recover it.
func (d *Dispatcher) OperationEvent(ctx context.Context, event string, op *operation.Operation) {
	subs, err := d.store.ListActiveSubscriptions(ctx)
	if err != nil {
		d.logger.Error("failed to list subscriptions for event",
			zap.String("event", event), zap.Error(err))
		metrics.ErrorsTotal.WithLabelValues("dispatcher", "list_subscriptions").Inc()
		return
	}

	payload, err := json.Marshal(&eventPayload{
		EventType: event,
		Timestamp: d.now().UTC(),
		Data:      op,
	})
	if err != nil {
		d.logger.Error("failed to marshal event payload", zap.Error(err))
		return
	}

	for _, sub := range subs {
		if !sub.WantsEvent(event) {
			continue
		}
		d.enqueue(job{
			subscription: sub,
			operationID:  op.ID,
			event:        event,
			payload:      payload,
			firstAttempt: 1,
		})
	}
}

// Resume continues a delivery chain from a recorded attempt, used by the
// sweeper after a crash left a scheduled retry unexecuted.
func (d *Dispatcher) Resume(ctx context.Context, attempt *DeliveryAttempt) error {
	sub, err := d.store.GetSubscription(ctx, attempt.SubscriptionID)
	if err != nil {
		return fmt.Errorf("load subscription %s: %w", attempt.SubscriptionID, err)
	}
	if !sub.Active {
		return nil
	}

	d.enqueue(job{
		subscription: sub,
		operationID:  attempt.OperationID,
		event:        attempt.Event,
		payload:      attempt.Payload,
		firstAttempt: attempt.AttemptNumber + 1,
	})
	return nil
}

func (d *Dispatcher) enqueue(j job) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		d.logger.Warn("dispatcher stopped, dropping event",
			zap.String("subscription_id", j.subscription.ID),
			zap.String("event", j.event))
		metrics.WebhookDeliveriesTotal.WithLabelValues("dropped").Inc()
		return
	}
	select {
	case d.jobs <- j:
	default:
		d.logger.Error("webhook queue full, dropping event",
			zap.String("subscription_id", j.subscription.ID),
			zap.String("event", j.event))
		metrics.WebhookDeliveriesTotal.WithLabelValues("dropped").Inc()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.runChain(j)
	}
}

// runChain walks the retry schedule for one subscription and event.
func (d *Dispatcher) runChain(j job) {
	for attempt := j.firstAttempt; attempt <= d.cfg.MaxAttempts; attempt++ {
		record := d.deliver(j, attempt)

		if !record.Succeeded && attempt < d.cfg.MaxAttempts {
			next := record.AttemptedAt.Add(d.cfg.Backoff(attempt))
			record.NextRetryAt = &next
		}
		d.persist(record, j.subscription.ID)

		if record.Succeeded {
			return
		}
		if attempt == d.cfg.MaxAttempts {
			d.logger.Error("webhook delivery permanently failed",
				zap.String("subscription_id", j.subscription.ID),
				zap.String("event", j.event),
				zap.Int("attempts", attempt))
			metrics.WebhookDeliveriesTotal.WithLabelValues("exhausted").Inc()
			return
		}

		select {
		case <-d.baseCtx.Done():
			// Shutdown mid-chain; the recorded next_retry_at lets the
			// sweeper resume where we stopped.
			return
		case <-time.After(d.cfg.Backoff(attempt)):
		}
	}
}

func (d *Dispatcher) deliver(j job, attempt int) *DeliveryAttempt {
	record := &DeliveryAttempt{
		SubscriptionID: j.subscription.ID,
		OperationID:    j.operationID,
		Event:          j.event,
		Payload:        j.payload,
		AttemptNumber:  attempt,
		AttemptedAt:    d.now(),
	}

	ctx, cancel := context.WithTimeout(d.baseCtx, d.cfg.DeliveryTimeout)
	defer cancel()

	start := d.now()
	statusCode, err := d.post(ctx, j.subscription, j.payload, j.event)
	elapsed := time.Since(start)

	record.ResponseTimeMs = elapsed.Milliseconds()
	record.StatusCode = statusCode
	metrics.WebhookDeliveryDuration.Observe(elapsed.Seconds())

	switch {
	case err != nil:
		record.Error = err.Error()
		metrics.WebhookDeliveriesTotal.WithLabelValues("failure").Inc()
	case statusCode < 200 || statusCode > 299:
		record.Error = fmt.Sprintf("unexpected status %d", statusCode)
		metrics.WebhookDeliveriesTotal.WithLabelValues("failure").Inc()
	default:
		record.Succeeded = true
		metrics.WebhookDeliveriesTotal.WithLabelValues("success").Inc()
	}

	if !record.Succeeded {
		d.logger.Warn("webhook delivery attempt failed",
			zap.String("subscription_id", j.subscription.ID),
			zap.String("event", j.event),
			zap.Int("attempt", attempt),
			zap.Int("status_code", statusCode),
			zap.String("error", record.Error))
	}
	return record
}

func (d *Dispatcher) post(ctx context.Context, sub *Subscription, payload []byte, event string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build delivery request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Event", event)
	req.Header.Set(SignatureHeader, Sign(sub.Secret, payload))

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	return resp.StatusCode, nil
}

// persist records the attempt and bumps subscription stats. Audit failures
// must not interrupt the chain, so they are only logged.
func (d *Dispatcher) persist(record *DeliveryAttempt, subscriptionID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(d.baseCtx), 5*time.Second)
	defer cancel()

	if err := d.store.RecordAttempt(ctx, record); err != nil {
		d.logger.Error("failed to record delivery attempt",
			zap.String("subscription_id", subscriptionID), zap.Error(err))
		metrics.ErrorsTotal.WithLabelValues("dispatcher", "record_attempt").Inc()
	}
	if err := d.store.UpdateSubscriptionStats(ctx, subscriptionID, record.Succeeded, record.AttemptedAt); err != nil {
		d.logger.Error("failed to update subscription stats",
			zap.String("subscription_id", subscriptionID), zap.Error(err))
	}
}

// Package service implements the operation lifecycle business logic.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nexbridge/bridge-middleware/internal/metrics"
	apperrors "github.com/nexbridge/bridge-middleware/pkg/app/errors"
	"github.com/nexbridge/bridge-middleware/pkg/operation"
	"github.com/nexbridge/bridge-middleware/pkg/quote"
)

// Store is the narrow data-access interface for the operation service.
// Defined here to keep the service decoupled from opstore implementation
// details.
type Store interface {
	CreateOperation(ctx context.Context, op *operation.Operation) error
	GetOperation(ctx context.Context, id string) (*operation.Operation, error)
	// UpdateStatus applies the transition only if the stored status still
	// equals from, reporting whether a row changed.
	UpdateStatus(ctx context.Context, op *operation.Operation, from operation.Status) (bool, error)
}

// ResultSource resolves a ranked result by ID. Implemented by the
// aggregator's result cache lookup.
type ResultSource interface {
	GetResult(ctx context.Context, resultID string) (*quote.RankedResult, error)
}

// Notifier receives operation lifecycle events for webhook fan-out.
// Implementations must not block.
type Notifier interface {
	OperationEvent(ctx context.Context, event string, op *operation.Operation)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) OperationEvent(context.Context, string, *operation.Operation) {}

// CreateRequest commits one quote from a previously returned ranked result.
type CreateRequest struct {
	QuoteResultID string `json:"quote_result_id"`
	QuoteIndex    int    `json:"quote_index"`
	APIKeyID      string `json:"-"`
}

// AdvanceRequest moves an operation to its next status.
type AdvanceRequest struct {
	Status        operation.Status `json:"status"`
	FailureReason string           `json:"failure_reason,omitempty"`
}

// Service defines the operation lifecycle interface.
type Service interface {
	Create(ctx context.Context, req *CreateRequest) (*operation.Operation, error)
	Get(ctx context.Context, id string) (*operation.Operation, error)
	Advance(ctx context.Context, id string, req *AdvanceRequest) (*operation.Operation, error)
}

type operationService struct {
	store    Store
	results  ResultSource
	notifier Notifier
	logger   *zap.Logger

	locks keyedMutex
	now   func() time.Time
	newID func() string
}

// NewService creates the operation service.
func NewService(store Store, results ResultSource, notifier Notifier, logger *zap.Logger) Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &operationService{
		store:    store,
		results:  results,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// Create pins the chosen quote into a new operation in status CREATED.
// The ranked result must still be within its validity window.
func (s *operationService) Create(ctx context.Context, req *CreateRequest) (*operation.Operation, error) {
	if req.QuoteResultID == "" {
		return nil, apperrors.BadRequestError(nil, "quote_result_id is required")
	}

	result, err := s.results.GetResult(ctx, req.QuoteResultID)
	if err != nil {
		if errors.Is(err, quote.ErrResultExpired) {
			return nil, apperrors.BadRequestError(err, "quote result expired, request fresh quotes")
		}
		return nil, fmt.Errorf("resolve quote result: %w", err)
	}

	chosen, err := result.QuoteAt(req.QuoteIndex)
	if err != nil {
		return nil, apperrors.BadRequestError(err, "quote_index out of range")
	}

	now := s.now()
	op := &operation.Operation{
		ID:                   s.newID(),
		APIKeyID:             req.APIKeyID,
		QuoteResultID:        result.ID,
		QuoteIndex:           req.QuoteIndex,
		Provider:             chosen.Provider,
		SourceChain:          result.Request.SourceChain,
		DestinationChain:     result.Request.DestinationChain,
		SourceToken:          result.Request.SourceToken,
		DestinationToken:     result.Request.DestinationToken,
		Amount:               result.Request.Amount,
		TotalCostUSD:         chosen.TotalCostUSD,
		EstimatedTimeSeconds: chosen.EstimatedTimeSeconds,
		Status:               operation.StatusCreated,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	if err := s.store.CreateOperation(ctx, op); err != nil {
		return nil, fmt.Errorf("save operation: %w", err)
	}

	metrics.OperationsByStatus.WithLabelValues(string(operation.StatusCreated)).Inc()
	s.notifier.OperationEvent(ctx, operation.StatusCreated.EventName(), op)
	return op, nil
}

func (s *operationService) Get(ctx context.Context, id string) (*operation.Operation, error) {
	op, err := s.store.GetOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	return op, nil
}

// Advance applies one status transition. Transitions on the same operation
// are serialized; an illegal transition is rejected without touching the
// stored status.
func (s *operationService) Advance(ctx context.Context, id string, req *AdvanceRequest) (*operation.Operation, error) {
	if !req.Status.Valid() {
		return nil, apperrors.BadRequestError(nil, fmt.Sprintf("unknown status %q", req.Status))
	}

	unlock := s.locks.lock(id)
	defer unlock()

	op, err := s.store.GetOperation(ctx, id)
	if err != nil {
		return nil, err
	}

	from := op.Status
	if !operation.CanTransition(from, req.Status) {
		s.logger.Warn("status transition rejected",
			zap.String("operation_id", id),
			zap.String("from", string(from)),
			zap.String("to", string(req.Status)))
		return nil, apperrors.ConflictError(operation.ErrTransitionRejected,
			fmt.Sprintf("cannot transition from %s to %s", from, req.Status))
	}

	now := s.now()
	op.Status = req.Status
	op.UpdatedAt = now
	if req.Status == operation.StatusFailed {
		op.FailureReason = req.FailureReason
	}
	if req.Status.Terminal() {
		op.CompletedAt = &now
	}

	changed, err := s.store.UpdateStatus(ctx, op, from)
	if err != nil {
		return nil, fmt.Errorf("update operation status: %w", err)
	}
	if !changed {
		// Another process won the race; the guarded update saw a different
		// stored status.
		return nil, apperrors.ConflictError(operation.ErrTransitionRejected,
			"operation status changed concurrently")
	}

	metrics.OperationTransitions.WithLabelValues(string(from), string(req.Status)).Inc()
	metrics.OperationsByStatus.WithLabelValues(string(from)).Dec()
	metrics.OperationsByStatus.WithLabelValues(string(req.Status)).Inc()

	s.notifier.OperationEvent(ctx, req.Status.EventName(), op)
	return op, nil
}

// keyedMutex serializes work per operation ID. Entries are reference
// counted so the map does not grow with every operation ever seen.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(id string) func() {
	k.mu.Lock()
	if k.entries == nil {
		k.entries = make(map[string]*lockEntry)
	}
	e, ok := k.entries[id]
	if !ok {
		e = &lockEntry{}
		k.entries[id] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, id)
		}
		k.mu.Unlock()
	}
}

package opstore

import (
	"context"
	"errors"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/nexbridge/bridge-middleware/pkg/operation"
	"github.com/nexbridge/bridge-middleware/pkg/pgutil"
	mghelper "github.com/nexbridge/bridge-middleware/pkg/pgutil/migrations"
)

func setupStore(t *testing.T) (context.Context, *pgStore) {
	t.Helper()
	requireDockerAccess(t)

	ctx := context.Background()
	db, cleanup := pgutil.SetupTestDB(t)
	t.Cleanup(cleanup)

	if err := mghelper.CreateSchema(ctx, db, &OperationDao{}); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	return ctx, NewStore(db)
}

func requireDockerAccess(t *testing.T) {
	t.Helper()

	candidates := []string{
		"/var/run/docker.sock",
		filepath.Join(os.Getenv("HOME"), ".docker/run/docker.sock"),
	}

	for _, sock := range candidates {
		if sock == "" {
			continue
		}
		if _, err := os.Stat(sock); err != nil {
			continue
		}
		conn, err := (&net.Dialer{}).DialContext(context.Background(), "unix", sock)
		if err == nil {
			_ = conn.Close()
			return
		}
	}

	t.Skip("docker daemon socket is not accessible; skipping testcontainer-backed opstore tests")
}

func newTestOperation(apiKeyID string) *operation.Operation {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &operation.Operation{
		ID:                   uuid.NewString(),
		APIKeyID:             apiKeyID,
		QuoteResultID:        uuid.NewString(),
		QuoteIndex:           0,
		Provider:             "relaybridge",
		SourceChain:          "ethereum",
		DestinationChain:     "polygon",
		SourceToken:          "USDC",
		DestinationToken:     "USDC",
		Amount:               big.NewInt(5_000_000),
		TotalCostUSD:         decimal.RequireFromString("12.5"),
		EstimatedTimeSeconds: 300,
		Status:               operation.StatusCreated,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

func TestOperationPGStore_CreateAndGet(t *testing.T) {
	ctx, s := setupStore(t)

	op := newTestOperation(uuid.NewString())
	if err := s.CreateOperation(ctx, op); err != nil {
		t.Fatalf("CreateOperation() failed: %v", err)
	}

	got, err := s.GetOperation(ctx, op.ID)
	if err != nil {
		t.Fatalf("GetOperation() failed: %v", err)
	}

	if got.Provider != "relaybridge" {
		t.Fatalf("expected provider %q, got %q", "relaybridge", got.Provider)
	}
	if got.Amount.Cmp(big.NewInt(5_000_000)) != 0 {
		t.Fatalf("amount round trip failed: got %s", got.Amount)
	}
	if !got.TotalCostUSD.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("cost round trip failed: got %s", got.TotalCostUSD)
	}
	if got.Status != operation.StatusCreated {
		t.Fatalf("expected status CREATED, got %s", got.Status)
	}
	if got.APIKeyID != op.APIKeyID {
		t.Fatalf("expected api key %q, got %q", op.APIKeyID, got.APIKeyID)
	}
}

func TestOperationPGStore_LargeAmountRoundTrip(t *testing.T) {
	ctx, s := setupStore(t)

	// 2^200, well beyond int64.
	amount := new(big.Int).Lsh(big.NewInt(1), 200)
	op := newTestOperation(uuid.NewString())
	op.Amount = amount

	if err := s.CreateOperation(ctx, op); err != nil {
		t.Fatalf("CreateOperation() failed: %v", err)
	}

	got, err := s.GetOperation(ctx, op.ID)
	if err != nil {
		t.Fatalf("GetOperation() failed: %v", err)
	}
	if got.Amount.Cmp(amount) != 0 {
		t.Fatalf("large amount round trip failed: got %s want %s", got.Amount, amount)
	}
}

func TestOperationPGStore_GetUnknown(t *testing.T) {
	ctx, s := setupStore(t)

	_, err := s.GetOperation(ctx, uuid.NewString())
	if !errors.Is(err, ErrOperationNotFound) {
		t.Fatalf("expected ErrOperationNotFound, got %v", err)
	}
}

func TestOperationPGStore_UpdateStatusGuarded(t *testing.T) {
	ctx, s := setupStore(t)

	op := newTestOperation(uuid.NewString())
	if err := s.CreateOperation(ctx, op); err != nil {
		t.Fatalf("CreateOperation() failed: %v", err)
	}

	op.Status = operation.StatusSourceConfirmed
	op.UpdatedAt = time.Now().UTC()

	changed, err := s.UpdateStatus(ctx, op, operation.StatusCreated)
	if err != nil {
		t.Fatalf("UpdateStatus() failed: %v", err)
	}
	if !changed {
		t.Fatal("expected the guarded update to apply")
	}

	// Same guard again: the stored status is no longer CREATED.
	changed, err = s.UpdateStatus(ctx, op, operation.StatusCreated)
	if err != nil {
		t.Fatalf("UpdateStatus() failed: %v", err)
	}
	if changed {
		t.Fatal("expected the stale guard to be rejected")
	}

	got, err := s.GetOperation(ctx, op.ID)
	if err != nil {
		t.Fatalf("GetOperation() failed: %v", err)
	}
	if got.Status != operation.StatusSourceConfirmed {
		t.Fatalf("expected status SOURCE_CONFIRMED, got %s", got.Status)
	}
}

func TestOperationPGStore_UpdateStatusTerminalFields(t *testing.T) {
	ctx, s := setupStore(t)

	op := newTestOperation(uuid.NewString())
	op.Status = operation.StatusInTransit
	if err := s.CreateOperation(ctx, op); err != nil {
		t.Fatalf("CreateOperation() failed: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	op.Status = operation.StatusFailed
	op.FailureReason = "destination tx reverted"
	op.UpdatedAt = now
	op.CompletedAt = &now

	changed, err := s.UpdateStatus(ctx, op, operation.StatusInTransit)
	if err != nil {
		t.Fatalf("UpdateStatus() failed: %v", err)
	}
	if !changed {
		t.Fatal("expected the transition to apply")
	}

	got, err := s.GetOperation(ctx, op.ID)
	if err != nil {
		t.Fatalf("GetOperation() failed: %v", err)
	}
	if got.FailureReason != "destination tx reverted" {
		t.Fatalf("expected failure reason to persist, got %q", got.FailureReason)
	}
	if got.CompletedAt == nil {
		t.Fatal("expected completed_at to be set")
	}
}

func TestOperationPGStore_ListByAPIKey(t *testing.T) {
	ctx, s := setupStore(t)

	keyID := uuid.NewString()
	for i := 0; i < 3; i++ {
		op := newTestOperation(keyID)
		op.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := s.CreateOperation(ctx, op); err != nil {
			t.Fatalf("CreateOperation() failed: %v", err)
		}
	}
	other := newTestOperation(uuid.NewString())
	if err := s.CreateOperation(ctx, other); err != nil {
		t.Fatalf("CreateOperation() failed: %v", err)
	}

	ops, err := s.ListOperationsByAPIKey(ctx, keyID, 2)
	if err != nil {
		t.Fatalf("ListOperationsByAPIKey() failed: %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("expected 2 operations, got %d", len(ops))
	}
	if !ops[0].CreatedAt.After(ops[1].CreatedAt) {
		t.Fatal("expected newest-first ordering")
	}
}

package opstore

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"github.com/nexbridge/bridge-middleware/pkg/operation"
)

// OperationDao is a data access object that maps directly to the
// 'operations' table in PostgreSQL. Amounts are stored as text so big
// integers survive the round trip unchanged.
type OperationDao struct {
	bun.BaseModel `bun:"table:operations,alias:o"`

	ID            string  `bun:"id,pk,type:uuid"`
	APIKeyID      *string `bun:"api_key_id,type:uuid"`
	QuoteResultID string  `bun:"quote_result_id,notnull,type:uuid"`
	QuoteIndex    int     `bun:"quote_index,notnull"`
	Provider      string  `bun:"provider,notnull,type:varchar(100)"`

	SourceChain      string `bun:"source_chain,notnull,type:varchar(50)"`
	DestinationChain string `bun:"destination_chain,notnull,type:varchar(50)"`
	SourceToken      string `bun:"source_token,notnull,type:varchar(50)"`
	DestinationToken string `bun:"destination_token,notnull,type:varchar(50)"`
	Amount           string `bun:"amount,notnull,type:numeric(78,0)"`

	TotalCostUSD         string `bun:"total_cost_usd,notnull,type:numeric(38,18)"`
	EstimatedTimeSeconds int64  `bun:"estimated_time_seconds,notnull"`

	Status        string  `bun:"status,notnull,type:varchar(30)"`
	FailureReason *string `bun:"failure_reason,type:varchar(500)"`

	CreatedAt   time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,default:current_timestamp"`
	CompletedAt *time.Time `bun:"completed_at"`
}

// toOperationDao converts an operation.Operation to OperationDao.
func toOperationDao(op *operation.Operation) *OperationDao {
	dao := &OperationDao{
		ID:                   op.ID,
		QuoteResultID:        op.QuoteResultID,
		QuoteIndex:           op.QuoteIndex,
		Provider:             op.Provider,
		SourceChain:          op.SourceChain,
		DestinationChain:     op.DestinationChain,
		SourceToken:          op.SourceToken,
		DestinationToken:     op.DestinationToken,
		TotalCostUSD:         op.TotalCostUSD.String(),
		EstimatedTimeSeconds: op.EstimatedTimeSeconds,
		Status:               string(op.Status),
		CreatedAt:            op.CreatedAt,
		UpdatedAt:            op.UpdatedAt,
		CompletedAt:          op.CompletedAt,
	}

	if op.APIKeyID != "" {
		dao.APIKeyID = &op.APIKeyID
	}
	if op.Amount != nil {
		dao.Amount = op.Amount.String()
	}
	if op.FailureReason != "" {
		dao.FailureReason = &op.FailureReason
	}

	return dao
}

// toOperation converts an OperationDao to operation.Operation.
func toOperation(dao *OperationDao) *operation.Operation {
	op := &operation.Operation{
		ID:                   dao.ID,
		QuoteResultID:        dao.QuoteResultID,
		QuoteIndex:           dao.QuoteIndex,
		Provider:             dao.Provider,
		SourceChain:          dao.SourceChain,
		DestinationChain:     dao.DestinationChain,
		SourceToken:          dao.SourceToken,
		DestinationToken:     dao.DestinationToken,
		EstimatedTimeSeconds: dao.EstimatedTimeSeconds,
		Status:               operation.Status(dao.Status),
		CreatedAt:            dao.CreatedAt,
		UpdatedAt:            dao.UpdatedAt,
		CompletedAt:          dao.CompletedAt,
	}

	if dao.APIKeyID != nil {
		op.APIKeyID = *dao.APIKeyID
	}
	if dao.Amount != "" {
		if amount, ok := new(big.Int).SetString(dao.Amount, 10); ok {
			op.Amount = amount
		}
	}
	if cost, err := decimal.NewFromString(dao.TotalCostUSD); err == nil {
		op.TotalCostUSD = cost
	}
	if dao.FailureReason != nil {
		op.FailureReason = *dao.FailureReason
	}

	return op
}

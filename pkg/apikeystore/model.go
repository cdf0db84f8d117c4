// Package apikeystore is the postgres persistence layer for API keys and
// rate-limit violations.
package apikeystore

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/nexbridge/bridge-middleware/pkg/apikey"
	"github.com/nexbridge/bridge-middleware/pkg/ratelimit"
)

// APIKeyDao is a data access object that maps directly to the 'api_keys'
// table in PostgreSQL.
type APIKeyDao struct {
	bun.BaseModel `bun:"table:api_keys,alias:k"`

	ID        string `bun:"id,pk,type:uuid"`
	KeyHash   string `bun:"key_hash,unique,notnull,type:varchar(64)"`
	Name      string `bun:"name,notnull,type:varchar(255)"`
	Tier      string `bun:"tier,notnull,type:varchar(50)"`
	PerMinute int    `bun:"per_minute,notnull"`
	PerHour   int    `bun:"per_hour,notnull"`
	PerDay    int    `bun:"per_day,notnull"`
	Active    bool   `bun:"active,notnull,default:true"`

	TotalRequests int64      `bun:"total_requests,notnull,default:0"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,default:current_timestamp"`
	LastUsedAt    *time.Time `bun:"last_used_at"`
}

// toKeyDao converts an apikey.Key to APIKeyDao.
func toKeyDao(key *apikey.Key) *APIKeyDao {
	return &APIKeyDao{
		ID:            key.ID,
		KeyHash:       key.KeyHash,
		Name:          key.Name,
		Tier:          key.Tier,
		PerMinute:     key.PerMinute,
		PerHour:       key.PerHour,
		PerDay:        key.PerDay,
		Active:        key.Active,
		TotalRequests: key.TotalRequests,
		CreatedAt:     key.CreatedAt,
		LastUsedAt:    key.LastUsedAt,
	}
}

// toKey converts an APIKeyDao to apikey.Key.
func toKey(dao *APIKeyDao) *apikey.Key {
	return &apikey.Key{
		ID:            dao.ID,
		KeyHash:       dao.KeyHash,
		Name:          dao.Name,
		Tier:          dao.Tier,
		PerMinute:     dao.PerMinute,
		PerHour:       dao.PerHour,
		PerDay:        dao.PerDay,
		Active:        dao.Active,
		TotalRequests: dao.TotalRequests,
		CreatedAt:     dao.CreatedAt,
		LastUsedAt:    dao.LastUsedAt,
	}
}

// ViolationDao is a data access object that maps directly to the
// 'rate_limit_violations' table in PostgreSQL.
type ViolationDao struct {
	bun.BaseModel `bun:"table:rate_limit_violations,alias:v"`

	ID         int64     `bun:"id,pk,autoincrement"`
	APIKeyID   string    `bun:"api_key_id,notnull,type:uuid"`
	Window     string    `bun:"window,notnull,type:varchar(20)"`
	Endpoint   string    `bun:"endpoint,notnull,type:varchar(255)"`
	Remaining  int       `bun:"remaining,notnull,default:0"`
	OccurredAt time.Time `bun:"occurred_at,nullzero,default:current_timestamp"`
}

// toViolationDao converts a ratelimit.Violation to ViolationDao.
func toViolationDao(v *ratelimit.Violation) *ViolationDao {
	return &ViolationDao{
		APIKeyID:   v.APIKeyID,
		Window:     string(v.Window),
		Endpoint:   v.Endpoint,
		Remaining:  v.Remaining,
		OccurredAt: v.OccurredAt,
	}
}

// toViolation converts a ViolationDao to ratelimit.Violation.
func toViolation(dao *ViolationDao) *ratelimit.Violation {
	return &ratelimit.Violation{
		APIKeyID:   dao.APIKeyID,
		Window:     ratelimit.Window(dao.Window),
		Endpoint:   dao.Endpoint,
		Remaining:  dao.Remaining,
		OccurredAt: dao.OccurredAt,
	}
}

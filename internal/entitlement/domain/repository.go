package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// FindForUpdate locks the pair's row for the reconciliation
	// transaction, active or not.
	FindForUpdate(ctx context.Context, db *gorm.DB, readerID, novelID snowflake.ID) (*Entitlement, error)
	// FindActiveAt is the read path: active flag set and window covering
	// the instant.
	FindActiveAt(ctx context.Context, db *gorm.DB, readerID, novelID snowflake.ID, at time.Time) (*Entitlement, error)
	FindBySubscriptionRef(ctx context.Context, db *gorm.DB, externalSubscriptionRef string) (*Entitlement, error)
	Insert(ctx context.Context, db *gorm.DB, ent *Entitlement) error
	// Update persists the mutated entitlement guarded by its version
	// counter. False means another writer got there first.
	Update(ctx context.Context, db *gorm.DB, ent *Entitlement) (bool, error)
	DisableAutoRenew(ctx context.Context, db *gorm.DB, id snowflake.ID, updatedAt time.Time) error
	DeactivateExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)
}

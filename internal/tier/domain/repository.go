package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	FindByLevel(ctx context.Context, db *gorm.DB, novelID snowflake.ID, tierLevel int) (*TierDefinition, error)
	// FindByPrice matches a tier by its exact monthly price, used when a
	// payment confirmation arrives without an explicit tier level.
	FindByPrice(ctx context.Context, db *gorm.DB, novelID snowflake.ID, amountMinor int64) (*TierDefinition, error)
	ListActive(ctx context.Context, db *gorm.DB, novelID snowflake.ID) ([]TierDefinition, error)
	Insert(ctx context.Context, db *gorm.DB, tier *TierDefinition) error
	DeleteByNovel(ctx context.Context, db *gorm.DB, novelID snowflake.ID) error
	SetExternalPriceRef(ctx context.Context, db *gorm.DB, id snowflake.ID, ref string, updatedAt time.Time) error
	ListDefaults(ctx context.Context, db *gorm.DB) ([]DefaultTier, error)
}

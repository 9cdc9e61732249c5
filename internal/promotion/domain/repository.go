package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// FindActiveAt returns the promotion covering the instant, preferring
	// the deepest discount and breaking ties by most recent start.
	FindActiveAt(ctx context.Context, db *gorm.DB, novelID snowflake.ID, at time.Time) (*PromotionWindow, error)
	Insert(ctx context.Context, db *gorm.DB, window *PromotionWindow) error
	ListByNovel(ctx context.Context, db *gorm.DB, novelID snowflake.ID) ([]PromotionWindow, error)
	SetExternalDiscountRef(ctx context.Context, db *gorm.DB, id snowflake.ID, ref string, updatedAt time.Time) error
}

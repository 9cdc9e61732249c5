package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// MaxReleased returns the highest released, approved chapter number
	// excluding advance-only chapters. Zero when nothing is published.
	MaxReleased(ctx context.Context, db *gorm.DB, novelID snowflake.ID) (int64, error)
	// MaxReleasedIncludingAdvance returns the highest released, approved
	// chapter number counting advance chapters too.
	MaxReleasedIncludingAdvance(ctx context.Context, db *gorm.DB, novelID snowflake.ID) (int64, error)
	Insert(ctx context.Context, db *gorm.DB, chapter *Chapter) error
}

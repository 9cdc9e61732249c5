package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, record *ChangeRecord) error
	FindByTransactionRef(ctx context.Context, db *gorm.DB, transactionRef string) (*ChangeRecord, error)
	ListByReader(ctx context.Context, db *gorm.DB, readerID, novelID snowflake.ID) ([]ChangeRecord, error)
}

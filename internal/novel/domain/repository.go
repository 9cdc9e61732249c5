package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

var ErrNovelNotFound = errors.New("novel_not_found")

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Novel, error)
	Insert(ctx context.Context, db *gorm.DB, novel *Novel) error
}

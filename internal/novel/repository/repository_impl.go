package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	noveldomain "github.com/shi0417/kongfuworld-champion/internal/novel/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() noveldomain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*noveldomain.Novel, error) {
	var novel noveldomain.Novel
	err := db.WithContext(ctx).Raw(
		`SELECT id, title, author_id, champion_enabled, created_at, updated_at
		FROM novels WHERE id = ?`,
		id,
	).First(&novel).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &novel, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, novel *noveldomain.Novel) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO novels (id, title, author_id, champion_enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		novel.ID,
		novel.Title,
		novel.AuthorID,
		novel.ChampionEnabled,
		novel.CreatedAt,
		novel.UpdatedAt,
	).Error
}

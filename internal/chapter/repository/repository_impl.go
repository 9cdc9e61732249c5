package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	chapterdomain "github.com/shi0417/kongfuworld-champion/internal/chapter/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() chapterdomain.Repository {
	return &repo{}
}

func (r *repo) MaxReleased(ctx context.Context, db *gorm.DB, novelID snowflake.ID) (int64, error) {
	var max int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(chapter_number), 0) FROM chapters
		WHERE novel_id = ? AND is_released = ? AND review_status = ? AND is_advance = ?`,
		novelID, true, chapterdomain.ReviewStatusApproved, false,
	).Scan(&max).Error
	return max, err
}

func (r *repo) MaxReleasedIncludingAdvance(ctx context.Context, db *gorm.DB, novelID snowflake.ID) (int64, error) {
	var max int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(MAX(chapter_number), 0) FROM chapters
		WHERE novel_id = ? AND is_released = ? AND review_status = ?`,
		novelID, true, chapterdomain.ReviewStatusApproved,
	).Scan(&max).Error
	return max, err
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, chapter *chapterdomain.Chapter) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO chapters (
			id, novel_id, chapter_number, title, is_released, is_advance,
			review_status, released_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		chapter.ID,
		chapter.NovelID,
		chapter.ChapterNumber,
		chapter.Title,
		chapter.IsReleased,
		chapter.IsAdvance,
		chapter.ReviewStatus,
		chapter.ReleasedAt,
		chapter.CreatedAt,
		chapter.UpdatedAt,
	).Error
}

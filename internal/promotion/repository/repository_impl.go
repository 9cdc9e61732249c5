package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	promotiondomain "github.com/shi0417/kongfuworld-champion/internal/promotion/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() promotiondomain.Repository {
	return &repo{}
}

const promotionColumns = `id, novel_id, status, discount_value, start_at, end_at,
	external_discount_ref, created_by, created_role, created_at, updated_at`

func (r *repo) FindActiveAt(ctx context.Context, db *gorm.DB, novelID snowflake.ID, at time.Time) (*promotiondomain.PromotionWindow, error) {
	var window promotiondomain.PromotionWindow
	err := db.WithContext(ctx).Raw(
		`SELECT `+promotionColumns+` FROM pricing_promotions
		WHERE novel_id = ? AND status IN (?, ?) AND start_at <= ? AND end_at >= ?
		ORDER BY discount_value ASC, start_at DESC LIMIT 1`,
		novelID,
		promotiondomain.PromotionStatusScheduled,
		promotiondomain.PromotionStatusActive,
		at, at,
	).First(&window).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &window, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, window *promotiondomain.PromotionWindow) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO pricing_promotions (`+promotionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		window.ID,
		window.NovelID,
		window.Status,
		window.DiscountValue,
		window.StartAt,
		window.EndAt,
		window.ExternalDiscountRef,
		window.CreatedBy,
		window.CreatedRole,
		window.CreatedAt,
		window.UpdatedAt,
	).Error
}

func (r *repo) ListByNovel(ctx context.Context, db *gorm.DB, novelID snowflake.ID) ([]promotiondomain.PromotionWindow, error) {
	var windows []promotiondomain.PromotionWindow
	err := db.WithContext(ctx).Raw(
		`SELECT `+promotionColumns+` FROM pricing_promotions
		WHERE novel_id = ?
		ORDER BY start_at DESC`,
		novelID,
	).Scan(&windows).Error
	if err != nil {
		return nil, err
	}
	return windows, nil
}

func (r *repo) SetExternalDiscountRef(ctx context.Context, db *gorm.DB, id snowflake.ID, ref string, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pricing_promotions SET external_discount_ref = ?, updated_at = ? WHERE id = ?`,
		ref, updatedAt, id,
	).Error
}

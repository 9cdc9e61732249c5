package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	tierdomain "github.com/shi0417/kongfuworld-champion/internal/tier/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() tierdomain.Repository {
	return &repo{}
}

const tierColumns = `id, novel_id, tier_level, tier_name, monthly_price_minor, currency,
	advance_chapters, external_price_ref, is_active, sort_order, created_at, updated_at`

func (r *repo) FindByLevel(ctx context.Context, db *gorm.DB, novelID snowflake.ID, tierLevel int) (*tierdomain.TierDefinition, error) {
	var tier tierdomain.TierDefinition
	err := db.WithContext(ctx).Raw(
		`SELECT `+tierColumns+` FROM champion_tiers
		WHERE novel_id = ? AND tier_level = ? AND is_active = ?`,
		novelID, tierLevel, true,
	).First(&tier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tier, nil
}

func (r *repo) FindByPrice(ctx context.Context, db *gorm.DB, novelID snowflake.ID, amountMinor int64) (*tierdomain.TierDefinition, error) {
	var tier tierdomain.TierDefinition
	err := db.WithContext(ctx).Raw(
		`SELECT `+tierColumns+` FROM champion_tiers
		WHERE novel_id = ? AND monthly_price_minor = ? AND is_active = ?
		ORDER BY tier_level ASC LIMIT 1`,
		novelID, amountMinor, true,
	).First(&tier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tier, nil
}

func (r *repo) ListActive(ctx context.Context, db *gorm.DB, novelID snowflake.ID) ([]tierdomain.TierDefinition, error) {
	var tiers []tierdomain.TierDefinition
	err := db.WithContext(ctx).Raw(
		`SELECT `+tierColumns+` FROM champion_tiers
		WHERE novel_id = ? AND is_active = ?
		ORDER BY sort_order ASC, tier_level ASC`,
		novelID, true,
	).Scan(&tiers).Error
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tier *tierdomain.TierDefinition) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO champion_tiers (`+tierColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tier.ID,
		tier.NovelID,
		tier.TierLevel,
		tier.TierName,
		tier.MonthlyPriceMinor,
		tier.Currency,
		tier.AdvanceChapters,
		tier.ExternalPriceRef,
		tier.IsActive,
		tier.SortOrder,
		tier.CreatedAt,
		tier.UpdatedAt,
	).Error
}

func (r *repo) DeleteByNovel(ctx context.Context, db *gorm.DB, novelID snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`DELETE FROM champion_tiers WHERE novel_id = ?`,
		novelID,
	).Error
}

func (r *repo) SetExternalPriceRef(ctx context.Context, db *gorm.DB, id snowflake.ID, ref string, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE champion_tiers SET external_price_ref = ?, updated_at = ? WHERE id = ?`,
		ref, updatedAt, id,
	).Error
}

func (r *repo) ListDefaults(ctx context.Context, db *gorm.DB) ([]tierdomain.DefaultTier, error) {
	var defaults []tierdomain.DefaultTier
	err := db.WithContext(ctx).Raw(
		`SELECT id, tier_level, tier_name, monthly_price_minor, currency,
			advance_chapters, sort_order, created_at, updated_at
		FROM default_champion_tiers
		ORDER BY sort_order ASC, tier_level ASC`,
	).Scan(&defaults).Error
	if err != nil {
		return nil, err
	}
	return defaults, nil
}

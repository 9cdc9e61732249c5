package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	entitlementdomain "github.com/shi0417/kongfuworld-champion/internal/entitlement/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() entitlementdomain.Repository {
	return &repo{}
}

const entitlementColumns = `id, reader_id, novel_id, tier_level, tier_name, base_price_minor, currency,
	window_start, window_end, payment_method, auto_renew, is_active,
	external_subscription_ref, external_customer_ref, version, created_at, updated_at`

func (r *repo) FindForUpdate(ctx context.Context, db *gorm.DB, readerID, novelID snowflake.ID) (*entitlementdomain.Entitlement, error) {
	var ent entitlementdomain.Entitlement
	err := db.WithContext(ctx).Raw(
		`SELECT `+entitlementColumns+` FROM champion_entitlements
		WHERE reader_id = ? AND novel_id = ?
		FOR UPDATE`,
		readerID, novelID,
	).First(&ent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ent, nil
}

func (r *repo) FindActiveAt(ctx context.Context, db *gorm.DB, readerID, novelID snowflake.ID, at time.Time) (*entitlementdomain.Entitlement, error) {
	var ent entitlementdomain.Entitlement
	err := db.WithContext(ctx).Raw(
		`SELECT `+entitlementColumns+` FROM champion_entitlements
		WHERE reader_id = ? AND novel_id = ? AND is_active = ? AND window_end > ?`,
		readerID, novelID, true, at,
	).First(&ent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ent, nil
}

func (r *repo) FindBySubscriptionRef(ctx context.Context, db *gorm.DB, externalSubscriptionRef string) (*entitlementdomain.Entitlement, error) {
	var ent entitlementdomain.Entitlement
	err := db.WithContext(ctx).Raw(
		`SELECT `+entitlementColumns+` FROM champion_entitlements
		WHERE external_subscription_ref = ? LIMIT 1`,
		externalSubscriptionRef,
	).First(&ent).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &ent, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, ent *entitlementdomain.Entitlement) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO champion_entitlements (`+entitlementColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ent.ID,
		ent.ReaderID,
		ent.NovelID,
		ent.TierLevel,
		ent.TierName,
		ent.BasePriceMinor,
		ent.Currency,
		ent.WindowStart,
		ent.WindowEnd,
		ent.PaymentMethod,
		ent.AutoRenew,
		ent.IsActive,
		ent.ExternalSubscriptionRef,
		ent.ExternalCustomerRef,
		ent.Version,
		ent.CreatedAt,
		ent.UpdatedAt,
	).Error
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, ent *entitlementdomain.Entitlement) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE champion_entitlements SET
			tier_level = ?, tier_name = ?, base_price_minor = ?, currency = ?,
			window_start = ?, window_end = ?, payment_method = ?, auto_renew = ?,
			is_active = ?, external_subscription_ref = ?, external_customer_ref = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		ent.TierLevel,
		ent.TierName,
		ent.BasePriceMinor,
		ent.Currency,
		ent.WindowStart,
		ent.WindowEnd,
		ent.PaymentMethod,
		ent.AutoRenew,
		ent.IsActive,
		ent.ExternalSubscriptionRef,
		ent.ExternalCustomerRef,
		ent.UpdatedAt,
		ent.ID,
		ent.Version,
	)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	ent.Version++
	return true, nil
}

func (r *repo) DisableAutoRenew(ctx context.Context, db *gorm.DB, id snowflake.ID, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE champion_entitlements SET auto_renew = ?, version = version + 1, updated_at = ?
		WHERE id = ?`,
		false, updatedAt, id,
	).Error
}

func (r *repo) DeactivateExpired(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE champion_entitlements SET is_active = ?, version = version + 1, updated_at = ?
		WHERE is_active = ? AND window_end <= ?`,
		false, now, true, now,
	)
	return result.RowsAffected, result.Error
}

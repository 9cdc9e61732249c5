package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/shi0417/kongfuworld-champion/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() ledgerdomain.Repository {
	return &repo{}
}

const changeRecordColumns = `id, entitlement_id, reader_id, novel_id, payment_record_id, transition,
	tier_level, tier_name, base_price_minor, charged_minor, discount_minor, currency,
	renewal_days, window_start, window_end, before_state, after_state,
	transaction_ref, payment_method, card_fingerprint, external_subscription_ref,
	external_customer_ref, promotion_id, occurred_at, created_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *ledgerdomain.ChangeRecord) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO entitlement_change_records (`+changeRecordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID,
		record.EntitlementID,
		record.ReaderID,
		record.NovelID,
		record.PaymentRecordID,
		record.Transition,
		record.TierLevel,
		record.TierName,
		record.BasePriceMinor,
		record.ChargedMinor,
		record.DiscountMinor,
		record.Currency,
		record.RenewalDays,
		record.WindowStart,
		record.WindowEnd,
		record.BeforeState,
		record.AfterState,
		record.TransactionRef,
		record.PaymentMethod,
		record.CardFingerprint,
		record.ExternalSubscriptionRef,
		record.ExternalCustomerRef,
		record.PromotionID,
		record.OccurredAt,
		record.CreatedAt,
	).Error
}

func (r *repo) FindByTransactionRef(ctx context.Context, db *gorm.DB, transactionRef string) (*ledgerdomain.ChangeRecord, error) {
	var record ledgerdomain.ChangeRecord
	err := db.WithContext(ctx).Raw(
		`SELECT `+changeRecordColumns+` FROM entitlement_change_records
		WHERE transaction_ref = ? LIMIT 1`,
		transactionRef,
	).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *repo) ListByReader(ctx context.Context, db *gorm.DB, readerID, novelID snowflake.ID) ([]ledgerdomain.ChangeRecord, error) {
	query := `SELECT ` + changeRecordColumns + ` FROM entitlement_change_records
		WHERE reader_id = ?`
	args := []any{readerID}
	if novelID != 0 {
		query += ` AND novel_id = ?`
		args = append(args, novelID)
	}
	query += ` ORDER BY occurred_at DESC, id DESC`

	var records []ledgerdomain.ChangeRecord
	err := db.WithContext(ctx).Raw(query, args...).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

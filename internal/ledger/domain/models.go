// Package domain contains the immutable entitlement change ledger.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	entitlementdomain "github.com/shi0417/kongfuworld-champion/internal/entitlement/domain"
	"gorm.io/datatypes"
)

// ChangeRecord is one reconciliation written to the audit ledger.
// Rows are never updated or deleted.
type ChangeRecord struct {
	ID              snowflake.ID                     `gorm:"primaryKey"`
	EntitlementID   snowflake.ID                     `gorm:"not null;index"`
	ReaderID        snowflake.ID                     `gorm:"not null;index"`
	NovelID         snowflake.ID                     `gorm:"not null;index"`
	PaymentRecordID snowflake.ID                     `gorm:"index"`
	Transition      entitlementdomain.TransitionType `gorm:"type:text;not null"`

	TierLevel int    `gorm:"not null"`
	TierName  string `gorm:"type:text;not null"`

	BasePriceMinor int64  `gorm:"not null"`
	ChargedMinor   int64  `gorm:"not null"`
	DiscountMinor  int64  `gorm:"not null"`
	Currency       string `gorm:"type:text;not null"`

	RenewalDays int       `gorm:"not null"`
	WindowStart time.Time `gorm:"not null"`
	WindowEnd   time.Time `gorm:"not null"`

	BeforeState datatypes.JSON `gorm:"type:jsonb"`
	AfterState  datatypes.JSON `gorm:"type:jsonb"`

	TransactionRef          *string       `gorm:"type:text;uniqueIndex:ux_change_records_transaction_ref"`
	PaymentMethod           string        `gorm:"type:text"`
	CardFingerprint         *string       `gorm:"type:text"`
	ExternalSubscriptionRef *string       `gorm:"type:text"`
	ExternalCustomerRef     *string       `gorm:"type:text"`
	PromotionID             *snowflake.ID `gorm:"index"`

	OccurredAt time.Time `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (ChangeRecord) TableName() string { return "entitlement_change_records" }

// Package domain contains the champion entitlement state machine and
// its persistence model.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Payment methods recognized on confirmations.
const (
	PaymentMethodStripe  = "stripe"
	PaymentMethodPayPal  = "paypal"
	PaymentMethodBalance = "balance"
)

// GatewayKind distinguishes one-shot captures from provider-managed
// recurring billing.
type GatewayKind string

const (
	GatewayKindOneShot   GatewayKind = "one_shot"
	GatewayKindRecurring GatewayKind = "recurring"
)

// Entitlement is a reader's paid access window on one novel. At most one
// row exists per (reader, novel) pair.
type Entitlement struct {
	ID                      snowflake.ID `gorm:"primaryKey"`
	ReaderID                snowflake.ID `gorm:"not null;uniqueIndex:ux_champion_entitlements_reader_novel,priority:1"`
	NovelID                 snowflake.ID `gorm:"not null;index;uniqueIndex:ux_champion_entitlements_reader_novel,priority:2"`
	TierLevel               int          `gorm:"not null"`
	TierName                string       `gorm:"type:text;not null"`
	BasePriceMinor          int64        `gorm:"not null"`
	Currency                string       `gorm:"type:text;not null"`
	WindowStart             time.Time    `gorm:"not null"`
	WindowEnd               time.Time    `gorm:"not null;index"`
	PaymentMethod           string       `gorm:"type:text;not null"`
	AutoRenew               bool         `gorm:"not null;default:false"`
	IsActive                bool         `gorm:"not null;default:true"`
	ExternalSubscriptionRef *string      `gorm:"type:text;index"`
	ExternalCustomerRef     *string      `gorm:"type:text"`
	Version                 int64        `gorm:"not null;default:0"`
	CreatedAt               time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt               time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Entitlement) TableName() string { return "champion_entitlements" }

// Snapshot is the entitlement state captured around a reconciliation.
type Snapshot struct {
	TierLevel   int        `json:"tier_level"`
	TierName    string     `json:"tier_name"`
	WindowStart *time.Time `json:"window_start,omitempty"`
	WindowEnd   *time.Time `json:"window_end,omitempty"`
	AutoRenew   bool       `json:"auto_renew"`
}

// SnapshotOf captures the audit-relevant fields of an entitlement.
func SnapshotOf(ent *Entitlement) *Snapshot {
	if ent == nil {
		return nil
	}
	start := ent.WindowStart
	end := ent.WindowEnd
	return &Snapshot{
		TierLevel:   ent.TierLevel,
		TierName:    ent.TierName,
		WindowStart: &start,
		WindowEnd:   &end,
		AutoRenew:   ent.AutoRenew,
	}
}

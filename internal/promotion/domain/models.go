// Package domain contains persistence models for pricing promotions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PromotionStatus represents lifecycle states for a promotion window.
type PromotionStatus string

const (
	PromotionStatusScheduled PromotionStatus = "scheduled"
	PromotionStatusActive    PromotionStatus = "active"
	PromotionStatusEnded     PromotionStatus = "ended"
	PromotionStatusCanceled  PromotionStatus = "canceled"
)

// PromotionWindow is a time-bounded discount on a novel's tiers.
// DiscountValue is the multiplier applied to the base price: 0.8 charges
// 80% of base, 0 makes the purchase free, values >= 1 are inert.
type PromotionWindow struct {
	ID                  snowflake.ID    `gorm:"primaryKey"`
	NovelID             snowflake.ID    `gorm:"not null;index"`
	Status              PromotionStatus `gorm:"type:text;not null"`
	DiscountValue       float64         `gorm:"not null"`
	StartAt             time.Time       `gorm:"not null"`
	EndAt               time.Time       `gorm:"not null"`
	ExternalDiscountRef *string         `gorm:"type:text"`
	CreatedBy           snowflake.ID    `gorm:"index"`
	CreatedRole         string          `gorm:"type:text"`
	CreatedAt           time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PromotionWindow) TableName() string { return "pricing_promotions" }

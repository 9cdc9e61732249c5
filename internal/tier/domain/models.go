// Package domain contains persistence models for champion tiers.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// TierDefinition is one paid level of a novel's champion program.
// Amounts are minor currency units.
type TierDefinition struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	NovelID           snowflake.ID `gorm:"not null;index;uniqueIndex:ux_champion_tiers_novel_level,priority:1"`
	TierLevel         int          `gorm:"not null;uniqueIndex:ux_champion_tiers_novel_level,priority:2"`
	TierName          string       `gorm:"type:text;not null"`
	MonthlyPriceMinor int64        `gorm:"not null"`
	Currency          string       `gorm:"type:text;not null"`
	AdvanceChapters   int          `gorm:"not null;default:0"`
	ExternalPriceRef  *string      `gorm:"type:text"`
	IsActive          bool         `gorm:"not null;default:true"`
	SortOrder         int          `gorm:"not null;default:0"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TierDefinition) TableName() string { return "champion_tiers" }

// DefaultTier seeds new novels that have no custom tier ladder yet.
type DefaultTier struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	TierLevel         int          `gorm:"not null;unique"`
	TierName          string       `gorm:"type:text;not null"`
	MonthlyPriceMinor int64        `gorm:"not null"`
	Currency          string       `gorm:"type:text;not null"`
	AdvanceChapters   int          `gorm:"not null;default:0"`
	SortOrder         int          `gorm:"not null;default:0"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (DefaultTier) TableName() string { return "default_champion_tiers" }

// Package domain contains persistence models for chapters.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Review states a chapter moves through before it counts as published.
const (
	ReviewStatusPending  = "pending"
	ReviewStatusApproved = "approved"
	ReviewStatusRejected = "rejected"
)

// Chapter is a single installment of a novel. Advance chapters are
// released early for paying readers only.
type Chapter struct {
	ID            snowflake.ID `gorm:"primaryKey"`
	NovelID       snowflake.ID `gorm:"not null;index;uniqueIndex:ux_chapters_novel_number,priority:1"`
	ChapterNumber int64        `gorm:"not null;uniqueIndex:ux_chapters_novel_number,priority:2"`
	Title         string       `gorm:"type:text"`
	IsReleased    bool         `gorm:"not null;default:false"`
	IsAdvance     bool         `gorm:"not null;default:false"`
	ReviewStatus  string       `gorm:"type:text;not null;default:pending"`
	ReleasedAt    *time.Time   `gorm:""`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Chapter) TableName() string { return "chapters" }

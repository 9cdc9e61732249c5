// Package domain contains persistence models for novels.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Novel is a serialized work readers subscribe to.
type Novel struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	Title           string       `gorm:"type:text;not null"`
	AuthorID        snowflake.ID `gorm:"index"`
	ChampionEnabled bool         `gorm:"not null;default:false"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Novel) TableName() string { return "novels" }

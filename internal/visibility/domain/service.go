// Package domain describes chapter visibility for readers.
package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidNovel  = errors.New("invalid_novel")
	ErrNovelNotFound = errors.New("novel_not_found")
)

// Result describes how far into a novel a reader may browse.
type Result struct {
	NovelID               snowflake.ID
	ChampionEnabled       bool
	HasEntitlement        bool
	TierLevel             int
	AdvanceChapters       int
	BaseMaxChapter        int64
	AllReleasedMaxChapter int64
	VisibleMaxChapter     int64
}

// ComputeRequest identifies the novel and the (optional) reader asking.
type ComputeRequest struct {
	NovelID  snowflake.ID
	ReaderID *snowflake.ID
}

type Service interface {
	Compute(ctx context.Context, req ComputeRequest) (Result, error)
}

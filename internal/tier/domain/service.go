package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidNovel   = errors.New("invalid_novel")
	ErrInvalidTier    = errors.New("invalid_tier")
	ErrTierNotFound   = errors.New("tier_not_found")
	ErrDuplicateLevel = errors.New("duplicate_tier_level")
)

// ResolveRequest identifies a tier by novel and level.
type ResolveRequest struct {
	NovelID   snowflake.ID
	TierLevel int
}

// ResolveByPriceRequest matches a tier by the amount actually charged.
type ResolveByPriceRequest struct {
	NovelID     snowflake.ID
	AmountMinor int64
}

// TierSpec is one row of a replacement tier ladder.
type TierSpec struct {
	TierLevel         int
	TierName          string
	MonthlyPriceMinor int64
	Currency          string
	AdvanceChapters   int
	SortOrder         int
}

// ReplaceTiersRequest swaps a novel's entire tier ladder atomically.
type ReplaceTiersRequest struct {
	NovelID snowflake.ID
	Tiers   []TierSpec
}

type Service interface {
	// Resolve returns the tier with a valid external price reference,
	// creating or recreating the reference when missing or stale.
	Resolve(ctx context.Context, req ResolveRequest) (*TierDefinition, error)
	ResolveByPrice(ctx context.Context, req ResolveByPriceRequest) (*TierDefinition, error)
	List(ctx context.Context, novelID snowflake.ID) ([]TierDefinition, error)
	// ApplyDefaults copies the default ladder onto a novel without tiers.
	ApplyDefaults(ctx context.Context, novelID snowflake.ID) ([]TierDefinition, error)
	ReplaceTiers(ctx context.Context, req ReplaceTiersRequest) ([]TierDefinition, error)
}

package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidNovel    = errors.New("invalid_novel")
	ErrInvalidPrice    = errors.New("invalid_price")
	ErrInvalidDiscount = errors.New("invalid_discount")
	ErrInvalidWindow   = errors.New("invalid_window")
)

// Quote is the effective manual-purchase price after promotions.
// Recurring renewals always bill the base price.
type Quote struct {
	BasePriceMinor      int64
	EffectivePriceMinor int64
	DiscountMinor       int64
	Currency            string
	PromotionID         *snowflake.ID
	DiscountValue       float64
	ExternalDiscountRef *string
}

// QuoteRequest prices one tier of a novel at an instant.
type QuoteRequest struct {
	NovelID        snowflake.ID
	BasePriceMinor int64
	Currency       string
	At             time.Time
}

// ScheduleRequest creates a promotion window.
type ScheduleRequest struct {
	NovelID       snowflake.ID
	DiscountValue float64
	Free          bool
	StartAt       time.Time
	EndAt         time.Time
	CreatedBy     snowflake.ID
	CreatedRole   string
}

type Service interface {
	// ResolveQuote applies the winning promotion window and lazily
	// materializes its external discount reference.
	ResolveQuote(ctx context.Context, req QuoteRequest) (Quote, error)
	// ActiveWindow returns the winning window without touching the
	// pricing gateway. Nil when no promotion covers the instant.
	ActiveWindow(ctx context.Context, novelID snowflake.ID, at time.Time) (*PromotionWindow, error)
	Schedule(ctx context.Context, req ScheduleRequest) (*PromotionWindow, error)
	ListByNovel(ctx context.Context, novelID snowflake.ID) ([]PromotionWindow, error)
}

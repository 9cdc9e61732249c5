package service

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shi0417/kongfuworld-champion/internal/clock"
	gatewaydomain "github.com/shi0417/kongfuworld-champion/internal/gateway/domain"
	promotiondomain "github.com/shi0417/kongfuworld-champion/internal/promotion/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Discounts below 30% of base are treated as operator mistakes.
const minDiscountValue = 0.3

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	repo    promotiondomain.Repository
	pricing gatewaydomain.PricingGateway
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    promotiondomain.Repository
	Pricing gatewaydomain.PricingGateway `optional:"true"`
}

func NewService(p Params) promotiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("promotion.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		pricing: p.Pricing,
	}
}

// ResolveQuote implements domain.Service.
func (s *Service) ResolveQuote(ctx context.Context, req promotiondomain.QuoteRequest) (promotiondomain.Quote, error) {
	if req.NovelID == 0 {
		return promotiondomain.Quote{}, promotiondomain.ErrInvalidNovel
	}
	if req.BasePriceMinor <= 0 {
		return promotiondomain.Quote{}, promotiondomain.ErrInvalidPrice
	}

	at := req.At
	if at.IsZero() {
		at = s.clock.Now()
	}

	quote := promotiondomain.Quote{
		BasePriceMinor:      req.BasePriceMinor,
		EffectivePriceMinor: req.BasePriceMinor,
		Currency:            strings.ToUpper(strings.TrimSpace(req.Currency)),
		DiscountValue:       1,
	}

	window, err := s.repo.FindActiveAt(ctx, s.db, req.NovelID, at)
	if err != nil {
		return promotiondomain.Quote{}, err
	}
	if window == nil || window.DiscountValue >= 1 {
		return quote, nil
	}

	quote.EffectivePriceMinor = DiscountedPrice(req.BasePriceMinor, window.DiscountValue)
	quote.DiscountMinor = req.BasePriceMinor - quote.EffectivePriceMinor
	quote.PromotionID = &window.ID
	quote.DiscountValue = window.DiscountValue

	// Free windows charge nothing, so no provider coupon exists for them.
	if window.DiscountValue > 0 {
		if err := s.ensureDiscountRef(ctx, window); err != nil {
			return promotiondomain.Quote{}, err
		}
		quote.ExternalDiscountRef = window.ExternalDiscountRef
	}

	return quote, nil
}

// DiscountedPrice applies a discount multiplier to a minor-unit price.
// Paid results round up and never drop below one minor unit.
func DiscountedPrice(baseMinor int64, discountValue float64) int64 {
	if discountValue <= 0 {
		return 0
	}
	if discountValue >= 1 {
		return baseMinor
	}
	discounted := int64(math.Ceil(float64(baseMinor) * discountValue))
	if discounted < 1 {
		discounted = 1
	}
	return discounted
}

// ActiveWindow implements domain.Service.
func (s *Service) ActiveWindow(ctx context.Context, novelID snowflake.ID, at time.Time) (*promotiondomain.PromotionWindow, error) {
	if novelID == 0 {
		return nil, promotiondomain.ErrInvalidNovel
	}
	if at.IsZero() {
		at = s.clock.Now()
	}
	return s.repo.FindActiveAt(ctx, s.db, novelID, at)
}

// Schedule implements domain.Service.
func (s *Service) Schedule(ctx context.Context, req promotiondomain.ScheduleRequest) (*promotiondomain.PromotionWindow, error) {
	if req.NovelID == 0 {
		return nil, promotiondomain.ErrInvalidNovel
	}

	discount := req.DiscountValue
	if req.Free {
		discount = 0
	} else if discount < minDiscountValue || discount > 1 {
		return nil, promotiondomain.ErrInvalidDiscount
	}

	if req.StartAt.IsZero() || req.EndAt.IsZero() || !req.StartAt.Before(req.EndAt) {
		return nil, promotiondomain.ErrInvalidWindow
	}

	now := s.clock.Now()
	status := promotiondomain.PromotionStatusScheduled
	if !req.StartAt.After(now) {
		status = promotiondomain.PromotionStatusActive
	}

	window := &promotiondomain.PromotionWindow{
		ID:            s.genID.Generate(),
		NovelID:       req.NovelID,
		Status:        status,
		DiscountValue: discount,
		StartAt:       req.StartAt.UTC(),
		EndAt:         req.EndAt.UTC(),
		CreatedBy:     req.CreatedBy,
		CreatedRole:   strings.TrimSpace(req.CreatedRole),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.repo.Insert(ctx, s.db, window); err != nil {
		return nil, err
	}

	s.log.Info("promotion scheduled",
		zap.Int64("novel_id", int64(req.NovelID)),
		zap.Float64("discount_value", discount),
		zap.Time("start_at", window.StartAt),
		zap.Time("end_at", window.EndAt),
	)
	return window, nil
}

// ListByNovel implements domain.Service.
func (s *Service) ListByNovel(ctx context.Context, novelID snowflake.ID) ([]promotiondomain.PromotionWindow, error) {
	if novelID == 0 {
		return nil, promotiondomain.ErrInvalidNovel
	}
	return s.repo.ListByNovel(ctx, s.db, novelID)
}

// ensureDiscountRef lazily materializes the provider coupon and replaces
// references the provider no longer recognizes.
func (s *Service) ensureDiscountRef(ctx context.Context, window *promotiondomain.PromotionWindow) error {
	if s.pricing == nil {
		return nil
	}

	if window.ExternalDiscountRef != nil && strings.TrimSpace(*window.ExternalDiscountRef) != "" {
		ok, err := s.pricing.VerifyCoupon(ctx, *window.ExternalDiscountRef)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		s.log.Warn("stale external discount reference",
			zap.Int64("promotion_id", int64(window.ID)),
			zap.String("ref", *window.ExternalDiscountRef),
		)
	}

	ref, err := s.pricing.EnsureCoupon(ctx, gatewaydomain.CouponSpec{
		NovelID:     window.NovelID,
		PromotionID: window.ID,
		PercentOff:  math.Round((1-window.DiscountValue)*10000) / 100,
	})
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if err := s.repo.SetExternalDiscountRef(ctx, s.db, window.ID, ref, now); err != nil {
		return err
	}

	window.ExternalDiscountRef = &ref
	window.UpdatedAt = now
	return nil
}

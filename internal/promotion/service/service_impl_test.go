package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shi0417/kongfuworld-champion/internal/clock"
	gatewaydomain "github.com/shi0417/kongfuworld-champion/internal/gateway/domain"
	promotiondomain "github.com/shi0417/kongfuworld-champion/internal/promotion/domain"
	"github.com/shi0417/kongfuworld-champion/internal/promotion/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockPricingGateway struct {
	couponRef      string
	validRefs      map[string]bool
	ensureCoupons  int
	lastCouponSpec gatewaydomain.CouponSpec
}

func (m *mockPricingGateway) Provider() string { return "stripe" }

func (m *mockPricingGateway) EnsurePrice(ctx context.Context, spec gatewaydomain.PriceSpec) (string, error) {
	return "", nil
}

func (m *mockPricingGateway) VerifyPrice(ctx context.Context, ref string) (bool, error) {
	return true, nil
}

func (m *mockPricingGateway) EnsureCoupon(ctx context.Context, spec gatewaydomain.CouponSpec) (string, error) {
	m.ensureCoupons++
	m.lastCouponSpec = spec
	return m.couponRef, nil
}

func (m *mockPricingGateway) VerifyCoupon(ctx context.Context, ref string) (bool, error) {
	return m.validRefs[ref], nil
}

type promoFixture struct {
	svc     *Service
	repo    promotiondomain.Repository
	db      *gorm.DB
	pricing *mockPricingGateway
	clock   *clock.FakeClock
	node    *snowflake.Node
}

func newPromoFixture(t *testing.T) *promoFixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&promotiondomain.PromotionWindow{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := repository.Provide()
	pricing := &mockPricingGateway{couponRef: "coupon_fresh", validRefs: map[string]bool{}}

	svc := NewService(Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   fc,
		Repo:    repo,
		Pricing: pricing,
	}).(*Service)

	return &promoFixture{svc: svc, repo: repo, db: db, pricing: pricing, clock: fc, node: node}
}

func (f *promoFixture) seedWindow(t *testing.T, novelID snowflake.ID, status promotiondomain.PromotionStatus, discount float64, startAt, endAt time.Time) *promotiondomain.PromotionWindow {
	t.Helper()
	window := &promotiondomain.PromotionWindow{
		ID:            f.node.Generate(),
		NovelID:       novelID,
		Status:        status,
		DiscountValue: discount,
		StartAt:       startAt,
		EndAt:         endAt,
		CreatedAt:     f.clock.Now(),
		UpdatedAt:     f.clock.Now(),
	}
	require.NoError(t, f.repo.Insert(context.Background(), f.db, window))
	return window
}

func TestDiscountedPrice(t *testing.T) {
	tests := []struct {
		name     string
		base     int64
		discount float64
		want     int64
	}{
		{"eighty percent", 900, 0.8, 720},
		{"rounds up", 999, 0.5, 500},
		{"never below one minor unit", 2, 0.3, 1},
		{"free", 500, 0, 0},
		{"negative is free", 500, -0.5, 0},
		{"full price", 500, 1, 500},
		{"above one is inert", 500, 1.5, 500},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DiscountedPrice(tc.base, tc.discount))
		})
	}
}

func TestResolveQuoteNoWindow(t *testing.T) {
	f := newPromoFixture(t)

	quote, err := f.svc.ResolveQuote(context.Background(), promotiondomain.QuoteRequest{
		NovelID:        7,
		BasePriceMinor: 900,
		Currency:       "usd",
	})
	require.NoError(t, err)

	require.Equal(t, int64(900), quote.BasePriceMinor)
	require.Equal(t, int64(900), quote.EffectivePriceMinor)
	require.Equal(t, int64(0), quote.DiscountMinor)
	require.Equal(t, "USD", quote.Currency)
	require.Nil(t, quote.PromotionID)
	require.Equal(t, float64(1), quote.DiscountValue)
}

func TestResolveQuoteDeepestDiscountWins(t *testing.T) {
	f := newPromoFixture(t)
	now := f.clock.Now()

	f.seedWindow(t, 7, promotiondomain.PromotionStatusActive, 0.8, now.Add(-2*time.Hour), now.Add(24*time.Hour))
	deep := f.seedWindow(t, 7, promotiondomain.PromotionStatusActive, 0.5, now.Add(-time.Hour), now.Add(24*time.Hour))

	quote, err := f.svc.ResolveQuote(context.Background(), promotiondomain.QuoteRequest{
		NovelID:        7,
		BasePriceMinor: 900,
		Currency:       "USD",
	})
	require.NoError(t, err)

	require.NotNil(t, quote.PromotionID)
	require.Equal(t, deep.ID, *quote.PromotionID)
	require.Equal(t, int64(450), quote.EffectivePriceMinor)
	require.Equal(t, int64(450), quote.DiscountMinor)
	require.Equal(t, 0.5, quote.DiscountValue)
}

func TestResolveQuoteTieBreaksOnLaterStart(t *testing.T) {
	f := newPromoFixture(t)
	now := f.clock.Now()

	f.seedWindow(t, 7, promotiondomain.PromotionStatusActive, 0.5, now.Add(-3*time.Hour), now.Add(24*time.Hour))
	later := f.seedWindow(t, 7, promotiondomain.PromotionStatusActive, 0.5, now.Add(-time.Hour), now.Add(24*time.Hour))

	quote, err := f.svc.ResolveQuote(context.Background(), promotiondomain.QuoteRequest{
		NovelID:        7,
		BasePriceMinor: 900,
		Currency:       "USD",
	})
	require.NoError(t, err)
	require.NotNil(t, quote.PromotionID)
	require.Equal(t, later.ID, *quote.PromotionID)
}

func TestResolveQuoteFreeWindowSkipsCoupon(t *testing.T) {
	f := newPromoFixture(t)
	now := f.clock.Now()

	free := f.seedWindow(t, 7, promotiondomain.PromotionStatusActive, 0, now.Add(-time.Hour), now.Add(24*time.Hour))

	quote, err := f.svc.ResolveQuote(context.Background(), promotiondomain.QuoteRequest{
		NovelID:        7,
		BasePriceMinor: 900,
		Currency:       "USD",
	})
	require.NoError(t, err)

	require.Equal(t, int64(0), quote.EffectivePriceMinor)
	require.Equal(t, int64(900), quote.DiscountMinor)
	require.Equal(t, free.ID, *quote.PromotionID)
	require.Nil(t, quote.ExternalDiscountRef)
	require.Equal(t, 0, f.pricing.ensureCoupons)
}

func TestResolveQuoteMaterializesCoupon(t *testing.T) {
	f := newPromoFixture(t)
	now := f.clock.Now()

	window := f.seedWindow(t, 7, promotiondomain.PromotionStatusActive, 0.75, now.Add(-time.Hour), now.Add(24*time.Hour))

	quote, err := f.svc.ResolveQuote(context.Background(), promotiondomain.QuoteRequest{
		NovelID:        7,
		BasePriceMinor: 900,
		Currency:       "USD",
	})
	require.NoError(t, err)

	require.Equal(t, 1, f.pricing.ensureCoupons)
	require.Equal(t, window.ID, f.pricing.lastCouponSpec.PromotionID)
	require.Equal(t, float64(25), f.pricing.lastCouponSpec.PercentOff)
	require.NotNil(t, quote.ExternalDiscountRef)
	require.Equal(t, "coupon_fresh", *quote.ExternalDiscountRef)

	// The reference sticks to the stored window.
	stored, err := f.repo.FindActiveAt(context.Background(), f.db, 7, now)
	require.NoError(t, err)
	require.NotNil(t, stored.ExternalDiscountRef)
	require.Equal(t, "coupon_fresh", *stored.ExternalDiscountRef)
}

func TestResolveQuoteReusesValidCoupon(t *testing.T) {
	f := newPromoFixture(t)
	now := f.clock.Now()
	f.pricing.validRefs["coupon_known"] = true

	window := f.seedWindow(t, 7, promotiondomain.PromotionStatusActive, 0.5, now.Add(-time.Hour), now.Add(24*time.Hour))
	require.NoError(t, f.repo.SetExternalDiscountRef(context.Background(), f.db, window.ID, "coupon_known", now))

	quote, err := f.svc.ResolveQuote(context.Background(), promotiondomain.QuoteRequest{
		NovelID:        7,
		BasePriceMinor: 900,
		Currency:       "USD",
	})
	require.NoError(t, err)
	require.Equal(t, 0, f.pricing.ensureCoupons)
	require.Equal(t, "coupon_known", *quote.ExternalDiscountRef)
}

func TestResolveQuoteReplacesStaleCoupon(t *testing.T) {
	f := newPromoFixture(t)
	now := f.clock.Now()

	window := f.seedWindow(t, 7, promotiondomain.PromotionStatusActive, 0.5, now.Add(-time.Hour), now.Add(24*time.Hour))
	require.NoError(t, f.repo.SetExternalDiscountRef(context.Background(), f.db, window.ID, "coupon_gone", now))

	quote, err := f.svc.ResolveQuote(context.Background(), promotiondomain.QuoteRequest{
		NovelID:        7,
		BasePriceMinor: 900,
		Currency:       "USD",
	})
	require.NoError(t, err)
	require.Equal(t, 1, f.pricing.ensureCoupons)
	require.Equal(t, "coupon_fresh", *quote.ExternalDiscountRef)
}

func TestResolveQuoteValidation(t *testing.T) {
	f := newPromoFixture(t)
	ctx := context.Background()

	_, err := f.svc.ResolveQuote(ctx, promotiondomain.QuoteRequest{BasePriceMinor: 900})
	require.ErrorIs(t, err, promotiondomain.ErrInvalidNovel)

	_, err = f.svc.ResolveQuote(ctx, promotiondomain.QuoteRequest{NovelID: 7})
	require.ErrorIs(t, err, promotiondomain.ErrInvalidPrice)
}

func TestActiveWindowIgnoresEndedAndCanceled(t *testing.T) {
	f := newPromoFixture(t)
	now := f.clock.Now()

	f.seedWindow(t, 7, promotiondomain.PromotionStatusEnded, 0.5, now.Add(-time.Hour), now.Add(24*time.Hour))
	f.seedWindow(t, 7, promotiondomain.PromotionStatusCanceled, 0.5, now.Add(-time.Hour), now.Add(24*time.Hour))

	window, err := f.svc.ActiveWindow(context.Background(), 7, now)
	require.NoError(t, err)
	require.Nil(t, window)
}

func TestActiveWindowIncludesScheduledInsideRange(t *testing.T) {
	f := newPromoFixture(t)
	now := f.clock.Now()

	// A window the sweeper has not flipped to active yet still counts
	// once its range covers the instant.
	seeded := f.seedWindow(t, 7, promotiondomain.PromotionStatusScheduled, 0.5, now.Add(-time.Minute), now.Add(24*time.Hour))

	window, err := f.svc.ActiveWindow(context.Background(), 7, now)
	require.NoError(t, err)
	require.NotNil(t, window)
	require.Equal(t, seeded.ID, window.ID)
}

func TestScheduleValidation(t *testing.T) {
	f := newPromoFixture(t)
	ctx := context.Background()
	now := f.clock.Now()

	_, err := f.svc.Schedule(ctx, promotiondomain.ScheduleRequest{
		NovelID:       7,
		DiscountValue: 0.2,
		StartAt:       now,
		EndAt:         now.Add(24 * time.Hour),
	})
	require.ErrorIs(t, err, promotiondomain.ErrInvalidDiscount)

	_, err = f.svc.Schedule(ctx, promotiondomain.ScheduleRequest{
		NovelID:       7,
		DiscountValue: 1.2,
		StartAt:       now,
		EndAt:         now.Add(24 * time.Hour),
	})
	require.ErrorIs(t, err, promotiondomain.ErrInvalidDiscount)

	_, err = f.svc.Schedule(ctx, promotiondomain.ScheduleRequest{
		NovelID:       7,
		DiscountValue: 0.5,
		StartAt:       now.Add(24 * time.Hour),
		EndAt:         now,
	})
	require.ErrorIs(t, err, promotiondomain.ErrInvalidWindow)
}

func TestScheduleFreeBypassesFloor(t *testing.T) {
	f := newPromoFixture(t)
	now := f.clock.Now()

	window, err := f.svc.Schedule(context.Background(), promotiondomain.ScheduleRequest{
		NovelID: 7,
		Free:    true,
		StartAt: now,
		EndAt:   now.Add(24 * time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, float64(0), window.DiscountValue)
	require.Equal(t, promotiondomain.PromotionStatusActive, window.Status)
}

func TestScheduleFutureWindowIsScheduled(t *testing.T) {
	f := newPromoFixture(t)
	now := f.clock.Now()

	window, err := f.svc.Schedule(context.Background(), promotiondomain.ScheduleRequest{
		NovelID:       7,
		DiscountValue: 0.5,
		StartAt:       now.Add(time.Hour),
		EndAt:         now.Add(48 * time.Hour),
	})
	require.NoError(t, err)
	require.Equal(t, promotiondomain.PromotionStatusScheduled, window.Status)

	listed, err := f.svc.ListByNovel(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.Equal(t, window.ID, listed[0].ID)
}

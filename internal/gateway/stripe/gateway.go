// Package stripe implements the pricing gateway and subscription syncer
// on top of the Stripe API.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/coupon"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/subscription"
	"go.uber.org/zap"

	gatewaydomain "github.com/shi0417/kongfuworld-champion/internal/gateway/domain"
)

type Gateway struct {
	log *zap.Logger
}

// NewGateway configures the package-level Stripe client.
func NewGateway(apiKey string, log *zap.Logger) (*Gateway, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, gatewaydomain.ErrInvalidConfig
	}
	stripe.Key = apiKey

	return &Gateway{
		log: log.Named("gateway.stripe"),
	}, nil
}

func (g *Gateway) Provider() string {
	return "stripe"
}

// EnsurePrice implements domain.PricingGateway.
func (g *Gateway) EnsurePrice(ctx context.Context, spec gatewaydomain.PriceSpec) (string, error) {
	params := &stripe.PriceParams{
		Params:     stripe.Params{Context: ctx},
		Currency:   stripe.String(strings.ToLower(spec.Currency)),
		UnitAmount: stripe.Int64(spec.AmountMinor),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
		},
		ProductData: &stripe.PriceProductDataParams{
			Name: stripe.String(fmt.Sprintf("%s - novel %s tier %d", spec.TierName, spec.NovelID, spec.TierLevel)),
		},
	}
	params.AddMetadata("novel_id", spec.NovelID.String())
	params.AddMetadata("tier_level", fmt.Sprintf("%d", spec.TierLevel))

	created, err := price.New(params)
	if err != nil {
		return "", err
	}

	g.log.Info("stripe price created",
		zap.String("price_id", created.ID),
		zap.String("novel_id", spec.NovelID.String()),
		zap.Int("tier_level", spec.TierLevel),
	)
	return created.ID, nil
}

// VerifyPrice implements domain.PricingGateway. A missing or archived
// price reports false without error so callers can recreate it.
func (g *Gateway) VerifyPrice(ctx context.Context, ref string) (bool, error) {
	fetched, err := price.Get(ref, &stripe.PriceParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		if isResourceMissing(err) {
			return false, nil
		}
		return false, err
	}
	return fetched.Active, nil
}

// EnsureCoupon implements domain.PricingGateway.
func (g *Gateway) EnsureCoupon(ctx context.Context, spec gatewaydomain.CouponSpec) (string, error) {
	params := &stripe.CouponParams{
		Params:     stripe.Params{Context: ctx},
		PercentOff: stripe.Float64(spec.PercentOff),
		Duration:   stripe.String(string(stripe.CouponDurationOnce)),
		Name:       stripe.String(fmt.Sprintf("promotion %s", spec.PromotionID)),
	}
	params.AddMetadata("novel_id", spec.NovelID.String())
	params.AddMetadata("promotion_id", spec.PromotionID.String())

	created, err := coupon.New(params)
	if err != nil {
		return "", err
	}

	g.log.Info("stripe coupon created",
		zap.String("coupon_id", created.ID),
		zap.String("promotion_id", spec.PromotionID.String()),
	)
	return created.ID, nil
}

// VerifyCoupon implements domain.PricingGateway.
func (g *Gateway) VerifyCoupon(ctx context.Context, ref string) (bool, error) {
	fetched, err := coupon.Get(ref, &stripe.CouponParams{Params: stripe.Params{Context: ctx}})
	if err != nil {
		if isResourceMissing(err) {
			return false, nil
		}
		return false, err
	}
	return fetched.Valid, nil
}

// Sync implements domain.SubscriptionSyncer. The subscription item is
// pointed at the local price without proration; promotion pricing never
// leaks into recurring billing.
func (g *Gateway) Sync(ctx context.Context, sync gatewaydomain.SubscriptionSync) error {
	current, err := subscription.Get(sync.SubscriptionRef, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
	})
	if err != nil {
		return err
	}
	if current.Items == nil || len(current.Items.Data) == 0 {
		return gatewaydomain.ErrSyncUnavailable
	}

	item := current.Items.Data[0]
	if item.Price != nil && item.Price.ID == sync.PriceRef {
		return nil
	}

	_, err = subscription.Update(sync.SubscriptionRef, &stripe.SubscriptionParams{
		Params: stripe.Params{Context: ctx},
		Items: []*stripe.SubscriptionItemsParams{{
			ID:    stripe.String(item.ID),
			Price: stripe.String(sync.PriceRef),
		}},
		ProrationBehavior: stripe.String("none"),
		CancelAtPeriodEnd: stripe.Bool(false),
	})
	if err != nil {
		return err
	}

	g.log.Info("stripe subscription synced",
		zap.String("subscription_ref", sync.SubscriptionRef),
		zap.String("price_ref", sync.PriceRef),
	)
	return nil
}

func isResourceMissing(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.Code == stripe.ErrorCodeResourceMissing
	}
	return false
}

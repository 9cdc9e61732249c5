// Package domain defines the contracts payment gateways implement.
package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
)

// PriceSpec describes a recurring price to materialize at the gateway.
type PriceSpec struct {
	NovelID     snowflake.ID
	TierLevel   int
	TierName    string
	AmountMinor int64
	Currency    string
}

// CouponSpec describes a promotion discount to materialize at the gateway.
type CouponSpec struct {
	NovelID     snowflake.ID
	PromotionID snowflake.ID
	PercentOff  float64
}

// PricingGateway lazily creates and verifies external price and coupon
// references. References are opaque provider identifiers.
type PricingGateway interface {
	Provider() string
	EnsurePrice(ctx context.Context, spec PriceSpec) (string, error)
	VerifyPrice(ctx context.Context, ref string) (bool, error)
	EnsureCoupon(ctx context.Context, spec CouponSpec) (string, error)
	VerifyCoupon(ctx context.Context, ref string) (bool, error)
}

// SubscriptionSync asks the provider to align a recurring subscription
// with the entitlement state recorded locally.
type SubscriptionSync struct {
	SubscriptionRef string
	PriceRef        string
	WindowEnd       time.Time
}

// SubscriptionSyncer pushes local entitlement state to the provider.
// Implementations must never mutate local state.
type SubscriptionSyncer interface {
	Provider() string
	Sync(ctx context.Context, sync SubscriptionSync) error
}

// EventKind classifies normalized webhook events.
type EventKind string

const (
	EventKindPayment      EventKind = "payment"
	EventKindRenewal      EventKind = "renewal"
	EventKindCancellation EventKind = "cancellation"
)

// Event is a provider webhook normalized to reconciliation inputs.
type Event struct {
	Kind            EventKind
	Provider        string
	ProviderEventID string

	// Payment events carry the full purchase context from metadata.
	ReaderID  snowflake.ID
	NovelID   snowflake.ID
	TierLevel int

	AmountMinor int64
	Currency    string

	TransactionRef  string
	SubscriptionRef string
	CustomerRef     string
	PaymentMethod   string
	CardFingerprint string

	OccurredAt time.Time
}

// WebhookAdapter verifies and normalizes raw provider payloads.
type WebhookAdapter interface {
	Provider() string
	Verify(ctx context.Context, payload []byte, headers http.Header) error
	Parse(ctx context.Context, payload []byte) (*Event, error)
}

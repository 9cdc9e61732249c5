package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidReader       = errors.New("invalid_reader")
	ErrInvalidNovel        = errors.New("invalid_novel")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidMethod       = errors.New("invalid_payment_method")
	ErrTierUnresolved      = errors.New("tier_unresolved")
	ErrConflict            = errors.New("concurrent_reconciliation")
	ErrEntitlementNotFound = errors.New("entitlement_not_found")
	ErrSubscriptionUnknown = errors.New("subscription_unknown")
)

// PaymentOutcome is a gateway-confirmed successful payment, normalized
// to reconciliation inputs. AmountMinor is what was actually charged.
type PaymentOutcome struct {
	ReaderID snowflake.ID
	NovelID  snowflake.ID

	// TierLevel is zero when the confirmation carries no explicit tier;
	// the tier is then matched by price.
	TierLevel int

	AmountMinor int64
	Currency    string

	PaymentMethod   string
	CardFingerprint string
	GatewayKind     GatewayKind

	// TransactionRef deduplicates redelivered confirmations.
	TransactionRef  string
	PaymentRecordID snowflake.ID

	ExternalSubscriptionRef string
	ExternalCustomerRef     string

	OccurredAt time.Time
}

// Result reports what a reconciliation did.
type Result struct {
	EntitlementID  snowflake.ID
	Transition     TransitionType
	TierLevel      int
	TierName       string
	WindowStart    time.Time
	WindowEnd      time.Time
	AutoRenew      bool
	ChangeRecordID snowflake.ID
	// Replayed is true when the confirmation was already applied and
	// the stored outcome was returned without touching state.
	Replayed bool
}

// RenewalConfirmation is a provider-billed renewal identified only by
// its subscription reference.
type RenewalConfirmation struct {
	ExternalSubscriptionRef string
	AmountMinor             int64
	Currency                string
	TransactionRef          string
	OccurredAt              time.Time
}

// StatusRequest looks up the current entitlement for a pair.
type StatusRequest struct {
	ReaderID snowflake.ID
	NovelID  snowflake.ID
}

type Service interface {
	// Reconcile applies one successful payment confirmation: it resolves
	// the tier, classifies the transition, moves the access window and
	// writes the audit change record in the same transaction.
	Reconcile(ctx context.Context, outcome PaymentOutcome) (Result, error)
	// ReconcileRenewal maps a provider renewal onto the entitlement that
	// owns the subscription reference, then reconciles it.
	ReconcileRenewal(ctx context.Context, confirmation RenewalConfirmation) (Result, error)
	Status(ctx context.Context, req StatusRequest) (*Entitlement, error)
	// DisableAutoRenew flips auto-renew off but keeps the paid window.
	DisableAutoRenew(ctx context.Context, externalSubscriptionRef string) error
	// DeactivateExpired flips is_active off for windows that have ended.
	DeactivateExpired(ctx context.Context) (int64, error)
}

package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	entitlementdomain "github.com/shi0417/kongfuworld-champion/internal/entitlement/domain"
	"gorm.io/gorm"
)

var (
	ErrMissingTransaction = errors.New("missing_transaction")
	ErrInvalidChange      = errors.New("invalid_change")
	ErrInvalidReader      = errors.New("invalid_reader")
)

// Change is the input for one ledger row.
type Change struct {
	EntitlementID   snowflake.ID
	ReaderID        snowflake.ID
	NovelID         snowflake.ID
	PaymentRecordID snowflake.ID
	Transition      entitlementdomain.TransitionType

	TierLevel int
	TierName  string

	BasePriceMinor int64
	ChargedMinor   int64
	Currency       string

	WindowStart time.Time
	WindowEnd   time.Time

	Before *entitlementdomain.Snapshot
	After  *entitlementdomain.Snapshot

	TransactionRef          string
	PaymentMethod           string
	CardFingerprint         string
	ExternalSubscriptionRef string
	ExternalCustomerRef     string
	PromotionID             *snowflake.ID

	OccurredAt time.Time
}

type Service interface {
	// Record writes one change row inside the caller's transaction so
	// entitlement mutation and audit land or fail together.
	Record(ctx context.Context, tx *gorm.DB, change Change) (*ChangeRecord, error)
	FindByTransactionRef(ctx context.Context, transactionRef string) (*ChangeRecord, error)
	ListByReader(ctx context.Context, readerID, novelID snowflake.ID) ([]ChangeRecord, error)
}

package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shi0417/kongfuworld-champion/internal/clock"
	entitlementdomain "github.com/shi0417/kongfuworld-champion/internal/entitlement/domain"
	ledgerdomain "github.com/shi0417/kongfuworld-champion/internal/ledger/domain"
	obsmetrics "github.com/shi0417/kongfuworld-champion/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       ledgerdomain.Repository
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       ledgerdomain.Repository
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		obsMetrics: p.ObsMetrics,
	}
}

// Record implements domain.Service.
func (s *Service) Record(ctx context.Context, tx *gorm.DB, change ledgerdomain.Change) (*ledgerdomain.ChangeRecord, error) {
	if tx == nil {
		return nil, ledgerdomain.ErrMissingTransaction
	}
	if change.ReaderID == 0 {
		return nil, ledgerdomain.ErrInvalidReader
	}
	if change.EntitlementID == 0 || change.NovelID == 0 || change.Transition == "" {
		return nil, ledgerdomain.ErrInvalidChange
	}
	if change.BasePriceMinor < 0 || change.ChargedMinor < 0 {
		return nil, ledgerdomain.ErrInvalidChange
	}

	discount := change.BasePriceMinor - change.ChargedMinor
	if discount < 0 {
		discount = 0
	}

	beforeState, err := marshalSnapshot(change.Before)
	if err != nil {
		return nil, err
	}
	afterState, err := marshalSnapshot(change.After)
	if err != nil {
		return nil, err
	}

	occurredAt := change.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.clock.Now()
	}

	record := &ledgerdomain.ChangeRecord{
		ID:              s.genID.Generate(),
		EntitlementID:   change.EntitlementID,
		ReaderID:        change.ReaderID,
		NovelID:         change.NovelID,
		PaymentRecordID: change.PaymentRecordID,
		Transition:      change.Transition,
		TierLevel:       change.TierLevel,
		TierName:        change.TierName,
		BasePriceMinor:  change.BasePriceMinor,
		ChargedMinor:    change.ChargedMinor,
		DiscountMinor:   discount,
		Currency:        strings.ToUpper(strings.TrimSpace(change.Currency)),
		RenewalDays:     entitlementdomain.RenewalDays,
		WindowStart:     change.WindowStart.UTC(),
		WindowEnd:       change.WindowEnd.UTC(),
		BeforeState:     beforeState,
		AfterState:      afterState,
		TransactionRef:  nilIfEmpty(change.TransactionRef),
		PaymentMethod:   change.PaymentMethod,
		PromotionID:     change.PromotionID,
		OccurredAt:      occurredAt.UTC(),
		CreatedAt:       s.clock.Now(),
	}
	record.CardFingerprint = nilIfEmpty(change.CardFingerprint)
	record.ExternalSubscriptionRef = nilIfEmpty(change.ExternalSubscriptionRef)
	record.ExternalCustomerRef = nilIfEmpty(change.ExternalCustomerRef)

	if err := s.repo.Insert(ctx, tx, record); err != nil {
		return nil, err
	}

	s.log.Debug("change recorded",
		zap.Int64("entitlement_id", int64(record.EntitlementID)),
		zap.String("transition", string(record.Transition)),
	)
	s.obsMetrics.RecordChangeRecord(ctx, string(record.Transition))

	return record, nil
}

// FindByTransactionRef implements domain.Service.
func (s *Service) FindByTransactionRef(ctx context.Context, transactionRef string) (*ledgerdomain.ChangeRecord, error) {
	transactionRef = strings.TrimSpace(transactionRef)
	if transactionRef == "" {
		return nil, nil
	}
	return s.repo.FindByTransactionRef(ctx, s.db, transactionRef)
}

// ListByReader implements domain.Service.
func (s *Service) ListByReader(ctx context.Context, readerID, novelID snowflake.ID) ([]ledgerdomain.ChangeRecord, error) {
	if readerID == 0 {
		return nil, ledgerdomain.ErrInvalidReader
	}
	return s.repo.ListByReader(ctx, s.db, readerID, novelID)
}

func marshalSnapshot(snapshot *entitlementdomain.Snapshot) (datatypes.JSON, error) {
	if snapshot == nil {
		return nil, nil
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func nilIfEmpty(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

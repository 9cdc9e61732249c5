package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shi0417/kongfuworld-champion/internal/cache"
	"github.com/shi0417/kongfuworld-champion/internal/clock"
	"github.com/shi0417/kongfuworld-champion/internal/config"
	entitlementdomain "github.com/shi0417/kongfuworld-champion/internal/entitlement/domain"
	gatewaydomain "github.com/shi0417/kongfuworld-champion/internal/gateway/domain"
	ledgerdomain "github.com/shi0417/kongfuworld-champion/internal/ledger/domain"
	obsmetrics "github.com/shi0417/kongfuworld-champion/internal/observability/metrics"
	promotiondomain "github.com/shi0417/kongfuworld-champion/internal/promotion/domain"
	tierdomain "github.com/shi0417/kongfuworld-champion/internal/tier/domain"
	pkgdb "github.com/shi0417/kongfuworld-champion/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultSyncTimeout = 10 * time.Second

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID *snowflake.Node
	clock clock.Clock
	repo  entitlementdomain.Repository

	tiersvc   tierdomain.Service
	promosvc  promotiondomain.Service
	ledgersvc ledgerdomain.Service

	syncer      gatewaydomain.SubscriptionSyncer
	syncTimeout time.Duration
	obsMetrics  *obsmetrics.Metrics
	visCache    cache.VisibilityCache
}

type Params struct {
	fx.In

	Cfg   config.Config
	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  entitlementdomain.Repository

	Tiersvc   tierdomain.Service
	Promosvc  promotiondomain.Service
	Ledgersvc ledgerdomain.Service

	Syncer     gatewaydomain.SubscriptionSyncer `optional:"true"`
	ObsMetrics *obsmetrics.Metrics              `optional:"true"`
	VisCache   cache.VisibilityCache            `optional:"true"`
}

func NewService(p Params) entitlementdomain.Service {
	syncTimeout := defaultSyncTimeout
	if p.Cfg.GatewaySyncTimeoutSeconds > 0 {
		syncTimeout = time.Duration(p.Cfg.GatewaySyncTimeoutSeconds) * time.Second
	}

	return &Service{
		db:  p.DB,
		log: p.Log.Named("entitlement.service"),

		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,

		tiersvc:   p.Tiersvc,
		promosvc:  p.Promosvc,
		ledgersvc: p.Ledgersvc,

		syncer:      p.Syncer,
		syncTimeout: syncTimeout,
		obsMetrics:  p.ObsMetrics,
		visCache:    p.VisCache,
	}
}

// Reconcile implements domain.Service.
func (s *Service) Reconcile(ctx context.Context, outcome entitlementdomain.PaymentOutcome) (entitlementdomain.Result, error) {
	if outcome.ReaderID == 0 {
		return entitlementdomain.Result{}, entitlementdomain.ErrInvalidReader
	}
	if outcome.NovelID == 0 {
		return entitlementdomain.Result{}, entitlementdomain.ErrInvalidNovel
	}
	if outcome.AmountMinor < 0 {
		return entitlementdomain.Result{}, entitlementdomain.ErrInvalidAmount
	}
	if strings.TrimSpace(outcome.PaymentMethod) == "" {
		return entitlementdomain.Result{}, entitlementdomain.ErrInvalidMethod
	}

	// Redelivered confirmations replay the recorded result untouched.
	if replay, err := s.findReplay(ctx, outcome.TransactionRef); err != nil {
		return entitlementdomain.Result{}, err
	} else if replay != nil {
		return *replay, nil
	}

	tier, err := s.resolveTier(ctx, outcome)
	if err != nil {
		return entitlementdomain.Result{}, err
	}

	now := s.clock.Now()

	// Promotion linkage for the ledger. The charge already happened, so
	// a lookup failure degrades to "no promotion" instead of failing.
	var promotionID *snowflake.ID
	if outcome.AmountMinor < tier.MonthlyPriceMinor {
		window, err := s.promosvc.ActiveWindow(ctx, outcome.NovelID, now)
		if err != nil {
			s.log.Warn("promotion lookup failed during reconciliation",
				zap.Int64("novel_id", int64(outcome.NovelID)),
				zap.Error(err),
			)
		} else if window != nil {
			promotionID = &window.ID
		}
	}

	var (
		result entitlementdomain.Result
		synced *entitlementdomain.Entitlement
	)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindForUpdate(ctx, tx, outcome.ReaderID, outcome.NovelID)
		if err != nil {
			return err
		}

		decision := entitlementdomain.Decide(existing, tier.TierLevel, now)
		before := entitlementdomain.SnapshotOf(existing)

		ent, err := s.applyDecision(ctx, tx, existing, decision, tier, outcome, now)
		if err != nil {
			return err
		}

		record, err := s.ledgersvc.Record(ctx, tx, ledgerdomain.Change{
			EntitlementID:           ent.ID,
			ReaderID:                outcome.ReaderID,
			NovelID:                 outcome.NovelID,
			PaymentRecordID:         outcome.PaymentRecordID,
			Transition:              decision.Type,
			TierLevel:               tier.TierLevel,
			TierName:                tier.TierName,
			BasePriceMinor:          tier.MonthlyPriceMinor,
			ChargedMinor:            outcome.AmountMinor,
			Currency:                tier.Currency,
			WindowStart:             ent.WindowStart,
			WindowEnd:               ent.WindowEnd,
			Before:                  before,
			After:                   entitlementdomain.SnapshotOf(ent),
			TransactionRef:          outcome.TransactionRef,
			PaymentMethod:           outcome.PaymentMethod,
			CardFingerprint:         outcome.CardFingerprint,
			ExternalSubscriptionRef: outcome.ExternalSubscriptionRef,
			ExternalCustomerRef:     outcome.ExternalCustomerRef,
			PromotionID:             promotionID,
			OccurredAt:              outcome.OccurredAt,
		})
		if err != nil {
			return err
		}

		result = entitlementdomain.Result{
			EntitlementID:  ent.ID,
			Transition:     decision.Type,
			TierLevel:      ent.TierLevel,
			TierName:       ent.TierName,
			WindowStart:    ent.WindowStart,
			WindowEnd:      ent.WindowEnd,
			AutoRenew:      ent.AutoRenew,
			ChangeRecordID: record.ID,
		}
		synced = ent
		return nil
	})
	if err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			// A concurrent writer recorded the same transaction between
			// our replay check and the insert.
			if replay, replayErr := s.findReplay(ctx, outcome.TransactionRef); replayErr == nil && replay != nil {
				return *replay, nil
			}
			// No record for our ref: the collision was the (reader, novel)
			// pair index, a concurrent first purchase won the insert.
			// The retry reconciles against the winner's row.
			return entitlementdomain.Result{}, entitlementdomain.ErrConflict
		}
		return entitlementdomain.Result{}, err
	}

	s.log.Info("entitlement reconciled",
		zap.Int64("reader_id", int64(outcome.ReaderID)),
		zap.Int64("novel_id", int64(outcome.NovelID)),
		zap.String("transition", string(result.Transition)),
		zap.Time("window_end", result.WindowEnd),
	)
	s.obsMetrics.RecordReconciliation(ctx, string(result.Transition))

	// Cached chapter visibility for this reader is stale now.
	if s.visCache != nil {
		s.visCache.Invalidate(outcome.NovelID, &outcome.ReaderID)
	}

	s.scheduleSync(synced, tier)

	return result, nil
}

// ReconcileRenewal implements domain.Service.
func (s *Service) ReconcileRenewal(ctx context.Context, confirmation entitlementdomain.RenewalConfirmation) (entitlementdomain.Result, error) {
	ref := strings.TrimSpace(confirmation.ExternalSubscriptionRef)
	if ref == "" {
		return entitlementdomain.Result{}, entitlementdomain.ErrSubscriptionUnknown
	}

	ent, err := s.repo.FindBySubscriptionRef(ctx, s.db, ref)
	if err != nil {
		return entitlementdomain.Result{}, err
	}
	if ent == nil {
		return entitlementdomain.Result{}, entitlementdomain.ErrSubscriptionUnknown
	}

	// Recurring billing always charges the base price, so the stored
	// tier level is authoritative for renewals.
	return s.Reconcile(ctx, entitlementdomain.PaymentOutcome{
		ReaderID:                ent.ReaderID,
		NovelID:                 ent.NovelID,
		TierLevel:               ent.TierLevel,
		AmountMinor:             confirmation.AmountMinor,
		Currency:                confirmation.Currency,
		PaymentMethod:           ent.PaymentMethod,
		GatewayKind:             entitlementdomain.GatewayKindRecurring,
		TransactionRef:          confirmation.TransactionRef,
		ExternalSubscriptionRef: ref,
		OccurredAt:              confirmation.OccurredAt,
	})
}

// Status implements domain.Service.
func (s *Service) Status(ctx context.Context, req entitlementdomain.StatusRequest) (*entitlementdomain.Entitlement, error) {
	if req.ReaderID == 0 {
		return nil, entitlementdomain.ErrInvalidReader
	}
	if req.NovelID == 0 {
		return nil, entitlementdomain.ErrInvalidNovel
	}
	return s.repo.FindActiveAt(ctx, s.db, req.ReaderID, req.NovelID, s.clock.Now())
}

// DisableAutoRenew implements domain.Service. Provider-side
// cancellation keeps whatever window was already paid for.
func (s *Service) DisableAutoRenew(ctx context.Context, externalSubscriptionRef string) error {
	ref := strings.TrimSpace(externalSubscriptionRef)
	if ref == "" {
		return entitlementdomain.ErrSubscriptionUnknown
	}

	ent, err := s.repo.FindBySubscriptionRef(ctx, s.db, ref)
	if err != nil {
		return err
	}
	if ent == nil {
		return entitlementdomain.ErrSubscriptionUnknown
	}

	if err := s.repo.DisableAutoRenew(ctx, s.db, ent.ID, s.clock.Now()); err != nil {
		return err
	}

	s.log.Info("auto renew disabled",
		zap.Int64("entitlement_id", int64(ent.ID)),
		zap.String("subscription_ref", ref),
	)
	return nil
}

// DeactivateExpired implements domain.Service.
func (s *Service) DeactivateExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.DeactivateExpired(ctx, s.db, s.clock.Now())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.log.Info("expired entitlements deactivated", zap.Int64("count", count))
	}
	return count, nil
}

// resolveTier finds the tier named on the confirmation, or falls back to
// matching by the charged amount when the tier level is absent.
func (s *Service) resolveTier(ctx context.Context, outcome entitlementdomain.PaymentOutcome) (*tierdomain.TierDefinition, error) {
	if outcome.TierLevel > 0 {
		tier, err := s.tiersvc.Resolve(ctx, tierdomain.ResolveRequest{
			NovelID:   outcome.NovelID,
			TierLevel: outcome.TierLevel,
		})
		if err != nil {
			if errors.Is(err, tierdomain.ErrTierNotFound) {
				return nil, entitlementdomain.ErrTierUnresolved
			}
			return nil, err
		}
		return tier, nil
	}

	tier, err := s.tiersvc.ResolveByPrice(ctx, tierdomain.ResolveByPriceRequest{
		NovelID:     outcome.NovelID,
		AmountMinor: outcome.AmountMinor,
	})
	if err != nil {
		if errors.Is(err, tierdomain.ErrTierNotFound) || errors.Is(err, tierdomain.ErrInvalidTier) {
			return nil, entitlementdomain.ErrTierUnresolved
		}
		return nil, err
	}
	return tier, nil
}

func (s *Service) applyDecision(
	ctx context.Context,
	tx *gorm.DB,
	existing *entitlementdomain.Entitlement,
	decision entitlementdomain.TransitionDecision,
	tier *tierdomain.TierDefinition,
	outcome entitlementdomain.PaymentOutcome,
	now time.Time,
) (*entitlementdomain.Entitlement, error) {
	autoRenew := outcome.GatewayKind == entitlementdomain.GatewayKindRecurring

	if existing == nil {
		ent := &entitlementdomain.Entitlement{
			ID:             s.genID.Generate(),
			ReaderID:       outcome.ReaderID,
			NovelID:        outcome.NovelID,
			TierLevel:      tier.TierLevel,
			TierName:       tier.TierName,
			BasePriceMinor: tier.MonthlyPriceMinor,
			Currency:       tier.Currency,
			WindowStart:    decision.WindowStart,
			WindowEnd:      decision.WindowEnd,
			PaymentMethod:  outcome.PaymentMethod,
			AutoRenew:      autoRenew,
			IsActive:       true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		ent.ExternalSubscriptionRef = nilIfEmpty(outcome.ExternalSubscriptionRef)
		ent.ExternalCustomerRef = nilIfEmpty(outcome.ExternalCustomerRef)
		if err := s.repo.Insert(ctx, tx, ent); err != nil {
			return nil, err
		}
		return ent, nil
	}

	existing.TierLevel = tier.TierLevel
	existing.TierName = tier.TierName
	existing.BasePriceMinor = tier.MonthlyPriceMinor
	existing.Currency = tier.Currency
	existing.WindowStart = decision.WindowStart
	existing.WindowEnd = decision.WindowEnd
	existing.PaymentMethod = outcome.PaymentMethod
	existing.IsActive = true
	existing.UpdatedAt = now
	if autoRenew {
		existing.AutoRenew = true
	}
	if ref := nilIfEmpty(outcome.ExternalSubscriptionRef); ref != nil {
		existing.ExternalSubscriptionRef = ref
	}
	if ref := nilIfEmpty(outcome.ExternalCustomerRef); ref != nil {
		existing.ExternalCustomerRef = ref
	}

	ok, err := s.repo.Update(ctx, tx, existing)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, entitlementdomain.ErrConflict
	}
	return existing, nil
}

// findReplay returns the stored result for an already-applied
// transaction reference, or nil when the confirmation is fresh.
func (s *Service) findReplay(ctx context.Context, transactionRef string) (*entitlementdomain.Result, error) {
	ref := strings.TrimSpace(transactionRef)
	if ref == "" {
		return nil, nil
	}

	record, err := s.ledgersvc.FindByTransactionRef(ctx, ref)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	s.log.Info("duplicate confirmation replayed",
		zap.String("transaction_ref", ref),
		zap.Int64("change_record_id", int64(record.ID)),
	)

	result := &entitlementdomain.Result{
		EntitlementID:  record.EntitlementID,
		Transition:     record.Transition,
		TierLevel:      record.TierLevel,
		TierName:       record.TierName,
		WindowStart:    record.WindowStart,
		WindowEnd:      record.WindowEnd,
		ChangeRecordID: record.ID,
		Replayed:       true,
	}
	if len(record.AfterState) > 0 {
		var after entitlementdomain.Snapshot
		if err := json.Unmarshal(record.AfterState, &after); err == nil {
			result.AutoRenew = after.AutoRenew
		}
	}
	return result, nil
}

// scheduleSync pushes the reconciled state to the billing provider off
// the request path. Failures are logged and counted, never surfaced:
// local state is authoritative and already committed.
func (s *Service) scheduleSync(ent *entitlementdomain.Entitlement, tier *tierdomain.TierDefinition) {
	if s.syncer == nil || ent == nil || !ent.AutoRenew {
		return
	}
	if ent.ExternalSubscriptionRef == nil || strings.TrimSpace(*ent.ExternalSubscriptionRef) == "" {
		return
	}
	if tier.ExternalPriceRef == nil || strings.TrimSpace(*tier.ExternalPriceRef) == "" {
		s.log.Warn("gateway sync skipped, no external price reference",
			zap.Int64("entitlement_id", int64(ent.ID)),
			zap.Int("tier_level", tier.TierLevel),
		)
		return
	}

	sync := gatewaydomain.SubscriptionSync{
		SubscriptionRef: *ent.ExternalSubscriptionRef,
		PriceRef:        *tier.ExternalPriceRef,
		WindowEnd:       ent.WindowEnd,
	}
	entitlementID := ent.ID

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.syncTimeout)
		defer cancel()

		if err := s.syncer.Sync(ctx, sync); err != nil {
			s.log.Warn("gateway sync failed",
				zap.Int64("entitlement_id", int64(entitlementID)),
				zap.String("subscription_ref", sync.SubscriptionRef),
				zap.Error(err),
			)
			s.obsMetrics.RecordSyncFailure(ctx, s.syncer.Provider())
		}
	}()
}

func nilIfEmpty(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/shi0417/kongfuworld-champion/internal/clock"
	gatewaydomain "github.com/shi0417/kongfuworld-champion/internal/gateway/domain"
	tierdomain "github.com/shi0417/kongfuworld-champion/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	repo    tierdomain.Repository
	pricing gatewaydomain.PricingGateway
}

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    tierdomain.Repository
	Pricing gatewaydomain.PricingGateway `optional:"true"`
}

func NewService(p Params) tierdomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("tier.service"),

		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		pricing: p.Pricing,
	}
}

// Resolve implements domain.Service.
func (s *Service) Resolve(ctx context.Context, req tierdomain.ResolveRequest) (*tierdomain.TierDefinition, error) {
	if req.NovelID == 0 {
		return nil, tierdomain.ErrInvalidNovel
	}
	if req.TierLevel <= 0 {
		return nil, tierdomain.ErrInvalidTier
	}

	tier, err := s.repo.FindByLevel(ctx, s.db, req.NovelID, req.TierLevel)
	if err != nil {
		return nil, err
	}
	if tier == nil {
		return nil, tierdomain.ErrTierNotFound
	}

	if err := s.ensurePriceRef(ctx, tier); err != nil {
		return nil, err
	}
	return tier, nil
}

// ResolveByPrice implements domain.Service. It never talks to the
// pricing gateway: callers reconciling an already captured payment must
// not fail on provider hiccups.
func (s *Service) ResolveByPrice(ctx context.Context, req tierdomain.ResolveByPriceRequest) (*tierdomain.TierDefinition, error) {
	if req.NovelID == 0 {
		return nil, tierdomain.ErrInvalidNovel
	}
	if req.AmountMinor <= 0 {
		return nil, tierdomain.ErrInvalidTier
	}

	tier, err := s.repo.FindByPrice(ctx, s.db, req.NovelID, req.AmountMinor)
	if err != nil {
		return nil, err
	}
	if tier == nil {
		return nil, tierdomain.ErrTierNotFound
	}
	return tier, nil
}

// List implements domain.Service.
func (s *Service) List(ctx context.Context, novelID snowflake.ID) ([]tierdomain.TierDefinition, error) {
	if novelID == 0 {
		return nil, tierdomain.ErrInvalidNovel
	}
	return s.repo.ListActive(ctx, s.db, novelID)
}

// ApplyDefaults implements domain.Service.
func (s *Service) ApplyDefaults(ctx context.Context, novelID snowflake.ID) ([]tierdomain.TierDefinition, error) {
	if novelID == 0 {
		return nil, tierdomain.ErrInvalidNovel
	}

	existing, err := s.repo.ListActive(ctx, s.db, novelID)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return existing, nil
	}

	defaults, err := s.repo.ListDefaults(ctx, s.db)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	tiers := make([]tierdomain.TierDefinition, 0, len(defaults))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, def := range defaults {
			tier := tierdomain.TierDefinition{
				ID:                s.genID.Generate(),
				NovelID:           novelID,
				TierLevel:         def.TierLevel,
				TierName:          def.TierName,
				MonthlyPriceMinor: def.MonthlyPriceMinor,
				Currency:          def.Currency,
				AdvanceChapters:   def.AdvanceChapters,
				IsActive:          true,
				SortOrder:         def.SortOrder,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := s.repo.Insert(ctx, tx, &tier); err != nil {
				return err
			}
			tiers = append(tiers, tier)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("default tiers applied",
		zap.Int64("novel_id", int64(novelID)),
		zap.Int("count", len(tiers)),
	)
	return tiers, nil
}

// ReplaceTiers implements domain.Service.
func (s *Service) ReplaceTiers(ctx context.Context, req tierdomain.ReplaceTiersRequest) ([]tierdomain.TierDefinition, error) {
	if req.NovelID == 0 {
		return nil, tierdomain.ErrInvalidNovel
	}
	if len(req.Tiers) == 0 {
		return nil, tierdomain.ErrInvalidTier
	}

	seen := make(map[int]struct{}, len(req.Tiers))
	for _, spec := range req.Tiers {
		if spec.TierLevel <= 0 || spec.MonthlyPriceMinor <= 0 || strings.TrimSpace(spec.TierName) == "" {
			return nil, tierdomain.ErrInvalidTier
		}
		if _, dup := seen[spec.TierLevel]; dup {
			return nil, tierdomain.ErrDuplicateLevel
		}
		seen[spec.TierLevel] = struct{}{}
	}

	now := s.clock.Now()
	tiers := make([]tierdomain.TierDefinition, 0, len(req.Tiers))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.DeleteByNovel(ctx, tx, req.NovelID); err != nil {
			return err
		}
		for _, spec := range req.Tiers {
			currency := strings.ToUpper(strings.TrimSpace(spec.Currency))
			if currency == "" {
				currency = "USD"
			}
			tier := tierdomain.TierDefinition{
				ID:                s.genID.Generate(),
				NovelID:           req.NovelID,
				TierLevel:         spec.TierLevel,
				TierName:          strings.TrimSpace(spec.TierName),
				MonthlyPriceMinor: spec.MonthlyPriceMinor,
				Currency:          currency,
				AdvanceChapters:   spec.AdvanceChapters,
				IsActive:          true,
				SortOrder:         spec.SortOrder,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := s.repo.Insert(ctx, tx, &tier); err != nil {
				return err
			}
			tiers = append(tiers, tier)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("tier ladder replaced",
		zap.Int64("novel_id", int64(req.NovelID)),
		zap.Int("count", len(tiers)),
	)
	return tiers, nil
}

// ensurePriceRef lazily materializes the external price reference and
// replaces references the provider no longer recognizes.
func (s *Service) ensurePriceRef(ctx context.Context, tier *tierdomain.TierDefinition) error {
	if s.pricing == nil {
		return nil
	}

	if tier.ExternalPriceRef != nil && strings.TrimSpace(*tier.ExternalPriceRef) != "" {
		ok, err := s.pricing.VerifyPrice(ctx, *tier.ExternalPriceRef)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		s.log.Warn("stale external price reference",
			zap.Int64("tier_id", int64(tier.ID)),
			zap.String("ref", *tier.ExternalPriceRef),
		)
	}

	ref, err := s.pricing.EnsurePrice(ctx, gatewaydomain.PriceSpec{
		NovelID:     tier.NovelID,
		TierLevel:   tier.TierLevel,
		TierName:    tier.TierName,
		AmountMinor: tier.MonthlyPriceMinor,
		Currency:    tier.Currency,
	})
	if err != nil {
		return err
	}

	now := s.clock.Now()
	if err := s.repo.SetExternalPriceRef(ctx, s.db, tier.ID, ref, now); err != nil {
		return err
	}

	tier.ExternalPriceRef = &ref
	tier.UpdatedAt = now
	return nil
}

package service

import (
	"context"

	"github.com/shi0417/kongfuworld-champion/internal/cache"
	chapterdomain "github.com/shi0417/kongfuworld-champion/internal/chapter/domain"
	"github.com/shi0417/kongfuworld-champion/internal/clock"
	entitlementdomain "github.com/shi0417/kongfuworld-champion/internal/entitlement/domain"
	noveldomain "github.com/shi0417/kongfuworld-champion/internal/novel/domain"
	obsmetrics "github.com/shi0417/kongfuworld-champion/internal/observability/metrics"
	tierdomain "github.com/shi0417/kongfuworld-champion/internal/tier/domain"
	visibilitydomain "github.com/shi0417/kongfuworld-champion/internal/visibility/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	clock       clock.Clock
	novelRepo   noveldomain.Repository
	chapterRepo chapterdomain.Repository
	entRepo     entitlementdomain.Repository
	tierRepo    tierdomain.Repository

	cache      cache.VisibilityCache
	obsMetrics *obsmetrics.Metrics
}

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger

	Clock       clock.Clock
	NovelRepo   noveldomain.Repository
	ChapterRepo chapterdomain.Repository
	EntRepo     entitlementdomain.Repository
	TierRepo    tierdomain.Repository

	Cache      cache.VisibilityCache `optional:"true"`
	ObsMetrics *obsmetrics.Metrics   `optional:"true"`
}

func NewService(p Params) visibilitydomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("visibility.service"),

		clock:       p.Clock,
		novelRepo:   p.NovelRepo,
		chapterRepo: p.ChapterRepo,
		entRepo:     p.EntRepo,
		tierRepo:    p.TierRepo,

		cache:      p.Cache,
		obsMetrics: p.ObsMetrics,
	}
}

// Compute implements domain.Service.
func (s *Service) Compute(ctx context.Context, req visibilitydomain.ComputeRequest) (visibilitydomain.Result, error) {
	if req.NovelID == 0 {
		return visibilitydomain.Result{}, visibilitydomain.ErrInvalidNovel
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(req.NovelID, req.ReaderID); ok {
			s.obsMetrics.RecordVisibilityLookup(ctx, true)
			return cached, nil
		}
	}
	s.obsMetrics.RecordVisibilityLookup(ctx, false)

	novel, err := s.novelRepo.FindByID(ctx, s.db, req.NovelID)
	if err != nil {
		return visibilitydomain.Result{}, err
	}
	if novel == nil {
		return visibilitydomain.Result{}, visibilitydomain.ErrNovelNotFound
	}

	baseMax, err := s.chapterRepo.MaxReleased(ctx, s.db, req.NovelID)
	if err != nil {
		return visibilitydomain.Result{}, err
	}
	allMax, err := s.chapterRepo.MaxReleasedIncludingAdvance(ctx, s.db, req.NovelID)
	if err != nil {
		return visibilitydomain.Result{}, err
	}

	result := visibilitydomain.Result{
		NovelID:               req.NovelID,
		ChampionEnabled:       novel.ChampionEnabled,
		BaseMaxChapter:        baseMax,
		AllReleasedMaxChapter: allMax,
		VisibleMaxChapter:     baseMax,
	}

	if !novel.ChampionEnabled || req.ReaderID == nil {
		s.cacheResult(req, result)
		return result, nil
	}

	ent, err := s.entRepo.FindActiveAt(ctx, s.db, *req.ReaderID, req.NovelID, s.clock.Now())
	if err != nil {
		return visibilitydomain.Result{}, err
	}
	if ent == nil {
		s.cacheResult(req, result)
		return result, nil
	}

	result.HasEntitlement = true
	result.TierLevel = ent.TierLevel

	tier, err := s.tierRepo.FindByLevel(ctx, s.db, req.NovelID, ent.TierLevel)
	if err != nil {
		return visibilitydomain.Result{}, err
	}
	if tier == nil {
		// Ladder changed under the entitlement. Paid readers still get
		// everything released so far rather than losing access.
		s.log.Warn("entitlement references missing tier",
			zap.Int64("novel_id", int64(req.NovelID)),
			zap.Int("tier_level", ent.TierLevel),
		)
		result.VisibleMaxChapter = allMax
		s.cacheResult(req, result)
		return result, nil
	}

	result.AdvanceChapters = tier.AdvanceChapters
	visible := baseMax + int64(tier.AdvanceChapters)
	if visible > allMax {
		visible = allMax
	}
	result.VisibleMaxChapter = visible

	s.cacheResult(req, result)
	return result, nil
}

func (s *Service) cacheResult(req visibilitydomain.ComputeRequest, result visibilitydomain.Result) {
	if s.cache != nil {
		s.cache.Set(req.NovelID, req.ReaderID, result)
	}
}

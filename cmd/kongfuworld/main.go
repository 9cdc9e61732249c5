package main

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shi0417/kongfuworld-champion/internal/chapter"
	"github.com/shi0417/kongfuworld-champion/internal/clock"
	"github.com/shi0417/kongfuworld-champion/internal/config"
	"github.com/shi0417/kongfuworld-champion/internal/entitlement"
	entitlementdomain "github.com/shi0417/kongfuworld-champion/internal/entitlement/domain"
	"github.com/shi0417/kongfuworld-champion/internal/gateway"
	"github.com/shi0417/kongfuworld-champion/internal/ledger"
	"github.com/shi0417/kongfuworld-champion/internal/logger"
	"github.com/shi0417/kongfuworld-champion/internal/migration"
	"github.com/shi0417/kongfuworld-champion/internal/novel"
	"github.com/shi0417/kongfuworld-champion/internal/observability"
	"github.com/shi0417/kongfuworld-champion/internal/promotion"
	"github.com/shi0417/kongfuworld-champion/internal/tier"
	"github.com/shi0417/kongfuworld-champion/internal/visibility"
	"github.com/shi0417/kongfuworld-champion/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const expirySweepInterval = time.Hour

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// Functional domains
		novel.Module,
		chapter.Module,
		tier.Module,
		promotion.Module,
		ledger.Module,
		entitlement.Module,
		visibility.Module,
		gateway.Module,

		fx.Invoke(registerExpirySweep),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// registerExpirySweep periodically deactivates entitlements whose paid
// window has ended.
func registerExpirySweep(lc fx.Lifecycle, svc entitlementdomain.Service, log *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				defer close(done)
				ticker := time.NewTicker(expirySweepInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if _, err := svc.DeactivateExpired(ctx); err != nil {
							log.Warn("expiry sweep failed", zap.Error(err))
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

package visibility

import (
	"github.com/shi0417/kongfuworld-champion/internal/cache"
	"github.com/shi0417/kongfuworld-champion/internal/visibility/service"
	"go.uber.org/fx"
)

var Module = fx.Module("visibility.service",
	fx.Provide(cache.NewVisibilityCache),
	fx.Provide(service.NewService),
)

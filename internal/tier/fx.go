package tier

import (
	"github.com/shi0417/kongfuworld-champion/internal/tier/repository"
	"github.com/shi0417/kongfuworld-champion/internal/tier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tier.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

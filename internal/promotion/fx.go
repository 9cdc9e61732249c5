package promotion

import (
	"github.com/shi0417/kongfuworld-champion/internal/promotion/repository"
	"github.com/shi0417/kongfuworld-champion/internal/promotion/service"
	"go.uber.org/fx"
)

var Module = fx.Module("promotion.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

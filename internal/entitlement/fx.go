package entitlement

import (
	"github.com/shi0417/kongfuworld-champion/internal/entitlement/repository"
	"github.com/shi0417/kongfuworld-champion/internal/entitlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

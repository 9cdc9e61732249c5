package ledger

import (
	"github.com/shi0417/kongfuworld-champion/internal/ledger/repository"
	"github.com/shi0417/kongfuworld-champion/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)

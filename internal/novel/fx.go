package novel

import (
	"github.com/shi0417/kongfuworld-champion/internal/novel/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("novel",
	fx.Provide(repository.Provide),
)

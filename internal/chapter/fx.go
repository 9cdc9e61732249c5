package chapter

import (
	"github.com/shi0417/kongfuworld-champion/internal/chapter/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("chapter",
	fx.Provide(repository.Provide),
)

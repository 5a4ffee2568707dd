package itdoc

import (
	"github.com/mspforge/mspforge/internal/itdoc/service"
	"go.uber.org/fx"
)

var Module = fx.Module("itdoc",
	fx.Provide(
		service.NewService,
	),
)

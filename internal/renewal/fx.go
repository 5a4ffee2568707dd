package renewal

import (
	"github.com/mspforge/mspforge/internal/renewal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("renewal",
	fx.Provide(
		service.NewService,
	),
)

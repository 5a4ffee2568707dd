package monitoring

import (
	"github.com/mspforge/mspforge/internal/monitoring/service"
	"go.uber.org/fx"
)

var Module = fx.Module("monitoring",
	fx.Provide(
		service.NewService,
	),
)

package invitation

import (
	"github.com/mspforge/mspforge/internal/invitation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invitation",
	fx.Provide(
		service.NewService,
	),
)

package events

import (
	"github.com/mspforge/mspforge/internal/events/service"
	"go.uber.org/fx"
)

var Module = fx.Module("events.service",
	fx.Provide(service.NewService),
)

package client

import (
	"github.com/mspforge/mspforge/internal/client/repository"
	"github.com/mspforge/mspforge/internal/client/service"
	"go.uber.org/fx"
)

var Module = fx.Module("client",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)

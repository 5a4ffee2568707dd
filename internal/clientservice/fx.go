package clientservice

import (
	"github.com/mspforge/mspforge/internal/clientservice/repository"
	"github.com/mspforge/mspforge/internal/clientservice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("clientservice",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)

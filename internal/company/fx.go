package company

import (
	"github.com/mspforge/mspforge/internal/company/repository"
	"github.com/mspforge/mspforge/internal/company/service"
	"go.uber.org/fx"
)

var Module = fx.Module("company",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)

package tenant

import (
	"github.com/smallbiznis/esimgate/internal/tenant/repository"
	"github.com/smallbiznis/esimgate/internal/tenant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tenant",
	fx.Provide(
		repository.NewRepository,
		service.NewService,
	),
)

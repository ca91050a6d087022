package purchase

import (
	"github.com/smallbiznis/esimgate/internal/purchase/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("purchase",
	fx.Provide(repository.NewRepository),
)

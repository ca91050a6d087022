package esim

import (
	"github.com/smallbiznis/esimgate/internal/esim/service"
	"go.uber.org/fx"
)

// Module wires the reconciliation engine.
var Module = fx.Module("esim",
	fx.Provide(
		service.NewRefresher,
		service.NewService,
	),
)

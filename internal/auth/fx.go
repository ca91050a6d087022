package auth

import (
	"github.com/smallbiznis/esimgate/internal/auth/local"
	"github.com/smallbiznis/esimgate/internal/auth/repository"
	"github.com/smallbiznis/esimgate/internal/auth/service"
	"github.com/smallbiznis/esimgate/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	fx.Provide(session.NewManager),
	fx.Provide(local.NewHandler),
	fx.Invoke(local.RegisterRoutes),
)

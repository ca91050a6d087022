package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/esimgate/internal/audit"
	"github.com/smallbiznis/esimgate/internal/auth"
	"github.com/smallbiznis/esimgate/internal/authorization"
	"github.com/smallbiznis/esimgate/internal/cache"
	"github.com/smallbiznis/esimgate/internal/clock"
	"github.com/smallbiznis/esimgate/internal/config"
	"github.com/smallbiznis/esimgate/internal/esim"
	"github.com/smallbiznis/esimgate/internal/logger"
	"github.com/smallbiznis/esimgate/internal/migration"
	"github.com/smallbiznis/esimgate/internal/provider"
	"github.com/smallbiznis/esimgate/internal/purchase"
	"github.com/smallbiznis/esimgate/internal/quota"
	"github.com/smallbiznis/esimgate/internal/server"
	"github.com/smallbiznis/esimgate/internal/tenant"
	"github.com/smallbiznis/esimgate/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		cache.Module,

		// Domains
		provider.Module,
		tenant.Module,
		quota.Module,
		purchase.Module,
		audit.Module,
		esim.Module,
		auth.Module,
		authorization.Module,

		migration.Module,
		server.Module,
	)
	app.Run()
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

package migration

import (
	auditdomain "github.com/smallbiznis/esimgate/internal/audit/domain"
	authdomain "github.com/smallbiznis/esimgate/internal/auth/domain"
	"github.com/smallbiznis/esimgate/internal/config"
	purchasedomain "github.com/smallbiznis/esimgate/internal/purchase/domain"
	quotadomain "github.com/smallbiznis/esimgate/internal/quota/domain"
	"github.com/smallbiznis/esimgate/internal/seed"
	tenantdomain "github.com/smallbiznis/esimgate/internal/tenant/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite and mysql installs use gorm's schema sync; the SQL
			// migrations are written for postgres.
			if err := conn.AutoMigrate(
				&tenantdomain.Tenant{},
				&purchasedomain.Purchase{},
				&quotadomain.DailyUsage{},
				&auditdomain.SystemLog{},
				&authdomain.Session{},
			); err != nil {
				return err
			}
		}

		if cfg.BootstrapAdmin {
			return seed.EnsureDefaultAdmin(conn, cfg)
		}
		return nil
	}),
)

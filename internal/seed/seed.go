// Package seed bootstraps the default admin account so a fresh install
// can be administered immediately.
package seed

import (
	"context"
	"errors"
	"os"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/esimgate/internal/auth/password"
	"github.com/smallbiznis/esimgate/internal/config"
	tenantdomain "github.com/smallbiznis/esimgate/internal/tenant/domain"
	"gorm.io/gorm"
)

const (
	defaultAdminUsername = "admin"
	defaultAdminPassword = "admin"
)

// EnsureDefaultAdmin creates the admin tenant when no admin exists yet.
// The initial password comes from BOOTSTRAP_ADMIN_PASSWORD when set.
func EnsureDefaultAdmin(db *gorm.DB, cfg config.Config) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&tenantdomain.Tenant{}).
			Where("role = ?", tenantdomain.RoleAdmin).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}

		pass := strings.TrimSpace(os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"))
		if pass == "" {
			pass = defaultAdminPassword
		}
		hashed, err := password.Hash(pass)
		if err != nil {
			return err
		}

		admin := tenantdomain.Tenant{
			ID:             node.Generate(),
			Username:       defaultAdminUsername,
			PasswordHash:   hashed,
			Role:           tenantdomain.RoleAdmin,
			IsActive:       true,
			DailyESIMLimit: cfg.Quota.DefaultDailyLimit,
			MaxGBPerESIM:   cfg.Quota.DefaultMaxGBPerSIM,
		}
		return tx.Create(&admin).Error
	})
}

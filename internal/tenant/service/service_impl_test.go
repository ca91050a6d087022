package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/esimgate/internal/auth/password"
	"github.com/smallbiznis/esimgate/internal/config"
	"github.com/smallbiznis/esimgate/internal/tenant/domain"
	"github.com/smallbiznis/esimgate/internal/tenant/repository"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	require.NoError(t, db.Exec("PRAGMA busy_timeout = 5000").Error)

	require.NoError(t, db.AutoMigrate(&domain.Tenant{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(ServiceParam{
		Cfg:   config.Config{Quota: config.QuotaConfig{DefaultDailyLimit: 5, DefaultMaxGBPerSIM: 20}},
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  repository.NewRepository(db),
	})
	return svc, db
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }

func TestCreateAppliesQuotaDefaults(t *testing.T) {
	svc, _ := setupService(t)

	tenant, err := svc.Create(context.Background(), domain.CreateTenantRequest{
		Username:    " Acme ",
		Password:    "s3cret-pass",
		CompanyName: "Acme Telecom Ltd",
	})
	require.NoError(t, err)
	require.Equal(t, "acme", tenant.Username)
	require.Equal(t, domain.RoleTenant, tenant.Role)
	require.True(t, tenant.IsActive)
	require.Equal(t, 5, tenant.DailyESIMLimit)
	require.Equal(t, 20, tenant.MaxGBPerESIM)
	require.Equal(t, "acme-telecom-ltd", tenant.CompanySlug)
	require.NotEqual(t, "s3cret-pass", tenant.PasswordHash)
	require.True(t, password.Verify("s3cret-pass", tenant.PasswordHash))
}

func TestCreateWithExplicitQuota(t *testing.T) {
	svc, _ := setupService(t)

	tenant, err := svc.Create(context.Background(), domain.CreateTenantRequest{
		Username:       "acme",
		Password:       "s3cret-pass",
		DailyESIMLimit: intPtr(0),
		MaxGBPerESIM:   intPtr(50),
	})
	require.NoError(t, err)
	// A zero daily limit is a valid setting that blocks purchases.
	require.Equal(t, 0, tenant.DailyESIMLimit)
	require.Equal(t, 50, tenant.MaxGBPerESIM)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateTenantRequest{Username: " ", Password: "s3cret-pass"})
	require.ErrorIs(t, err, domain.ErrInvalidUsername)

	_, err = svc.Create(ctx, domain.CreateTenantRequest{Username: "acme", Password: "short"})
	require.ErrorIs(t, err, domain.ErrInvalidPassword)

	_, err = svc.Create(ctx, domain.CreateTenantRequest{Username: "acme", Password: "s3cret-pass", Role: "superuser"})
	require.ErrorIs(t, err, domain.ErrInvalidRole)

	_, err = svc.Create(ctx, domain.CreateTenantRequest{
		Username: "acme", Password: "s3cret-pass", DailyESIMLimit: intPtr(-1),
	})
	require.ErrorIs(t, err, domain.ErrInvalidQuota)

	_, err = svc.Create(ctx, domain.CreateTenantRequest{
		Username: "acme", Password: "s3cret-pass", MaxGBPerESIM: intPtr(0),
	})
	require.ErrorIs(t, err, domain.ErrInvalidQuota)
}

func TestCreateDuplicateUsername(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, domain.CreateTenantRequest{Username: "acme", Password: "s3cret-pass"})
	require.NoError(t, err)

	// Username comparison is case-insensitive through normalization.
	_, err = svc.Create(ctx, domain.CreateTenantRequest{Username: "ACME", Password: "other-pass"})
	require.ErrorIs(t, err, domain.ErrUsernameTaken)
}

func TestUpdateQuotaAndActivation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, domain.CreateTenantRequest{Username: "acme", Password: "s3cret-pass"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID, domain.UpdateTenantRequest{
		IsActive:       boolPtr(false),
		DailyESIMLimit: intPtr(10),
	})
	require.NoError(t, err)
	require.False(t, updated.IsActive)
	require.Equal(t, 10, updated.DailyESIMLimit)
	require.Equal(t, 20, updated.MaxGBPerESIM)

	_, err = svc.Update(ctx, created.ID, domain.UpdateTenantRequest{MaxGBPerESIM: intPtr(-5)})
	require.ErrorIs(t, err, domain.ErrInvalidQuota)
}

func TestUpdateUnknownTenant(t *testing.T) {
	svc, _ := setupService(t)

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), node.Generate(), domain.UpdateTenantRequest{
		IsActive: boolPtr(false),
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateTenantRequest struct {
	Username       string `json:"username"`
	Password       string `json:"password"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Role           string `json:"role"`
	DailyESIMLimit *int   `json:"daily_esim_limit"`
	MaxGBPerESIM   *int   `json:"max_gb_per_esim"`
	CompanyName    string `json:"company_name"`
}

type UpdateTenantRequest struct {
	IsActive       *bool `json:"is_active"`
	DailyESIMLimit *int  `json:"daily_esim_limit"`
	MaxGBPerESIM   *int  `json:"max_gb_per_esim"`
}

type Service interface {
	Create(ctx context.Context, req CreateTenantRequest) (*Tenant, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateTenantRequest) (*Tenant, error)
}

var (
	ErrNotFound        = errors.New("tenant_not_found")
	ErrUsernameTaken   = errors.New("tenant_username_taken")
	ErrInvalidUsername = errors.New("invalid_username")
	ErrInvalidPassword = errors.New("invalid_password")
	ErrInvalidRole     = errors.New("invalid_role")
	ErrInvalidQuota    = errors.New("invalid_quota")
	ErrInactive        = errors.New("tenant_inactive")
)

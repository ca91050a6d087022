// Package domain contains the tenant account model and contracts.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleAdmin  = "admin"
	RoleTenant = "tenant"
)

// Tenant is an account entitled to purchase eSIMs, subject to a daily quota.
type Tenant struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	Username       string       `gorm:"type:text;not null;uniqueIndex" json:"username"`
	PasswordHash   string       `gorm:"type:text;not null" json:"-"`
	Email          string       `gorm:"type:text" json:"email,omitempty"`
	Phone          string       `gorm:"type:text" json:"phone,omitempty"`
	Role           string       `gorm:"type:text;not null;default:tenant" json:"role"`
	IsActive       bool         `gorm:"not null;default:true" json:"is_active"`
	DailyESIMLimit int          `gorm:"not null;default:5" json:"daily_esim_limit"`
	MaxGBPerESIM   int          `gorm:"not null;default:20" json:"max_gb_per_esim"`
	CompanyName    string       `gorm:"type:text" json:"company_name,omitempty"`
	CompanySlug    string       `gorm:"type:text;index" json:"company_slug,omitempty"`
	LastLoginAt    *time.Time   `json:"last_login_at,omitempty"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Tenant) TableName() string { return "tenants" }

func (t Tenant) IsAdmin() bool { return t.Role == RoleAdmin }

// Package domain contains the per-tenant daily usage counter.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	tenantdomain "github.com/smallbiznis/esimgate/internal/tenant/domain"
)

// DailyUsage is one row per tenant per calendar day. Created on the first
// purchase of the day, incremented atomically thereafter, never
// decremented. Quota reset is implicit: a new date gets a new row.
type DailyUsage struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	TenantID       snowflake.ID `gorm:"not null;uniqueIndex:idx_daily_usage_tenant_date"`
	UsageDate      string       `gorm:"type:text;not null;uniqueIndex:idx_daily_usage_tenant_date"`
	ESIMsCreated   int          `gorm:"not null;default:0"`
	TotalGBCreated int          `gorm:"not null;default:0"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`

	// Counters do not outlive their tenant.
	Tenant *tenantdomain.Tenant `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE"`
}

// TableName sets the database table name.
func (DailyUsage) TableName() string { return "daily_usage" }

// DateKey formats t as the UTC calendar day used for counter rows.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

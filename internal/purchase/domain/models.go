// Package domain contains the durable purchase record. The store is the
// single source of truth whenever the provider is unreachable.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	tenantdomain "github.com/smallbiznis/esimgate/internal/tenant/domain"
)

// Purchase statuses. pending -> active -> expired, with side transitions
// to cancelled or deleted from any non-terminal state.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusExpired   = "expired"
	StatusCancelled = "cancelled"
	StatusDeleted   = "deleted"
)

// IsTerminal reports whether status permits no further transitions.
func IsTerminal(status string) bool {
	switch status {
	case StatusExpired, StatusCancelled, StatusDeleted:
		return true
	default:
		return false
	}
}

// IsValidStatus reports whether status belongs to the internal vocabulary.
func IsValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusActive, StatusExpired, StatusCancelled, StatusDeleted:
		return true
	default:
		return false
	}
}

// Purchase is a tenant's instantiation of an offer, tracked by a unique
// caller-generated transaction id. The transaction id is immutable once
// set; status is the only field mutated post-creation. Rows are
// soft-deleted (status deleted + deleted_at) to preserve audit history.
type Purchase struct {
	ID             snowflake.ID    `gorm:"primaryKey" json:"id"`
	TenantID       snowflake.ID    `gorm:"not null;index" json:"tenant_id"`
	OfferID        string          `gorm:"type:text;not null" json:"offer_id"`
	OfferName      string          `gorm:"type:text" json:"offer_name,omitempty"`
	GBLimit        int             `gorm:"not null" json:"gb_limit"`
	Country        string          `gorm:"type:text;not null;default:TR" json:"country"`
	ValidityDays   int             `gorm:"not null;default:30" json:"validity_days"`
	TransactionID  string          `gorm:"type:text;not null;uniqueIndex" json:"transaction_id"`
	Status         string          `gorm:"type:text;not null;default:pending;index" json:"status"`
	DataUsedMB     int             `gorm:"not null;default:0" json:"data_used_mb"`
	Price          decimal.Decimal `gorm:"type:decimal(10,2)" json:"price"`
	Currency       string          `gorm:"type:text;default:USD" json:"currency"`
	ActivationCode string          `gorm:"type:text" json:"activation_code,omitempty"`
	SMDPAddress    string          `gorm:"type:text" json:"smdp_address,omitempty"`
	CreatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	ActivatedAt    *time.Time      `json:"activated_at,omitempty"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`

	// Tenant removal hard-deletes the tenant's purchases with it.
	Tenant *tenantdomain.Tenant `gorm:"foreignKey:TenantID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName sets the database table name.
func (Purchase) TableName() string { return "esim_packages" }

// Package domain contains the append-only system log row.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	tenantdomain "github.com/smallbiznis/esimgate/internal/tenant/domain"
	"gorm.io/datatypes"
)

// SystemLog is write-only from the core's perspective; only the admin
// surface reads it back.
type SystemLog struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	ActorID    *snowflake.ID     `gorm:"index" json:"actor_id,omitempty"`
	Action     string            `gorm:"type:text;not null;index" json:"action"`
	PurchaseID *snowflake.ID     `json:"purchase_id,omitempty"`
	Detail     string            `gorm:"type:text" json:"detail,omitempty"`
	IPAddress  string            `gorm:"type:text" json:"ip_address,omitempty"`
	UserAgent  string            `gorm:"type:text" json:"user_agent,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt  time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP;index" json:"created_at"`

	// Log rows outlive their actor; the reference is nulled, not deleted.
	Actor *tenantdomain.Tenant `gorm:"foreignKey:ActorID;constraint:OnDelete:SET NULL" json:"-"`
}

// TableName sets the database table name.
func (SystemLog) TableName() string { return "system_logs" }

// Entry is one loggable action.
type Entry struct {
	ActorID    *snowflake.ID
	Action     string
	PurchaseID *snowflake.ID
	Detail     string
	IPAddress  string
	UserAgent  string
	Metadata   map[string]any
}

// Recorder appends entries. Failures are logged, never surfaced: an audit
// write must not fail the action it records.
type Recorder interface {
	Record(ctx context.Context, entry Entry)
}

// Reader serves the admin log listing.
type Reader interface {
	List(ctx context.Context, limit, offset int) ([]SystemLog, error)
}

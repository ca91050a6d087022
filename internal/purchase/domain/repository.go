package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	// WithTrx returns a repository bound to tx for transactional writes.
	WithTrx(tx *gorm.DB) Repository
	Create(ctx context.Context, purchase *Purchase) error
	GetByTransactionID(ctx context.Context, transactionID string) (*Purchase, error)
	// ListByTenant returns the tenant's purchases newest first,
	// excluding soft-deleted rows.
	ListByTenant(ctx context.Context, tenantID snowflake.ID) ([]Purchase, error)
	// Reconcile sets status only if it differs from the stored value and
	// reports whether a write occurred, so callers can skip cache
	// invalidation on no-ops. Concurrent calls for one transaction id are
	// safe: last write wins.
	Reconcile(ctx context.Context, transactionID, newStatus string) (bool, error)
	// SoftDelete marks the purchase deleted without removing the row.
	SoftDelete(ctx context.Context, transactionID string) (bool, error)
}

var (
	ErrNotFound      = errors.New("purchase_not_found")
	ErrDuplicateTxID = errors.New("purchase_duplicate_transaction")
	ErrInvalidStatus = errors.New("purchase_invalid_status")
)

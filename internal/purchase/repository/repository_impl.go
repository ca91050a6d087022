package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/esimgate/internal/clock"
	"github.com/smallbiznis/esimgate/internal/purchase/domain"
	"github.com/smallbiznis/esimgate/pkg/db"
	"gorm.io/gorm"
)

type repository struct {
	db  *gorm.DB
	clk clock.Clock
}

func NewRepository(conn *gorm.DB, clk clock.Clock) domain.Repository {
	return &repository{db: conn, clk: clk}
}

func (r *repository) WithTrx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx, clk: r.clk}
}

func (r *repository) Create(ctx context.Context, purchase *domain.Purchase) error {
	if err := r.db.WithContext(ctx).Create(purchase).Error; err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrDuplicateTxID
		}
		return err
	}
	return nil
}

func (r *repository) GetByTransactionID(ctx context.Context, transactionID string) (*domain.Purchase, error) {
	var purchase domain.Purchase
	err := r.db.WithContext(ctx).
		First(&purchase, "transaction_id = ?", transactionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &purchase, nil
}

func (r *repository) ListByTenant(ctx context.Context, tenantID snowflake.ID) ([]domain.Purchase, error) {
	var purchases []domain.Purchase
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status <> ?", tenantID, domain.StatusDeleted).
		Order("created_at DESC").
		Find(&purchases).Error
	return purchases, err
}

// Reconcile is a single guarded UPDATE: the status <> new predicate makes
// duplicate reconciliations report no-op instead of rewriting the row, and
// the database serializes concurrent writers so the last one wins without
// corrupting state. Lifecycle timestamps are COALESCEd so the first
// transition into a state pins its time.
func (r *repository) Reconcile(ctx context.Context, transactionID, newStatus string) (bool, error) {
	if !domain.IsValidStatus(newStatus) {
		return false, domain.ErrInvalidStatus
	}

	now := r.clk.Now().UTC()
	fields := map[string]any{
		"status":     newStatus,
		"updated_at": now,
	}
	switch newStatus {
	case domain.StatusActive:
		fields["activated_at"] = gorm.Expr("COALESCE(activated_at, ?)", now)
	case domain.StatusExpired:
		fields["expires_at"] = gorm.Expr("COALESCE(expires_at, ?)", now)
	case domain.StatusDeleted:
		fields["deleted_at"] = gorm.Expr("COALESCE(deleted_at, ?)", now)
	}

	res := r.db.WithContext(ctx).
		Model(&domain.Purchase{}).
		Where("transaction_id = ? AND status <> ?", transactionID, newStatus).
		Updates(fields)
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// No write happened: either the status already matched (no-op) or the
	// record does not exist.
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&domain.Purchase{}).
		Where("transaction_id = ?", transactionID).
		Count(&count).Error; err != nil {
		return false, err
	}
	if count == 0 {
		return false, domain.ErrNotFound
	}
	return false, nil
}

func (r *repository) SoftDelete(ctx context.Context, transactionID string) (bool, error) {
	return r.Reconcile(ctx, transactionID, domain.StatusDeleted)
}

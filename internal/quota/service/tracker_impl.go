package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/esimgate/internal/clock"
	"github.com/smallbiznis/esimgate/internal/quota/domain"
	tenantdomain "github.com/smallbiznis/esimgate/internal/tenant/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TrackerParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Tracker struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func NewTracker(p TrackerParam) domain.Tracker {
	return &Tracker{
		db:    p.DB,
		log:   p.Log.Named("quota.tracker"),
		genID: p.GenID,
		clock: p.Clock,
	}
}

// CheckAndReserve admits via a compare-and-swap on the counter row: read the
// current count, then UPDATE guarded on that exact value. The database
// serializes the row update and re-evaluates the WHERE clause under the row
// lock, so two racing requests can never both take the last slot, and a won
// swap pins the exact post-increment count for the decision. The guard holds
// across process instances; an in-process mutex would not survive a load
// balancer. A lost swap means a neighbor advanced the counter, so the retry
// loop terminates once the count reaches the (finite) limit.
func (t *Tracker) CheckAndReserve(ctx context.Context, tenantID snowflake.ID, requestedGB int) (domain.Decision, error) {
	limit, err := t.dailyLimit(ctx, tenantID)
	if err != nil {
		return domain.Decision{}, err
	}

	date := domain.DateKey(t.clock.Now())

	if limit > 0 {
		if err := t.ensureRow(ctx, tenantID, date); err != nil {
			return domain.Decision{}, err
		}

		for {
			used, err := t.usedToday(ctx, tenantID, date)
			if err != nil {
				return domain.Decision{}, err
			}
			if used >= limit {
				break
			}

			res := t.db.WithContext(ctx).
				Model(&domain.DailyUsage{}).
				Where("tenant_id = ? AND usage_date = ? AND esims_created = ?", tenantID, date, used).
				Updates(map[string]any{
					"esims_created":    used + 1,
					"total_gb_created": gorm.Expr("total_gb_created + ?", requestedGB),
					"updated_at":       t.clock.Now().UTC(),
				})
			if res.Error != nil {
				return domain.Decision{}, res.Error
			}
			if res.RowsAffected == 1 {
				return decision(true, limit, used+1), nil
			}
		}
	}

	used, err := t.usedToday(ctx, tenantID, date)
	if err != nil {
		return domain.Decision{}, err
	}
	rejected := decision(false, limit, used)
	return rejected, &domain.QuotaExceededError{Decision: rejected}
}

func (t *Tracker) Usage(ctx context.Context, tenantID snowflake.ID) (domain.Decision, error) {
	limit, err := t.dailyLimit(ctx, tenantID)
	if err != nil {
		return domain.Decision{}, err
	}
	used, err := t.usedToday(ctx, tenantID, domain.DateKey(t.clock.Now()))
	if err != nil {
		return domain.Decision{}, err
	}
	return decision(used < limit, limit, used), nil
}

func (t *Tracker) dailyLimit(ctx context.Context, tenantID snowflake.ID) (int, error) {
	var tenant tenantdomain.Tenant
	err := t.db.WithContext(ctx).
		Select("daily_esim_limit").
		Where("id = ? AND is_active = ?", tenantID, true).
		First(&tenant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, domain.ErrTenantNotFound
		}
		return 0, err
	}
	return tenant.DailyESIMLimit, nil
}

func (t *Tracker) ensureRow(ctx context.Context, tenantID snowflake.ID, date string) error {
	row := domain.DailyUsage{
		ID:        t.genID.Generate(),
		TenantID:  tenantID,
		UsageDate: date,
	}
	return t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "usage_date"}},
			DoNothing: true,
		}).
		Create(&row).Error
}

func (t *Tracker) usedToday(ctx context.Context, tenantID snowflake.ID, date string) (int, error) {
	var row domain.DailyUsage
	err := t.db.WithContext(ctx).
		Where("tenant_id = ? AND usage_date = ?", tenantID, date).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return row.ESIMsCreated, nil
}

func decision(allowed bool, limit, used int) domain.Decision {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return domain.Decision{
		Allowed:   allowed,
		Limit:     limit,
		Used:      used,
		Remaining: remaining,
	}
}

package infrastructure

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fieldops/internal/service/settlement/domain"
)

// GormPeriodRepository 是 domain.Repository 的 GORM 实现。
type GormPeriodRepository struct {
	db *gorm.DB
}

func NewGormPeriodRepository(db *gorm.DB) *GormPeriodRepository {
	return &GormPeriodRepository{db: db}
}

func (r *GormPeriodRepository) FindLockedFor(ctx context.Context, branchID string, date time.Time) (*domain.Period, error) {
	var model SettlementPeriodModel
	err := r.db.WithContext(ctx).
		Where("branch_id = ? AND status = ? AND period_start <= ? AND period_end >= ?",
			branchID, string(domain.PeriodLocked), date, date).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDomainPeriod(&model), nil
}

// Lock 按 (branch_id, period_start) upsert，重复加锁只刷新锁定信息。
func (r *GormPeriodRepository) Lock(ctx context.Context, branchID string, start, end time.Time, by string, at time.Time) error {
	model := SettlementPeriodModel{
		BranchID:    branchID,
		PeriodStart: start,
		PeriodEnd:   end,
		Status:      string(domain.PeriodLocked),
		LockedBy:    by,
		LockedAt:    &at,
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "branch_id"}, {Name: "period_start"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "locked_by", "locked_at"}),
	}).Create(&model).Error
}

func (r *GormPeriodRepository) Unlock(ctx context.Context, branchID string, start time.Time, by string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&SettlementPeriodModel{}).
		Where("branch_id = ? AND period_start = ?", branchID, start).
		Updates(map[string]interface{}{
			"status":      string(domain.PeriodOpen),
			"unlocked_by": by,
			"unlocked_at": at,
		}).Error
}

func (r *GormPeriodRepository) ListBranchIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&BranchModel{}).Pluck("id", &ids).Error
	return ids, err
}

package infrastructure

import (
	"time"

	"gorm.io/gorm"

	"fieldops/internal/service/settlement/domain"
)

// SettlementPeriodModel 对应数据库中的 settlement_period 表。
type SettlementPeriodModel struct {
	gorm.Model
	BranchID    string    `gorm:"size:64;uniqueIndex:idx_branch_week,priority:1"`
	PeriodStart time.Time `gorm:"uniqueIndex:idx_branch_week,priority:2"`
	PeriodEnd   time.Time
	Status      string `gorm:"size:16;default:OPEN"`
	LockedBy    string `gorm:"size:64"`
	LockedAt    *time.Time
	UnlockedBy  string `gorm:"size:64"`
	UnlockedAt  *time.Time
}

func (SettlementPeriodModel) TableName() string {
	return "settlement_period"
}

// BranchModel 与订单服务共用 branch 表，这里只做只读列表。
type BranchModel struct {
	ID   string `gorm:"primaryKey;size:64"`
	Name string
}

func (BranchModel) TableName() string {
	return "branch"
}

func toDomainPeriod(m *SettlementPeriodModel) *domain.Period {
	return &domain.Period{
		ID:          m.ID,
		BranchID:    m.BranchID,
		PeriodStart: m.PeriodStart,
		PeriodEnd:   m.PeriodEnd,
		Status:      domain.PeriodStatus(m.Status),
		LockedBy:    m.LockedBy,
		LockedAt:    m.LockedAt,
		UnlockedBy:  m.UnlockedBy,
		UnlockedAt:  m.UnlockedAt,
	}
}

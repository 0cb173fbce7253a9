package domain

import (
	"context"
	"time"
)

// PeriodStatus 表示结算周的冻结状态。
type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "OPEN"
	PeriodLocked PeriodStatus = "LOCKED"
)

// Period 是网点维度的周结算窗口 [周一, 周日]。
// 每个 (branch, week) 至多一行，由定时任务惰性创建。
type Period struct {
	ID          uint
	BranchID    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Status      PeriodStatus
	LockedBy    string
	LockedAt    *time.Time
	UnlockedBy  string
	UnlockedAt  *time.Time
}

// Contains 判断日期是否落在本周期内（按自然日闭区间）。
func (p *Period) Contains(t time.Time) bool {
	day := truncateDay(t)
	return !day.Before(truncateDay(p.PeriodStart)) && !day.After(truncateDay(p.PeriodEnd))
}

// WeekOf 返回 t 所在自然周的 [周一 00:00, 周日 00:00]。
func WeekOf(t time.Time) (start, end time.Time) {
	day := truncateDay(t)
	offset := (int(day.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
	start = day.AddDate(0, 0, -offset)
	end = start.AddDate(0, 0, 6)
	return start, end
}

// PreviousWeekOf 返回 t 的上一个自然周。
func PreviousWeekOf(t time.Time) (start, end time.Time) {
	return WeekOf(t.AddDate(0, 0, -7))
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Repository 是结算周期表的持久化接口。
type Repository interface {
	// FindLockedFor 返回 branch 下覆盖 date 且 status=LOCKED 的周期，没有则返回 nil。
	FindLockedFor(ctx context.Context, branchID string, date time.Time) (*Period, error)
	// Lock 对 (branch, week) 落一条 LOCKED 行，已存在则刷新为 LOCKED。
	Lock(ctx context.Context, branchID string, start, end time.Time, by string, at time.Time) error
	// Unlock 把 (branch, week) 标记为 OPEN，记录解锁人/时间。
	Unlock(ctx context.Context, branchID string, start time.Time, by string, at time.Time) error
	// ListBranchIDs 返回所有网点，定时任务逐网点加锁/解锁。
	ListBranchIDs(ctx context.Context) ([]string, error)
}

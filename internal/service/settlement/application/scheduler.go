package application

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fieldops/internal/pkg/clock"
	"fieldops/internal/service/settlement/domain"
	"fieldops/internal/service/settlement/port"
)

const (
	// 周一 00:05 冻结上一周，周五 17:00 放开补录窗口
	lockCronSpec   = "5 0 * * MON"
	unlockCronSpec = "0 17 * * FRI"

	schedulerActor = "settlement-scheduler"

	// 单次任务里并发处理网点的上限
	branchConcurrency = 8
)

// Scheduler 驱动结算周的定时加锁/解锁。
type Scheduler struct {
	periods domain.Repository
	cache   port.MarkerCache
	clk     clock.Clock
	cron    *cron.Cron
}

func NewScheduler(periods domain.Repository, cache port.MarkerCache, clk clock.Clock) *Scheduler {
	return &Scheduler{
		periods: periods,
		cache:   cache,
		clk:     clk,
		cron:    cron.New(),
	}
}

// Start 注册两个周期任务并启动调度器。
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(lockCronSpec, func() {
		if err := s.LockPreviousWeek(context.Background()); err != nil {
			log.Error().Err(err).Msg("settlement lock job failed")
		}
	}); err != nil {
		return errors.Wrap(err, "register lock job")
	}
	if _, err := s.cron.AddFunc(unlockCronSpec, func() {
		if err := s.UnlockPreviousWeek(context.Background()); err != nil {
			log.Error().Err(err).Msg("settlement unlock job failed")
		}
	}); err != nil {
		return errors.Wrap(err, "register unlock job")
	}
	s.cron.Start()
	return nil
}

// Stop 等待在途任务结束。
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// LockPreviousWeek 对每个网点冻结上一自然周：
// 落 LOCKED 周期行、写到期时间为“下个周五 17:00”的缓存标记、失效该网点 KPI 缓存。
func (s *Scheduler) LockPreviousWeek(ctx context.Context) error {
	now := s.clk.Now()
	weekStart, weekEnd := domain.PreviousWeekOf(now)
	expireAt := nextFriday17(now)

	branches, err := s.periods.ListBranchIDs(ctx)
	if err != nil {
		return errors.Wrap(err, "list branches")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(branchConcurrency)
	for _, branchID := range branches {
		g.Go(func() error {
			if err := s.periods.Lock(gctx, branchID, weekStart, weekEnd, schedulerActor, now); err != nil {
				return errors.Wrapf(err, "lock period for branch %s", branchID)
			}
			if err := s.cache.SetMarker(gctx, branchID, weekStart, expireAt); err != nil {
				return errors.Wrapf(err, "set settlement marker for branch %s", branchID)
			}
			if err := s.cache.InvalidateKPI(gctx, branchID); err != nil {
				// KPI 缓存失效失败不阻断加锁，缓存会在自然过期后一致
				log.Warn().Err(err).Str("branch", branchID).Msg("failed to invalidate KPI cache")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().
		Time("week_start", weekStart).Time("week_end", weekEnd).
		Int("branches", len(branches)).
		Msg("settlement week locked")
	return nil
}

// UnlockPreviousWeek 在周五 17:00 放开上一周，允许补录修正到下周一再次冻结为止。
func (s *Scheduler) UnlockPreviousWeek(ctx context.Context) error {
	now := s.clk.Now()
	weekStart, _ := domain.PreviousWeekOf(now)

	branches, err := s.periods.ListBranchIDs(ctx)
	if err != nil {
		return errors.Wrap(err, "list branches")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(branchConcurrency)
	for _, branchID := range branches {
		g.Go(func() error {
			if err := s.periods.Unlock(gctx, branchID, weekStart, schedulerActor, now); err != nil {
				return errors.Wrapf(err, "unlock period for branch %s", branchID)
			}
			if err := s.cache.DeleteMarker(gctx, branchID, weekStart); err != nil {
				return errors.Wrapf(err, "delete settlement marker for branch %s", branchID)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	log.Info().Time("week_start", weekStart).Int("branches", len(branches)).Msg("settlement week unlocked")
	return nil
}

// nextFriday17 返回 now 之后最近的周五 17:00（now 正是周五且未到 17:00 时取当天）。
func nextFriday17(now time.Time) time.Time {
	daysAhead := (int(time.Friday) - int(now.Weekday()) + 7) % 7
	candidate := time.Date(now.Year(), now.Month(), now.Day(), 17, 0, 0, 0, now.Location()).AddDate(0, 0, daysAhead)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

package application

import (
	"context"

	"github.com/rs/zerolog/log"

	orderdomain "fieldops/internal/service/order/domain"
	"fieldops/internal/service/settlement/domain"
	"fieldops/internal/service/settlement/port"
)

// Gate 判定某张工单是否落在被冻结的结算周里。
// 判定顺序：先查缓存标记（快路径），再查权威周期表。
// 标记和表可能短暂不一致（标记按 TTL 自行过期），任一命中即视为冻结。
type Gate struct {
	periods domain.Repository
	cache   port.MarkerCache
}

func NewGate(periods domain.Repository, cache port.MarkerCache) *Gate {
	return &Gate{periods: periods, cache: cache}
}

// IsOrderLocked 按工单的 appointmentDate 解析所属网点/周。
func (g *Gate) IsOrderLocked(ctx context.Context, order *orderdomain.Order) (bool, error) {
	if order.BranchID == "" || order.AppointmentDate.IsZero() {
		return false, nil
	}

	weekStart, _ := domain.WeekOf(order.AppointmentDate)
	if g.cache != nil {
		hit, err := g.cache.HasMarker(ctx, order.BranchID, weekStart)
		if err != nil {
			// 缓存故障退化到权威表，不能因此放行或拒绝
			log.Warn().Err(err).Str("branch", order.BranchID).Msg("settlement marker lookup failed, falling back to period table")
		} else if hit {
			return true, nil
		}
	}

	period, err := g.periods.FindLockedFor(ctx, order.BranchID, order.AppointmentDate)
	if err != nil {
		return false, err
	}
	return period != nil && period.Contains(order.AppointmentDate), nil
}

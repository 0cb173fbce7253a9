package port

import (
	"context"

	"fieldops/internal/service/order/domain"
)

// SettlementGate 回答“这张工单所在的网点/周是否被结算冻结”。
// 所有变更操作在任何守卫/版本逻辑之前先问它，命中即短路。
type SettlementGate interface {
	IsOrderLocked(ctx context.Context, order *domain.Order) (bool, error)
}

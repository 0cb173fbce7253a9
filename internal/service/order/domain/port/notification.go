package port

import (
	"context"

	"fieldops/internal/service/order/domain"
)

// LifecycleNotifier 把生命周期事件发布给下游。
// 发布失败只记日志不回滚业务事务，不保证 exactly-once。
type LifecycleNotifier interface {
	Notify(ctx context.Context, event *domain.LifecycleEvent) error
}

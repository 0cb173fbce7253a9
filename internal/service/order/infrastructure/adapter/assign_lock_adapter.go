package adapter

import (
	"context"
	"errors"
	"time"

	"fieldops/internal/pkg/lock"
	"fieldops/internal/service/order/domain"
)

// AssignLockAdapter 实现了 port.AssignLocker 接口，
// 底层用 Redis 分布式锁（令牌 + TTL + Lua 原子释放）。
type AssignLockAdapter struct {
	manager *lock.Manager
}

func NewAssignLockAdapter(manager *lock.Manager) *AssignLockAdapter {
	return &AssignLockAdapter{manager: manager}
}

// WithLockRetry 重试耗尽仍抢不到锁时，翻译成稳定的锁竞争错误码，
// 让客户端拿到可重试的业务语义而不是基础设施细节。
func (a *AssignLockAdapter) WithLockRetry(ctx context.Context, resource string, ttl time.Duration, fn func(ctx context.Context) error) error {
	err := a.manager.WithLockRetry(ctx, resource, ttl, fn)
	if errors.Is(err, lock.ErrNotAcquired) {
		return domain.NewConflict(domain.CodeAssignLockContended,
			"another assignment for this order is in progress, retry shortly",
			map[string]interface{}{"resource": resource})
	}
	return err
}

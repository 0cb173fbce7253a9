package lock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// keyPrefix 是所有互斥锁在共享存储里的命名空间。
const keyPrefix = "lock:"

// ErrNotAcquired 表示锁被其他持有者占用，重试耗尽后仍未抢到。
var ErrNotAcquired = errors.New("lock: resource is held by another owner")

// RetryPolicy 控制 AcquireWithRetry 的指数退避。
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// DefaultRetryPolicy 对应装机员指派这类短竞争场景：最多重试 3 次，
// 100ms 起步、2 倍退避、单次等待不超过 1s。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
	}
}

// Manager 是 TTL 有界的咨询锁。所有权只靠 token 相等性证明，
// TTL 限定了持有者崩溃后锁的最长滞留时间。
type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Acquire 尝试抢占 resource。抢到返回 token，已被占用返回 acquired=false。
func (m *Manager) Acquire(ctx context.Context, resource string, ttl time.Duration) (token string, acquired bool, err error) {
	token = uuid.New().String()
	acquired, err = m.store.SetIfAbsent(ctx, keyPrefix+resource, token, ttl)
	if err != nil {
		return "", false, err
	}
	if !acquired {
		return "", false, nil
	}
	return token, true, nil
}

// Release 只有 token 匹配时才删除锁，防止误删他人刚续上的锁。
func (m *Manager) Release(ctx context.Context, resource, token string) (bool, error) {
	return m.store.CompareAndDelete(ctx, keyPrefix+resource, token)
}

// Extend 在 token 匹配时给锁追加 extra 的有效期。
func (m *Manager) Extend(ctx context.Context, resource, token string, extra time.Duration) (bool, error) {
	return m.store.CompareAndExtend(ctx, keyPrefix+resource, token, extra)
}

// AcquireWithRetry 在 Acquire 失败时按策略退避重试，重试耗尽返回 acquired=false。
func (m *Manager) AcquireWithRetry(ctx context.Context, resource string, ttl time.Duration, policy RetryPolicy) (string, bool, error) {
	delay := policy.InitialDelay
	for attempt := 0; ; attempt++ {
		token, acquired, err := m.Acquire(ctx, resource, ttl)
		if err != nil {
			return "", false, err
		}
		if acquired {
			return token, true, nil
		}
		if attempt >= policy.MaxRetries {
			return "", false, nil
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", false, ctx.Err()
		case <-timer.C:
		}

		delay = time.Duration(float64(delay) * policy.Multiplier)
		if delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
}

// WithLock 抢不到锁直接返回 ErrNotAcquired；抢到后执行 fn，
// 无论 fn 成败都在 defer 里释放。
func (m *Manager) WithLock(ctx context.Context, resource string, ttl time.Duration, fn func(ctx context.Context) error) error {
	token, acquired, err := m.Acquire(ctx, resource, ttl)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrNotAcquired
	}
	return m.runLocked(ctx, resource, token, fn)
}

// WithLockRetry 与 WithLock 相同，但抢占阶段使用退避重试。
func (m *Manager) WithLockRetry(ctx context.Context, resource string, ttl time.Duration, fn func(ctx context.Context) error) error {
	token, acquired, err := m.AcquireWithRetry(ctx, resource, ttl, DefaultRetryPolicy())
	if err != nil {
		return err
	}
	if !acquired {
		return ErrNotAcquired
	}
	return m.runLocked(ctx, resource, token, fn)
}

func (m *Manager) runLocked(ctx context.Context, resource, token string, fn func(ctx context.Context) error) error {
	defer func() {
		// 释放用背景上下文：调用方的 ctx 可能已经取消，但锁必须归还。
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if _, err := m.Release(releaseCtx, resource, token); err != nil {
			log.Warn().Err(err).Str("resource", resource).Msg("failed to release lock, relying on TTL expiry")
		}
	}()
	return fn(ctx)
}

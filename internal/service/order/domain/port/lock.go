package port

import (
	"context"
	"time"
)

// AssignLocker 是指派竞争用的短时互斥锁。
// 乐观版本号也能拦住输家，但要等到写入阶段才报错；
// 锁让输家在入口处就退避，省掉整轮守卫+审计的白费功夫。
type AssignLocker interface {
	// WithLockRetry 抢到锁后执行 fn，结束后必须释放；
	// 重试耗尽仍抢不到时返回锁竞争错误。
	WithLockRetry(ctx context.Context, resource string, ttl time.Duration, fn func(ctx context.Context) error) error
}

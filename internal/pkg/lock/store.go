package lock

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"fieldops/internal/pkg/redis"
)

// Store 是锁管理器依赖的共享键值存储。实现必须保证三个操作各自原子：
// 比较-删除和比较-续期绝不能拆成 get + del/expire 两次往返。
type Store interface {
	SetIfAbsent(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, token string) (bool, error)
	CompareAndExtend(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
}

const (
	compareDeleteScriptName = "lock_compare_delete"
	compareExtendScriptName = "lock_compare_extend"
)

// RedisStore 用单节点 Redis 实现 Store。SET NX PX 负责抢占，
// 释放和续期走 Lua，保证“值相等才动”在服务端一步完成。
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) (*RedisStore, error) {
	if err := client.LoadScriptFromContent(compareDeleteScriptName, compareDeleteScript); err != nil {
		return nil, errors.Wrap(err, "load compare-and-delete script")
	}
	if err := client.LoadScriptFromContent(compareExtendScriptName, compareExtendScript); err != nil {
		return nil, errors.Wrap(err, "load compare-and-extend script")
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) SetIfAbsent(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	ok, err := s.client.GetClient().SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "setnx %s", key)
	}
	return ok, nil
}

func (s *RedisStore) CompareAndDelete(ctx context.Context, key, token string) (bool, error) {
	return s.runCompareScript(ctx, compareDeleteScriptName, key, token)
}

func (s *RedisStore) CompareAndExtend(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return s.runCompareScript(ctx, compareExtendScriptName, key, token, ttl.Milliseconds())
}

func (s *RedisStore) runCompareScript(ctx context.Context, name, key, token string, extra ...interface{}) (bool, error) {
	args := append([]interface{}{token}, extra...)
	result, err := s.client.RunScript(ctx, name, []string{key}, args...)
	if err != nil {
		return false, errors.Wrapf(err, "run %s on %s", name, key)
	}
	code, ok := result.(int64)
	if !ok {
		return false, errors.Errorf("unexpected result type from %s: %T", name, result)
	}
	return code == 1, nil
}

var compareDeleteScript = `
-- KEYS[1]: 锁的 key
-- ARGV[1]: 持有者的 token
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`

var compareExtendScript = `
-- KEYS[1]: 锁的 key
-- ARGV[1]: 持有者的 token
-- ARGV[2]: 追加的毫秒数
if redis.call('get', KEYS[1]) == ARGV[1] then
    local ttl = redis.call('pttl', KEYS[1])
    if ttl < 0 then
        ttl = 0
    end
    return redis.call('pexpire', KEYS[1], ttl + tonumber(ARGV[2]))
end
return 0
`

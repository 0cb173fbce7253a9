package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"fieldops/internal/pkg/redis"
)

const kpiCachePattern = "kpi:branch:%s:*"

// RedisMarkerCache 用 Redis 实现结算冻结标记与 KPI 缓存失效。
// 标记按绝对时间过期（下个周五 17:00），与权威周期行各自独立。
type RedisMarkerCache struct {
	client *redis.Client
}

func NewRedisMarkerCache(client *redis.Client) *RedisMarkerCache {
	return &RedisMarkerCache{client: client}
}

func markerKey(branchID string, weekStart time.Time) string {
	return fmt.Sprintf("settlement:%s:%s", branchID, weekStart.Format("2006-01-02"))
}

func (c *RedisMarkerCache) SetMarker(ctx context.Context, branchID string, weekStart, expireAt time.Time) error {
	key := markerKey(branchID, weekStart)
	// 单次 SET 携带绝对过期时间，中途崩溃不会留下永不过期的冻结标记
	err := c.client.GetClient().SetArgs(ctx, key, "LOCKED", goredis.SetArgs{ExpireAt: expireAt}).Err()
	return errors.Wrapf(err, "set marker %s", key)
}

func (c *RedisMarkerCache) HasMarker(ctx context.Context, branchID string, weekStart time.Time) (bool, error) {
	n, err := c.client.GetClient().Exists(ctx, markerKey(branchID, weekStart)).Result()
	if err != nil {
		return false, errors.Wrap(err, "check settlement marker")
	}
	return n > 0, nil
}

func (c *RedisMarkerCache) DeleteMarker(ctx context.Context, branchID string, weekStart time.Time) error {
	return errors.Wrap(c.client.GetClient().Del(ctx, markerKey(branchID, weekStart)).Err(), "delete settlement marker")
}

// InvalidateKPI 按模式扫描并删除该网点的聚合缓存；SCAN 避免阻塞。
func (c *RedisMarkerCache) InvalidateKPI(ctx context.Context, branchID string) error {
	rdb := c.client.GetClient()
	iter := rdb.Scan(ctx, 0, fmt.Sprintf(kpiCachePattern, branchID), 200).Iterator()
	for iter.Next(ctx) {
		if err := rdb.Del(ctx, iter.Val()).Err(); err != nil {
			return errors.Wrapf(err, "delete kpi cache key %s", iter.Val())
		}
	}
	return errors.Wrap(iter.Err(), "scan kpi cache keys")
}

package port

import (
	"context"
	"time"
)

// MarkerCache 维护结算冻结的快速判定标记与 KPI 缓存失效。
// 标记 key 形如 settlement:<branchId>:<weekStartISODate>，自带到期时间。
// 注意：标记可能先于权威周期行过期，两条判定路径都要保留（见 DESIGN.md）。
type MarkerCache interface {
	SetMarker(ctx context.Context, branchID string, weekStart time.Time, expireAt time.Time) error
	HasMarker(ctx context.Context, branchID string, weekStart time.Time) (bool, error)
	DeleteMarker(ctx context.Context, branchID string, weekStart time.Time) error

	// InvalidateKPI 清掉该网点的聚合缓存，加锁后口径以冻结数据为准。
	InvalidateKPI(ctx context.Context, branchID string) error
}

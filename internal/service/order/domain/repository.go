package domain

import (
	"context"
	"time"
)

// OrderRepository 是工单聚合的持久化接口，由基础设施层实现。
// Update 必须带乐观条件（WHERE version = 旧值）执行，版本由调用方 +1 后传入。
type OrderRepository interface {
	FindByID(ctx context.Context, id string) (*Order, error)
	Create(ctx context.Context, order *Order) error
	Update(ctx context.Context, order *Order) error
	SoftDelete(ctx context.Context, id string, at time.Time) error

	AppendHistory(ctx context.Context, row *StatusHistory) error
	AppendAudit(ctx context.Context, row *AuditEntry) error

	AppendEvent(ctx context.Context, row *OrderEvent) error
	CountEvents(ctx context.Context, orderID string) (int64, error)

	FindCancellation(ctx context.Context, orderID string) (*CancellationRecord, error)
	CreateCancellation(ctx context.Context, row *CancellationRecord) error
	DeleteCancellation(ctx context.Context, orderID string) error

	CreateSplitLink(ctx context.Context, row *SplitLink) error
}

// ReferenceRepository 校验被引用的主数据是否存在。
type ReferenceRepository interface {
	InstallerExists(ctx context.Context, id string) (bool, error)
	BranchExists(ctx context.Context, id string) (bool, error)
	PartnerExists(ctx context.Context, id string) (bool, error)
}

// Repositories 是一次事务内可用的全部仓储。
type Repositories struct {
	Orders OrderRepository
	Refs   ReferenceRepository
}

// TxRunner 对应“事务回调”模式：fn 内的所有写入要么全部提交要么全部回滚。
// 组合根负责开启/提交/回滚，核心层只在回调里做业务。
type TxRunner interface {
	InTx(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error
}

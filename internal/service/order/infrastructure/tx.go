package infrastructure

import (
	"context"

	"gorm.io/gorm"

	"fieldops/internal/service/order/domain"
)

// GormTxRunner 在一个数据库事务里构造仓储并执行回调。
// 回调返回错误即整体回滚，应用层的版本冲突、守卫拒绝都走这条路。
type GormTxRunner struct {
	db *gorm.DB
}

func NewGormTxRunner(db *gorm.DB) *GormTxRunner {
	return &GormTxRunner{db: db}
}

func (r *GormTxRunner) InTx(ctx context.Context, fn func(ctx context.Context, repos *domain.Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repos := &domain.Repositories{
			Orders: NewGormOrderRepository(tx),
			Refs:   NewGormReferenceRepository(tx),
		}
		return fn(ctx, repos)
	})
}

package application

import "fieldops/internal/service/order/domain"

// ensureVersion 是所有变更操作共用的乐观并发守卫。
// expected 为 nil 表示调用方不参与版本校验。
// 必须在任何守卫/状态判定与写入之前、且在同一事务内调用，
// 否则读-检-写之间会被并发提交者插队。
// 不匹配时把期望/当前版本和完整服务端状态一起抛回，客户端一跳即可调和。
func ensureVersion(order *domain.Order, expected *int64, code string) *domain.Error {
	if expected == nil {
		return nil
	}
	if order.Version != *expected {
		return domain.NewVersionConflict(code, *expected, order.Version, order)
	}
	return nil
}

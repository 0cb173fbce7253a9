package domain

import "time"

// 生命周期事件类型，发布给下游（推送、报表）。投递语义是 at-least-once。
const (
	EventStatusChanged  = "ORDER_STATUS_CHANGED"
	EventOrderCancelled = "ORDER_CANCELLED"
	EventOrderReverted  = "ORDER_CANCEL_REVERTED"
	EventOrderSplit     = "ORDER_SPLIT"
)

// LifecycleEvent 是发往消息队列的事件载体。
type LifecycleEvent struct {
	EventID    string            `json:"eventId"`
	EventType  string            `json:"eventType"`
	OrderID    string            `json:"orderId"`
	BranchID   string            `json:"branchId"`
	FromStatus Status            `json:"fromStatus,omitempty"`
	ToStatus   Status            `json:"toStatus,omitempty"`
	Actor      string            `json:"actor"`
	OccurredAt time.Time         `json:"occurredAt"`
	Extra      map[string]string `json:"extra,omitempty"`
}

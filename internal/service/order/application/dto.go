// internal/service/order/application/dto.go
package application

import (
	"time"

	"fieldops/internal/service/order/domain"
)

// UpdateOrderRequest 是通用变更/指派入口。指针字段为 nil 表示“不改”。
// ExpectedVersion 为 nil 表示跳过乐观校验（服务端内部调用使用）。
type UpdateOrderRequest struct {
	OrderID         string
	ExpectedVersion *int64

	Status          *domain.Status
	InstallerID     *string
	BranchID        *string
	PartnerID       *string
	AppointmentDate *time.Time
	PromisedDate    *time.Time

	// 守卫判定需要的请求上下文
	ReasonCode        string
	SerialsCaptured   bool
	WastePickupLogged bool

	Notes     string
	ChangedBy string
}

// LineSerial 是完工回填的单行序列号与回收代码。
type LineSerial struct {
	LineID    string
	SerialNo  string
	WasteCode string
}

// CompleteOrderRequest 驱动完工流程（DISPATCHED → COMPLETED）。
type CompleteOrderRequest struct {
	OrderID         string
	ExpectedVersion *int64
	Serials         []LineSerial
	CompletedBy     string
}

type CancelOrderRequest struct {
	OrderID         string
	ExpectedVersion *int64
	Reason          string
	Note            string
	CancelledBy     string
}

// RevertCancellationRequest 撤销一次取消。
// TargetStatus 缺省取取消记录里的 previousStatus。
type RevertCancellationRequest struct {
	OrderID            string
	ExpectedVersion    *int64
	TargetStatus       *domain.Status
	NewAppointmentDate *time.Time
	RevertedBy         string
}

// SplitAssignment 是拆单时一个子单承接的数量；installerID 非空则子单直接指派。
type SplitAssignment struct {
	InstallerID string
	Quantity    int
}

type SplitLineRequest struct {
	LineID      string
	Assignments []SplitAssignment
}

// SplitOrderRequest 的 ExpectedVersion 是必填的：拆单必须基于确定的父单版本。
type SplitOrderRequest struct {
	OrderID         string
	ExpectedVersion int64
	Lines           []SplitLineRequest
	RequestedBy     string
}

type SplitOrderResult struct {
	ParentOrderID string
	ChildOrderIDs []string
}

type AddOrderEventRequest struct {
	OrderID         string
	ExpectedVersion int64
	EventType       string
	Payload         string
	CreatedBy       string
}

// BulkStatusRequest 对一批工单做同一目标状态的流转，逐单独立成败。
type BulkStatusRequest struct {
	OrderIDs     []string
	TargetStatus domain.Status
	ReasonCode   string
	Notes        string
	ChangedBy    string
}

type BulkStatusItem struct {
	OrderID string `json:"orderId"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

type BulkStatusResult struct {
	Total        int              `json:"total"`
	SuccessCount int              `json:"successCount"`
	FailureCount int              `json:"failureCount"`
	Items        []BulkStatusItem `json:"items"`
}

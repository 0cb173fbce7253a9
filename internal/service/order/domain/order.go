package domain

import (
	"time"

	"github.com/google/uuid"
)

// Order 是安装/拆卸工单聚合根。
// version 是乐观锁令牌：每次成功变更恰好 +1，携带过期 expectedVersion 的
// 请求必须在产生任何副作用之前被拒绝。
type Order struct {
	ID      string `json:"id"`
	Status  Status `json:"status"`
	Version int64  `json:"version"`

	InstallerID string `json:"installerId,omitempty"`
	BranchID    string `json:"branchId,omitempty"`
	PartnerID   string `json:"partnerId,omitempty"`

	CustomerName    string `json:"customerName,omitempty"`
	CustomerPhone   string `json:"customerPhone,omitempty"`
	CustomerAddress string `json:"customerAddress,omitempty"`
	VendorCode      string `json:"vendorCode,omitempty"`

	AppointmentDate time.Time `json:"appointmentDate"`
	PromisedDate    time.Time `json:"promisedDate"`

	AbsenceRetryCount int        `json:"absenceRetryCount"`
	CompletedAt       *time.Time `json:"completedAt,omitempty"`
	DeletedAt         *time.Time `json:"deletedAt,omitempty"`

	Lines []OrderLine `json:"lines,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// OrderLine 是工单下的单个设备行。
type OrderLine struct {
	ID         string `json:"id"`
	OrderID    string `json:"orderId"`
	ProductSKU string `json:"productSku"`
	Quantity   int    `json:"quantity"`
	SerialNo   string `json:"serialNo,omitempty"`
	WasteCode  string `json:"wasteCode,omitempty"`
}

// NewOrder 生成带服务端 ID 的新工单，初始状态 UNASSIGNED，version 从 1 起。
func NewOrder(now time.Time) *Order {
	return &Order{
		ID:        uuid.New().String(),
		Status:    StatusUnassigned,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Line 按行 ID 查找设备行。
func (o *Order) Line(lineID string) *OrderLine {
	for i := range o.Lines {
		if o.Lines[i].ID == lineID {
			return &o.Lines[i]
		}
	}
	return nil
}

// IsDeleted 表示工单已被软删（历史/审计仍引用它，物理行保留）。
func (o *Order) IsDeleted() bool {
	return o.DeletedAt != nil
}

// StatusHistory 是仅追加的流转日志，每条被接受的流转恰好一行，永不改写。
type StatusHistory struct {
	ID             string
	OrderID        string
	PreviousStatus Status
	NewStatus      Status
	ChangedBy      string
	ReasonCode     string
	Notes          string
	ChangedAt      time.Time
}

// CancellationRecord 与已取消工单一一对应。
// 撤销取消是唯一会删除它的操作：该次取消视同从未发生。
type CancellationRecord struct {
	OrderID        string
	Reason         string
	Note           string
	CancelledBy    string
	CancelledAt    time.Time
	PreviousStatus Status
	IsReturned     bool
	ReturnedAt     *time.Time
	ReturnedBy     string
}

// SplitLink 把父单与拆出的每个子单连起来，创建后不再变更。
type SplitLink struct {
	ParentOrderID string
	ChildOrderID  string
	LineID        string
	Quantity      int
	CreatedBy     string
	CreatedAt     time.Time
}

// OrderEvent 是现场追加的不可变事件行（照片说明、沟通记录等）。
type OrderEvent struct {
	ID        string
	OrderID   string
	EventType string
	Payload   string
	CreatedBy string
	CreatedAt time.Time
}

// AuditEntry 记录每一次编排层变更操作的操作者与摘要。
type AuditEntry struct {
	ID        string
	OrderID   string
	Action    string
	Actor     string
	Summary   string
	CreatedAt time.Time
}

package infrastructure

import (
	"time"
)

// OrderModel 对应数据库中的 work_order 表。
// ID 是服务端生成的 UUID，version 列承载乐观锁条件更新。
// 软删只置 deleted_at，物理行保留给历史/审计引用。
type OrderModel struct {
	ID      string `gorm:"primaryKey;size:36"`
	Status  string `gorm:"size:32;index"`
	Version int64

	InstallerID string `gorm:"size:64;index"`
	BranchID    string `gorm:"size:64;index"`
	PartnerID   string `gorm:"size:64"`

	CustomerName    string `gorm:"size:128"`
	CustomerPhone   string `gorm:"size:32"`
	CustomerAddress string `gorm:"size:256"`
	VendorCode      string `gorm:"size:32"`

	AppointmentDate time.Time
	PromisedDate    time.Time

	AbsenceRetryCount int
	CompletedAt       *time.Time
	DeletedAt         *time.Time

	Lines []OrderLineModel `gorm:"foreignKey:OrderID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (OrderModel) TableName() string {
	return "work_order"
}

// OrderLineModel 对应 work_order_line 表。
type OrderLineModel struct {
	ID         string `gorm:"primaryKey;size:36"`
	OrderID    string `gorm:"size:36;index"`
	ProductSKU string `gorm:"size:64"`
	Quantity   int
	SerialNo   string `gorm:"size:64"`
	WasteCode  string `gorm:"size:8"`
}

func (OrderLineModel) TableName() string {
	return "work_order_line"
}

// StatusHistoryModel 对应 order_status_history 表，仅追加，永不改写。
type StatusHistoryModel struct {
	ID             string `gorm:"primaryKey;size:36"`
	OrderID        string `gorm:"size:36;index"`
	PreviousStatus string `gorm:"size:32"`
	NewStatus      string `gorm:"size:32"`
	ChangedBy      string `gorm:"size:64"`
	ReasonCode     string `gorm:"size:16"`
	Notes          string `gorm:"type:text"`
	ChangedAt      time.Time
}

func (StatusHistoryModel) TableName() string {
	return "order_status_history"
}

// OrderEventModel 对应 order_event 表（现场照片说明、沟通记录等）。
type OrderEventModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	OrderID   string `gorm:"size:36;index"`
	EventType string `gorm:"size:32"`
	Payload   string `gorm:"type:text"`
	CreatedBy string `gorm:"size:64"`
	CreatedAt time.Time
}

func (OrderEventModel) TableName() string {
	return "order_event"
}

// CancellationModel 对应 order_cancellation 表，与已取消工单一一对应。
type CancellationModel struct {
	OrderID        string `gorm:"primaryKey;size:36"`
	Reason         string `gorm:"size:256"`
	Note           string `gorm:"type:text"`
	CancelledBy    string `gorm:"size:64"`
	CancelledAt    time.Time
	PreviousStatus string `gorm:"size:32"`
	IsReturned     bool
	ReturnedAt     *time.Time
	ReturnedBy     string `gorm:"size:64"`
}

func (CancellationModel) TableName() string {
	return "order_cancellation"
}

// SplitLinkModel 对应 order_split_link 表，父单与每个子单各一行。
type SplitLinkModel struct {
	ID            uint   `gorm:"primaryKey;autoIncrement"`
	ParentOrderID string `gorm:"size:36;index"`
	ChildOrderID  string `gorm:"size:36;index"`
	LineID        string `gorm:"size:36"`
	Quantity      int
	CreatedBy     string `gorm:"size:64"`
	CreatedAt     time.Time
}

func (SplitLinkModel) TableName() string {
	return "order_split_link"
}

// AuditModel 对应 order_audit 表。
type AuditModel struct {
	ID        string `gorm:"primaryKey;size:36"`
	OrderID   string `gorm:"size:36;index"`
	Action    string `gorm:"size:32"`
	Actor     string `gorm:"size:64"`
	Summary   string `gorm:"type:text"`
	CreatedAt time.Time
}

func (AuditModel) TableName() string {
	return "order_audit"
}

// 主数据表只做存在性校验，由主数据服务维护。

type InstallerModel struct {
	ID   string `gorm:"primaryKey;size:64"`
	Name string
}

func (InstallerModel) TableName() string {
	return "installer"
}

type BranchModel struct {
	ID   string `gorm:"primaryKey;size:64"`
	Name string
}

func (BranchModel) TableName() string {
	return "branch"
}

type PartnerModel struct {
	ID   string `gorm:"primaryKey;size:64"`
	Name string
}

func (PartnerModel) TableName() string {
	return "partner"
}

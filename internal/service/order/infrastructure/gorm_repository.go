package infrastructure

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"fieldops/internal/service/order/domain"
)

// GormOrderRepository 是 domain.OrderRepository 的 GORM 实现。
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// FindByID 按 ID 查找工单，不存在返回 (nil, nil)。
// 软删的行也返回，删除判定交给调用方。
func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).Preload("Lines").Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ToDomainOrder(&model), nil
}

func (r *GormOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	return r.db.WithContext(ctx).Create(FromDomainOrder(order)).Error
}

// Update 带乐观条件写回：WHERE id = ? AND version = 旧值。
// 条件没命中说明别的写入者先到了，重查当前行并返回版本冲突，
// 把服务端最新状态带给调用方。
func (r *GormOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	expected := order.Version - 1
	res := r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ? AND version = ?", order.ID, expected).
		Updates(map[string]interface{}{
			"status":              string(order.Status),
			"version":             order.Version,
			"installer_id":        order.InstallerID,
			"branch_id":           order.BranchID,
			"partner_id":          order.PartnerID,
			"customer_name":       order.CustomerName,
			"customer_phone":      order.CustomerPhone,
			"customer_address":    order.CustomerAddress,
			"vendor_code":         order.VendorCode,
			"appointment_date":    order.AppointmentDate,
			"promised_date":       order.PromisedDate,
			"absence_retry_count": order.AbsenceRetryCount,
			"completed_at":        order.CompletedAt,
			"updated_at":          order.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		current, err := r.FindByID(ctx, order.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return gorm.ErrRecordNotFound
		}
		return domain.NewVersionConflict(domain.CodeVersionMismatch, expected, current.Version, current)
	}
	return r.saveLines(ctx, order)
}

// saveLines 把设备行写回（完工时序列号/废弃物代码会更新）。
// 拆单等场景不会增删既有单的行，这里按主键 upsert 即可。
func (r *GormOrderRepository) saveLines(ctx context.Context, order *domain.Order) error {
	if len(order.Lines) == 0 {
		return nil
	}
	models := make([]OrderLineModel, 0, len(order.Lines))
	for i := range order.Lines {
		models = append(models, fromDomainLine(&order.Lines[i]))
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"serial_no", "waste_code", "quantity"}),
	}).Create(&models).Error
}

func (r *GormOrderRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&OrderModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"deleted_at": at, "updated_at": at}).Error
}

func (r *GormOrderRepository) AppendHistory(ctx context.Context, row *domain.StatusHistory) error {
	return r.db.WithContext(ctx).Create(&StatusHistoryModel{
		ID:             row.ID,
		OrderID:        row.OrderID,
		PreviousStatus: string(row.PreviousStatus),
		NewStatus:      string(row.NewStatus),
		ChangedBy:      row.ChangedBy,
		ReasonCode:     row.ReasonCode,
		Notes:          row.Notes,
		ChangedAt:      row.ChangedAt,
	}).Error
}

func (r *GormOrderRepository) AppendAudit(ctx context.Context, row *domain.AuditEntry) error {
	return r.db.WithContext(ctx).Create(&AuditModel{
		ID:        row.ID,
		OrderID:   row.OrderID,
		Action:    row.Action,
		Actor:     row.Actor,
		Summary:   row.Summary,
		CreatedAt: row.CreatedAt,
	}).Error
}

func (r *GormOrderRepository) AppendEvent(ctx context.Context, row *domain.OrderEvent) error {
	return r.db.WithContext(ctx).Create(&OrderEventModel{
		ID:        row.ID,
		OrderID:   row.OrderID,
		EventType: row.EventType,
		Payload:   row.Payload,
		CreatedBy: row.CreatedBy,
		CreatedAt: row.CreatedAt,
	}).Error
}

func (r *GormOrderRepository) CountEvents(ctx context.Context, orderID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&OrderEventModel{}).
		Where("order_id = ?", orderID).Count(&count).Error
	return count, err
}

func (r *GormOrderRepository) FindCancellation(ctx context.Context, orderID string) (*domain.CancellationRecord, error) {
	var model CancellationModel
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return toDomainCancellation(&model), nil
}

func (r *GormOrderRepository) CreateCancellation(ctx context.Context, row *domain.CancellationRecord) error {
	return r.db.WithContext(ctx).Create(fromDomainCancellation(row)).Error
}

// DeleteCancellation 物理删除取消记录：撤销取消后该次取消视同从未发生。
func (r *GormOrderRepository) DeleteCancellation(ctx context.Context, orderID string) error {
	return r.db.WithContext(ctx).Where("order_id = ?", orderID).Delete(&CancellationModel{}).Error
}

func (r *GormOrderRepository) CreateSplitLink(ctx context.Context, row *domain.SplitLink) error {
	return r.db.WithContext(ctx).Create(&SplitLinkModel{
		ParentOrderID: row.ParentOrderID,
		ChildOrderID:  row.ChildOrderID,
		LineID:        row.LineID,
		Quantity:      row.Quantity,
		CreatedBy:     row.CreatedBy,
		CreatedAt:     row.CreatedAt,
	}).Error
}

// GormReferenceRepository 对主数据表做存在性校验。
type GormReferenceRepository struct {
	db *gorm.DB
}

func NewGormReferenceRepository(db *gorm.DB) *GormReferenceRepository {
	return &GormReferenceRepository{db: db}
}

func (r *GormReferenceRepository) InstallerExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, &InstallerModel{}, id)
}

func (r *GormReferenceRepository) BranchExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, &BranchModel{}, id)
}

func (r *GormReferenceRepository) PartnerExists(ctx context.Context, id string) (bool, error) {
	return r.exists(ctx, &PartnerModel{}, id)
}

func (r *GormReferenceRepository) exists(ctx context.Context, model interface{}, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

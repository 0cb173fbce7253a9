// internal/service/order/application/service.go
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"fieldops/internal/pkg/clock"
	"fieldops/internal/pkg/metrics"
	"fieldops/internal/service/order/domain"
	"fieldops/internal/service/order/domain/port"
)

// assignLockPrefix 是指派互斥锁的资源名前缀（存储层会再加 lock: 命名空间）。
const assignLockPrefix = "order:assign:"

// Config 是编排器的调优参数。
type Config struct {
	AssignLockTTL    time.Duration
	MaxSyncBatchSize int
}

// LifecycleService 是订单生命周期的编排器。
// 每个变更操作在一个事务内按固定顺序执行检查：
// 结算冻结 → 乐观版本 → 引用存在性 → 流转表与守卫 → 写入(version+1) → 历史/审计。
// 顺序是承诺的一部分：结算冻结命中的请求即使版本也过期，报的也是 E2002。
type LifecycleService struct {
	tx       domain.TxRunner
	gate     port.SettlementGate
	locker   port.AssignLocker
	notifier port.LifecycleNotifier
	clk      clock.Clock
	metrics  *metrics.Lifecycle
	tracer   trace.Tracer
	cfg      Config
}

func NewLifecycleService(tx domain.TxRunner, gate port.SettlementGate, locker port.AssignLocker,
	notifier port.LifecycleNotifier, clk clock.Clock, m *metrics.Lifecycle, cfg Config) *LifecycleService {
	if cfg.AssignLockTTL <= 0 {
		cfg.AssignLockTTL = 3 * time.Second
	}
	if cfg.MaxSyncBatchSize <= 0 {
		cfg.MaxSyncBatchSize = 100
	}
	return &LifecycleService{
		tx: tx, gate: gate, locker: locker, notifier: notifier,
		clk: clk, metrics: m, cfg: cfg,
		tracer: otel.Tracer("order-lifecycle"),
	}
}

// CreateOrder 录入一张新工单（服务端分配 ID，version 从 1 起）。
func (s *LifecycleService) CreateOrder(ctx context.Context, order *domain.Order) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()

	now := s.clk.Now()
	created := domain.NewOrder(now)
	created.InstallerID = order.InstallerID
	created.BranchID = order.BranchID
	created.PartnerID = order.PartnerID
	created.CustomerName = order.CustomerName
	created.CustomerPhone = order.CustomerPhone
	created.CustomerAddress = order.CustomerAddress
	created.VendorCode = order.VendorCode
	created.AppointmentDate = order.AppointmentDate
	created.PromisedDate = order.PromisedDate
	created.Lines = make([]domain.OrderLine, len(order.Lines))
	copy(created.Lines, order.Lines)
	for i := range created.Lines {
		if created.Lines[i].ID == "" {
			created.Lines[i].ID = uuid.New().String()
		}
		created.Lines[i].OrderID = created.ID
	}

	err := s.tx.InTx(ctx, func(ctx context.Context, repos *domain.Repositories) error {
		return repos.Orders.Create(ctx, created)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return created, nil
}

// GetOrder 只读加载。
func (s *LifecycleService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	var order *domain.Order
	err := s.tx.InTx(ctx, func(ctx context.Context, repos *domain.Repositories) error {
		loaded, err := loadOrder(ctx, repos, id, domain.CodeOrderNotFound)
		if err != nil {
			return err
		}
		order = loaded
		return nil
	})
	return order, err
}

// UpdateOrder 是通用变更/指派入口。
// 目标状态为 ASSIGNED 时整个事务再裹一层分布式锁：
// 乐观版本也能拦住并发指派的输家，但只能在写入阶段拦，
// 会白跑一整轮守卫+审计；锁让输家在入口处就退避。
func (s *LifecycleService) UpdateOrder(ctx context.Context, req *UpdateOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.UpdateOrder")
	defer span.End()

	var updated *domain.Order
	var changed *domain.StatusHistory

	apply := func(ctx context.Context, repos *domain.Repositories) error {
		order, err := loadOrder(ctx, repos, req.OrderID, domain.CodeOrderNotFound)
		if err != nil {
			return err
		}
		if err := s.checkSettlement(ctx, order); err != nil {
			return err
		}
		if verr := ensureVersion(order, req.ExpectedVersion, domain.CodeVersionMismatch); verr != nil {
			s.countVersionConflict()
			return verr
		}
		if err := s.checkReferences(ctx, repos, req); err != nil {
			return err
		}

		now := s.clk.Now()
		prev := order.Status
		if req.Status != nil && *req.Status != order.Status {
			tctx := domain.TransitionContext{
				InstallerID:       stringOr(req.InstallerID, order.InstallerID),
				AppointmentDate:   timeOr(req.AppointmentDate, order.AppointmentDate),
				Now:               now,
				SerialsCaptured:   req.SerialsCaptured,
				ReasonCode:        req.ReasonCode,
				RetryCount:        order.AbsenceRetryCount,
				WastePickupLogged: req.WastePickupLogged,
			}
			if verr := domain.ValidateTransition(order.Status, *req.Status, tctx); verr != nil {
				return verr
			}
			order.Status = *req.Status
			switch *req.Status {
			case domain.StatusAbsent:
				order.AbsenceRetryCount++
			case domain.StatusCompleted:
				order.CompletedAt = &now
			}
		}

		if req.InstallerID != nil {
			order.InstallerID = *req.InstallerID
		}
		if req.BranchID != nil {
			order.BranchID = *req.BranchID
		}
		if req.PartnerID != nil {
			order.PartnerID = *req.PartnerID
		}
		if req.AppointmentDate != nil {
			order.AppointmentDate = *req.AppointmentDate
		}
		if req.PromisedDate != nil {
			order.PromisedDate = *req.PromisedDate
		}

		order.Version++
		order.UpdatedAt = now
		if err := repos.Orders.Update(ctx, order); err != nil {
			return err
		}

		if order.Status != prev {
			changed = &domain.StatusHistory{
				ID: uuid.New().String(), OrderID: order.ID,
				PreviousStatus: prev, NewStatus: order.Status,
				ChangedBy: req.ChangedBy, ReasonCode: req.ReasonCode, Notes: req.Notes,
				ChangedAt: now,
			}
			if err := repos.Orders.AppendHistory(ctx, changed); err != nil {
				return err
			}
		}
		if err := repos.Orders.AppendAudit(ctx, &domain.AuditEntry{
			ID: uuid.New().String(), OrderID: order.ID,
			Action: "UPDATE", Actor: req.ChangedBy,
			Summary:   fmt.Sprintf("status %s -> %s, version %d", prev, order.Status, order.Version),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		updated = order
		return nil
	}

	var err error
	if req.Status != nil && *req.Status == domain.StatusAssigned {
		err = s.locker.WithLockRetry(ctx, assignLockPrefix+req.OrderID, s.cfg.AssignLockTTL, func(ctx context.Context) error {
			return s.tx.InTx(ctx, apply)
		})
		if derr, ok := domain.AsError(err); ok && derr.Code == domain.CodeAssignLockContended {
			s.countLockContention()
		}
	} else {
		err = s.tx.InTx(ctx, apply)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update rejected")
		return nil, err
	}

	if changed != nil {
		s.countTransition(changed.PreviousStatus, changed.NewStatus)
		s.notify(ctx, &domain.LifecycleEvent{
			EventID: uuid.New().String(), EventType: domain.EventStatusChanged,
			OrderID: updated.ID, BranchID: updated.BranchID,
			FromStatus: changed.PreviousStatus, ToStatus: changed.NewStatus,
			Actor: req.ChangedBy, OccurredAt: changed.ChangedAt,
		})
	}
	return updated, nil
}

// CompleteOrder 是完工流程：回填序列号/回收代码并走 DISPATCHED→COMPLETED。
// 本流程沿用老客户端的 E3001~E3003 错误码。
func (s *LifecycleService) CompleteOrder(ctx context.Context, req *CompleteOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.CompleteOrder")
	defer span.End()

	var updated *domain.Order
	var prev domain.Status
	err := s.tx.InTx(ctx, func(ctx context.Context, repos *domain.Repositories) error {
		order, err := loadOrder(ctx, repos, req.OrderID, domain.CodeCompletionNotFound)
		if err != nil {
			return err
		}
		if err := s.checkSettlement(ctx, order); err != nil {
			return err
		}
		if verr := ensureVersion(order, req.ExpectedVersion, domain.CodeVersionMismatch); verr != nil {
			s.countVersionConflict()
			return verr
		}

		// 先整体校验回收代码与行号，任何一项不过都不落任何写入
		captured := make(map[string]LineSerial, len(req.Serials))
		for _, serial := range req.Serials {
			if serial.WasteCode != "" && !domain.IsValidWasteCode(serial.WasteCode) {
				return domain.NewValidation(domain.CodeInvalidWasteCode,
					fmt.Sprintf("waste code %q is out of the P01-P21 range", serial.WasteCode),
					map[string]interface{}{"wasteCode": serial.WasteCode})
			}
			if order.Line(serial.LineID) == nil {
				return domain.NewNotFound(domain.CodeLineNotFound,
					fmt.Sprintf("order line %s not found", serial.LineID),
					map[string]interface{}{"lineId": serial.LineID})
			}
			captured[serial.LineID] = serial
		}
		serialsCaptured := len(order.Lines) > 0
		for _, line := range order.Lines {
			if _, ok := captured[line.ID]; !ok {
				serialsCaptured = false
			}
		}

		now := s.clk.Now()
		tctx := domain.TransitionContext{Now: now, SerialsCaptured: serialsCaptured}
		if verr := domain.ValidateTransition(order.Status, domain.StatusCompleted, tctx); verr != nil {
			return verr
		}

		prev = order.Status
		for i := range order.Lines {
			if serial, ok := captured[order.Lines[i].ID]; ok {
				order.Lines[i].SerialNo = serial.SerialNo
				order.Lines[i].WasteCode = serial.WasteCode
			}
		}
		order.Status = domain.StatusCompleted
		order.CompletedAt = &now
		order.Version++
		order.UpdatedAt = now
		if err := repos.Orders.Update(ctx, order); err != nil {
			return err
		}
		if err := repos.Orders.AppendHistory(ctx, &domain.StatusHistory{
			ID: uuid.New().String(), OrderID: order.ID,
			PreviousStatus: prev, NewStatus: domain.StatusCompleted,
			ChangedBy: req.CompletedBy, ChangedAt: now,
		}); err != nil {
			return err
		}
		if err := repos.Orders.AppendAudit(ctx, &domain.AuditEntry{
			ID: uuid.New().String(), OrderID: order.ID,
			Action: "COMPLETE", Actor: req.CompletedBy,
			Summary:   fmt.Sprintf("completed with %d serials, version %d", len(req.Serials), order.Version),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.countTransition(prev, domain.StatusCompleted)
	s.notify(ctx, &domain.LifecycleEvent{
		EventID: uuid.New().String(), EventType: domain.EventStatusChanged,
		OrderID: updated.ID, BranchID: updated.BranchID,
		FromStatus: prev, ToStatus: domain.StatusCompleted,
		Actor: req.CompletedBy, OccurredAt: *updated.CompletedAt,
	})
	return updated, nil
}

// CancelOrder 取消工单并落取消记录。重复取消按冲突拒绝（E2019）。
func (s *LifecycleService) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder")
	defer span.End()

	var updated *domain.Order
	var prev domain.Status
	err := s.tx.InTx(ctx, func(ctx context.Context, repos *domain.Repositories) error {
		order, err := loadOrder(ctx, repos, req.OrderID, domain.CodeOrderNotFound)
		if err != nil {
			return err
		}
		if err := s.checkSettlement(ctx, order); err != nil {
			return err
		}
		if verr := ensureVersion(order, req.ExpectedVersion, domain.CodeVersionMismatch); verr != nil {
			s.countVersionConflict()
			return verr
		}

		existing, err := repos.Orders.FindCancellation(ctx, order.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.NewConflict(domain.CodeAlreadyCancelled,
				"order already has a cancellation record",
				map[string]interface{}{"orderId": order.ID, "cancelledAt": existing.CancelledAt})
		}
		if !domain.CancellableStatuses[order.Status] {
			return domain.NewValidation(domain.CodeInvalidStatus,
				fmt.Sprintf("order in status %s cannot be cancelled", order.Status),
				map[string]interface{}{"status": order.Status})
		}

		now := s.clk.Now()
		prev = order.Status
		order.Status = domain.StatusCancelled
		order.Version++
		order.UpdatedAt = now
		if err := repos.Orders.Update(ctx, order); err != nil {
			return err
		}
		if err := repos.Orders.CreateCancellation(ctx, &domain.CancellationRecord{
			OrderID: order.ID, Reason: req.Reason, Note: req.Note,
			CancelledBy: req.CancelledBy, CancelledAt: now, PreviousStatus: prev,
		}); err != nil {
			return err
		}
		if err := repos.Orders.AppendHistory(ctx, &domain.StatusHistory{
			ID: uuid.New().String(), OrderID: order.ID,
			PreviousStatus: prev, NewStatus: domain.StatusCancelled,
			ChangedBy: req.CancelledBy, ReasonCode: req.Reason, Notes: req.Note,
			ChangedAt: now,
		}); err != nil {
			return err
		}
		if err := repos.Orders.AppendAudit(ctx, &domain.AuditEntry{
			ID: uuid.New().String(), OrderID: order.ID,
			Action: "CANCEL", Actor: req.CancelledBy,
			Summary:   fmt.Sprintf("cancelled from %s, reason %s", prev, req.Reason),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.countTransition(prev, domain.StatusCancelled)
	s.notify(ctx, &domain.LifecycleEvent{
		EventID: uuid.New().String(), EventType: domain.EventOrderCancelled,
		OrderID: updated.ID, BranchID: updated.BranchID,
		FromStatus: prev, ToStatus: domain.StatusCancelled,
		Actor: req.CancelledBy, OccurredAt: updated.UpdatedAt,
	})
	return updated, nil
}

// RevertCancellation 撤销一次取消：恢复到取消前状态并删除取消记录。
// 删除记录意味着“这次取消从未发生”，之后允许再次取消。
func (s *LifecycleService) RevertCancellation(ctx context.Context, req *RevertCancellationRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.RevertCancellation")
	defer span.End()

	var updated *domain.Order
	var target domain.Status
	err := s.tx.InTx(ctx, func(ctx context.Context, repos *domain.Repositories) error {
		order, err := loadOrder(ctx, repos, req.OrderID, domain.CodeOrderNotFound)
		if err != nil {
			return err
		}
		if err := s.checkSettlement(ctx, order); err != nil {
			return err
		}
		if verr := ensureVersion(order, req.ExpectedVersion, domain.CodeVersionMismatch); verr != nil {
			s.countVersionConflict()
			return verr
		}

		if order.Status != domain.StatusCancelled {
			return domain.NewValidation(domain.CodeInvalidStatus,
				fmt.Sprintf("only cancelled orders can be reverted, current status is %s", order.Status),
				map[string]interface{}{"status": order.Status})
		}
		record, err := repos.Orders.FindCancellation(ctx, order.ID)
		if err != nil {
			return err
		}
		if record == nil {
			return domain.NewNotFound(domain.CodeNoCancellation,
				"no cancellation record to revert", map[string]interface{}{"orderId": order.ID})
		}

		target = record.PreviousStatus
		if req.TargetStatus != nil {
			if !domain.IsKnownStatus(*req.TargetStatus) || domain.RevertTargetForbidden[*req.TargetStatus] {
				return domain.NewValidation(domain.CodeInvalidRevertTarget,
					fmt.Sprintf("%s is not a valid revert target", *req.TargetStatus),
					map[string]interface{}{"target": *req.TargetStatus})
			}
			target = *req.TargetStatus
		}

		now := s.clk.Now()
		if order.CompletedAt != nil {
			if verr := domain.CanRevert(*order.CompletedAt, order.PromisedDate, req.NewAppointmentDate, now); verr != nil {
				return verr
			}
		}

		order.Status = target
		if req.NewAppointmentDate != nil {
			order.AppointmentDate = *req.NewAppointmentDate
		}
		order.Version++
		order.UpdatedAt = now
		if err := repos.Orders.Update(ctx, order); err != nil {
			return err
		}
		if err := repos.Orders.DeleteCancellation(ctx, order.ID); err != nil {
			return err
		}
		if err := repos.Orders.AppendHistory(ctx, &domain.StatusHistory{
			ID: uuid.New().String(), OrderID: order.ID,
			PreviousStatus: domain.StatusCancelled, NewStatus: target,
			ChangedBy: req.RevertedBy, ChangedAt: now,
		}); err != nil {
			return err
		}
		if err := repos.Orders.AppendAudit(ctx, &domain.AuditEntry{
			ID: uuid.New().String(), OrderID: order.ID,
			Action: "REVERT_CANCEL", Actor: req.RevertedBy,
			Summary:   fmt.Sprintf("cancellation reverted, restored to %s, version %d", target, order.Version),
			CreatedAt: now,
		}); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.countTransition(domain.StatusCancelled, target)
	s.notify(ctx, &domain.LifecycleEvent{
		EventID: uuid.New().String(), EventType: domain.EventOrderReverted,
		OrderID: updated.ID, BranchID: updated.BranchID,
		FromStatus: domain.StatusCancelled, ToStatus: target,
		Actor: req.RevertedBy, OccurredAt: updated.UpdatedAt,
	})
	return updated, nil
}

// AddOrderEvent 追加一条不可变现场事件，返回当前事件总数。
func (s *LifecycleService) AddOrderEvent(ctx context.Context, req *AddOrderEventRequest) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "app.AddOrderEvent")
	defer span.End()

	var count int64
	err := s.tx.InTx(ctx, func(ctx context.Context, repos *domain.Repositories) error {
		order, err := loadOrder(ctx, repos, req.OrderID, domain.CodeOrderNotFound)
		if err != nil {
			return err
		}
		if err := s.checkSettlement(ctx, order); err != nil {
			return err
		}
		if verr := ensureVersion(order, &req.ExpectedVersion, domain.CodeVersionMismatch); verr != nil {
			s.countVersionConflict()
			return verr
		}
		if !domain.EventEligibleStatuses[order.Status] {
			return domain.NewValidation(domain.CodeInvalidStatus,
				fmt.Sprintf("order in status %s does not accept events", order.Status),
				map[string]interface{}{"status": order.Status})
		}

		now := s.clk.Now()
		if err := repos.Orders.AppendEvent(ctx, &domain.OrderEvent{
			ID: uuid.New().String(), OrderID: order.ID,
			EventType: req.EventType, Payload: req.Payload,
			CreatedBy: req.CreatedBy, CreatedAt: now,
		}); err != nil {
			return err
		}
		order.Version++
		order.UpdatedAt = now
		if err := repos.Orders.Update(ctx, order); err != nil {
			return err
		}
		count, err = repos.Orders.CountEvents(ctx, order.ID)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return count, nil
}

// BulkUpdateStatus 逐单流转，单个失败不影响其余。
func (s *LifecycleService) BulkUpdateStatus(ctx context.Context, req *BulkStatusRequest) (*BulkStatusResult, error) {
	ctx, span := s.tracer.Start(ctx, "app.BulkUpdateStatus")
	defer span.End()

	result := &BulkStatusResult{Total: len(req.OrderIDs)}
	target := req.TargetStatus
	for _, orderID := range req.OrderIDs {
		_, err := s.UpdateOrder(ctx, &UpdateOrderRequest{
			OrderID:    orderID,
			Status:     &target,
			ReasonCode: req.ReasonCode,
			Notes:      req.Notes,
			ChangedBy:  req.ChangedBy,
		})
		item := BulkStatusItem{OrderID: orderID, Success: err == nil}
		if err != nil {
			item.Error = domain.CodeOf(err)
			item.Message = err.Error()
			result.FailureCount++
		} else {
			result.SuccessCount++
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

func (s *LifecycleService) checkSettlement(ctx context.Context, order *domain.Order) error {
	locked, err := s.gate.IsOrderLocked(ctx, order)
	if err != nil {
		return err
	}
	if locked {
		s.countSettlementRejection()
		return domain.NewSettlementLocked(order.ID)
	}
	return nil
}

func (s *LifecycleService) checkReferences(ctx context.Context, repos *domain.Repositories, req *UpdateOrderRequest) error {
	if req.InstallerID != nil && *req.InstallerID != "" {
		ok, err := repos.Refs.InstallerExists(ctx, *req.InstallerID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewNotFound(domain.CodeInstallerNotFound,
				fmt.Sprintf("installer %s not found", *req.InstallerID),
				map[string]interface{}{"installerId": *req.InstallerID})
		}
	}
	if req.BranchID != nil && *req.BranchID != "" {
		ok, err := repos.Refs.BranchExists(ctx, *req.BranchID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewNotFound(domain.CodeBranchNotFound,
				fmt.Sprintf("branch %s not found", *req.BranchID),
				map[string]interface{}{"branchId": *req.BranchID})
		}
	}
	if req.PartnerID != nil && *req.PartnerID != "" {
		ok, err := repos.Refs.PartnerExists(ctx, *req.PartnerID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.NewNotFound(domain.CodePartnerNotFound,
				fmt.Sprintf("partner %s not found", *req.PartnerID),
				map[string]interface{}{"partnerId": *req.PartnerID})
		}
	}
	return nil
}

// notify 失败只告警：业务事务已提交，下游靠补偿/重放对账。
func (s *LifecycleService) notify(ctx context.Context, event *domain.LifecycleEvent) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		log.Warn().Err(err).Str("order_id", event.OrderID).Str("event", event.EventType).
			Msg("failed to publish lifecycle event")
	}
}

func (s *LifecycleService) countTransition(from, to domain.Status) {
	if s.metrics != nil {
		s.metrics.TransitionsAccepted.WithLabelValues(string(from), string(to)).Inc()
	}
}

func (s *LifecycleService) countVersionConflict() {
	if s.metrics != nil {
		s.metrics.VersionConflicts.Inc()
	}
}

func (s *LifecycleService) countSettlementRejection() {
	if s.metrics != nil {
		s.metrics.SettlementRejected.Inc()
	}
}

func (s *LifecycleService) countLockContention() {
	if s.metrics != nil {
		s.metrics.AssignLockContended.Inc()
	}
}

func loadOrder(ctx context.Context, repos *domain.Repositories, id, notFoundCode string) (*domain.Order, error) {
	order, err := repos.Orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil || order.IsDeleted() {
		return nil, domain.NewNotFound(notFoundCode,
			fmt.Sprintf("order %s not found", id), map[string]interface{}{"orderId": id})
	}
	return order, nil
}

func stringOr(v *string, fallback string) string {
	if v != nil {
		return *v
	}
	return fallback
}

func timeOr(v *time.Time, fallback time.Time) time.Time {
	if v != nil {
		return *v
	}
	return fallback
}

// internal/service/order/application/sync.go
package application

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"fieldops/internal/service/order/domain"
)

// SyncOpType 是离线客户端排队的变更类型。
type SyncOpType string

const (
	SyncOpCreate SyncOpType = "CREATE"
	SyncOpUpdate SyncOpType = "UPDATE"
	SyncOpDelete SyncOpType = "DELETE"
)

// SyncItem 是客户端队列里的一条变更。EntityID 对 CREATE 而言是客户端临时 ID，
// 服务端会在结果里回报真正分配的 ID。
type SyncItem struct {
	Type            SyncOpType   `json:"type"`
	EntityID        string       `json:"entityId"`
	Payload         *SyncPayload `json:"payload,omitempty"`
	ClientTimestamp time.Time    `json:"clientTimestamp"`
	ExpectedVersion *int64       `json:"expectedVersion,omitempty"`
}

// SyncPayload 同时服务 CREATE（工单草稿字段）和 UPDATE（可选变更字段）。
type SyncPayload struct {
	Status          *domain.Status `json:"status,omitempty"`
	InstallerID     *string        `json:"installerId,omitempty"`
	BranchID        *string        `json:"branchId,omitempty"`
	PartnerID       *string        `json:"partnerId,omitempty"`
	AppointmentDate *time.Time     `json:"appointmentDate,omitempty"`
	PromisedDate    *time.Time     `json:"promisedDate,omitempty"`

	ReasonCode        string `json:"reasonCode,omitempty"`
	Notes             string `json:"notes,omitempty"`
	SerialsCaptured   bool   `json:"serialsCaptured,omitempty"`
	WastePickupLogged bool   `json:"wastePickupLogged,omitempty"`

	CustomerName    string     `json:"customerName,omitempty"`
	CustomerPhone   string     `json:"customerPhone,omitempty"`
	CustomerAddress string     `json:"customerAddress,omitempty"`
	VendorCode      string     `json:"vendorCode,omitempty"`
	Lines           []SyncLine `json:"lines,omitempty"`
}

type SyncLine struct {
	ProductSKU string `json:"productSku"`
	Quantity   int    `json:"quantity"`
}

type SyncRequest struct {
	Actor string     `json:"actor"`
	Items []SyncItem `json:"items"`
}

// SyncResult 对应一条输入，顺序与输入严格一致。
type SyncResult struct {
	EntityID    string        `json:"entityId"`
	ServerID    string        `json:"serverId,omitempty"` // CREATE 时服务端分配的真实 ID
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	Message     string        `json:"message,omitempty"`
	ServerState *domain.Order `json:"serverState,omitempty"`
}

type SyncResponse struct {
	TotalProcessed int          `json:"totalProcessed"`
	SuccessCount   int          `json:"successCount"`
	FailureCount   int          `json:"failureCount"`
	Results        []SyncResult `json:"results"`
}

// SyncBatch 对账离线客户端排队的变更。每条独立、顺序处理：
// 单条失败被转成结果项，绝不回滚或阻断后续条目——批处理的意义
// 就是尽可能多地落地，把冲突留给客户端逐条调和。
func (s *LifecycleService) SyncBatch(ctx context.Context, req *SyncRequest) (*SyncResponse, error) {
	ctx, span := s.tracer.Start(ctx, "app.SyncBatch")
	defer span.End()

	if len(req.Items) > s.cfg.MaxSyncBatchSize {
		return nil, domain.NewValidation(domain.CodeSyncBatchTooLarge,
			fmt.Sprintf("batch of %d exceeds the maximum of %d", len(req.Items), s.cfg.MaxSyncBatchSize),
			map[string]interface{}{"size": len(req.Items), "max": s.cfg.MaxSyncBatchSize})
	}

	resp := &SyncResponse{TotalProcessed: len(req.Items)}
	for _, item := range req.Items {
		result := s.applySyncItem(ctx, req.Actor, item)
		if result.Success {
			resp.SuccessCount++
		} else {
			resp.FailureCount++
			log.Debug().Str("entity_id", item.EntityID).Str("op", string(item.Type)).
				Str("code", result.Error).Msg("sync item rejected")
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}

func (s *LifecycleService) applySyncItem(ctx context.Context, actor string, item SyncItem) SyncResult {
	result := SyncResult{EntityID: item.EntityID}

	var err error
	switch item.Type {
	case SyncOpCreate:
		var created *domain.Order
		created, err = s.createFromSync(ctx, item)
		if err == nil {
			result.ServerID = created.ID
			result.ServerState = created
		}
	case SyncOpUpdate:
		var updated *domain.Order
		updated, err = s.updateFromSync(ctx, actor, item)
		if err == nil {
			result.ServerState = updated
		}
	case SyncOpDelete:
		err = s.softDeleteOrder(ctx, actor, item.EntityID)
	default:
		err = domain.NewValidation(domain.CodeUnknownSyncOp,
			fmt.Sprintf("unknown sync operation type %q", item.Type),
			map[string]interface{}{"type": item.Type})
	}

	if err != nil {
		result.Success = false
		result.Message = err.Error()
		if derr, ok := domain.AsError(err); ok {
			result.Error = derr.Code
			if state, ok := derr.Details["serverState"].(*domain.Order); ok {
				result.ServerState = state
			}
		} else {
			result.Error = "INTERNAL"
		}
		return result
	}
	result.Success = true
	return result
}

func (s *LifecycleService) createFromSync(ctx context.Context, item SyncItem) (*domain.Order, error) {
	if item.Payload == nil {
		return nil, domain.NewValidation(domain.CodeUnknownSyncOp,
			"CREATE item without payload", map[string]interface{}{"entityId": item.EntityID})
	}
	p := item.Payload
	draft := &domain.Order{
		CustomerName:    p.CustomerName,
		CustomerPhone:   p.CustomerPhone,
		CustomerAddress: p.CustomerAddress,
		VendorCode:      p.VendorCode,
	}
	if p.InstallerID != nil {
		draft.InstallerID = *p.InstallerID
	}
	if p.BranchID != nil {
		draft.BranchID = *p.BranchID
	}
	if p.PartnerID != nil {
		draft.PartnerID = *p.PartnerID
	}
	if p.AppointmentDate != nil {
		draft.AppointmentDate = *p.AppointmentDate
	}
	if p.PromisedDate != nil {
		draft.PromisedDate = *p.PromisedDate
	}
	for _, line := range p.Lines {
		draft.Lines = append(draft.Lines, domain.OrderLine{
			ProductSKU: line.ProductSKU,
			Quantity:   line.Quantity,
		})
	}
	return s.CreateOrder(ctx, draft)
}

func (s *LifecycleService) updateFromSync(ctx context.Context, actor string, item SyncItem) (*domain.Order, error) {
	if item.Payload == nil {
		return nil, domain.NewValidation(domain.CodeUnknownSyncOp,
			"UPDATE item without payload", map[string]interface{}{"entityId": item.EntityID})
	}
	p := item.Payload
	updated, err := s.UpdateOrder(ctx, &UpdateOrderRequest{
		OrderID:           item.EntityID,
		ExpectedVersion:   item.ExpectedVersion,
		Status:            p.Status,
		InstallerID:       p.InstallerID,
		BranchID:          p.BranchID,
		PartnerID:         p.PartnerID,
		AppointmentDate:   p.AppointmentDate,
		PromisedDate:      p.PromisedDate,
		ReasonCode:        p.ReasonCode,
		SerialsCaptured:   p.SerialsCaptured,
		WastePickupLogged: p.WastePickupLogged,
		Notes:             p.Notes,
		ChangedBy:         actor,
	})
	if err != nil {
		// 批量同步路径用自己的版本冲突码（E2006），明细原样保留
		if derr, ok := domain.AsError(err); ok && derr.Code == domain.CodeVersionMismatch {
			return nil, &domain.Error{
				Kind: derr.Kind, Code: domain.CodeSyncVersionConflict,
				Message: derr.Message, Details: derr.Details,
			}
		}
		return nil, err
	}
	return updated, nil
}

// softDeleteOrder 走软删路径：历史/审计仍引用工单，物理行永不删除。
func (s *LifecycleService) softDeleteOrder(ctx context.Context, actor, orderID string) error {
	return s.tx.InTx(ctx, func(ctx context.Context, repos *domain.Repositories) error {
		order, err := loadOrder(ctx, repos, orderID, domain.CodeOrderNotFound)
		if err != nil {
			return err
		}
		if err := s.checkSettlement(ctx, order); err != nil {
			return err
		}
		now := s.clk.Now()
		if err := repos.Orders.SoftDelete(ctx, order.ID, now); err != nil {
			return err
		}
		return repos.Orders.AppendAudit(ctx, &domain.AuditEntry{
			ID: uuid.New().String(), OrderID: order.ID,
			Action: "DELETE", Actor: actor,
			Summary:   "soft-deleted via batch sync",
			CreatedAt: now,
		})
	})
}

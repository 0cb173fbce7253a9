package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"fieldops/internal/service/order/domain"
)

// splittableStatuses：只有尚未进入执行阶段的工单可以拆。
var splittableStatuses = map[domain.Status]bool{
	domain.StatusUnassigned: true,
	domain.StatusAssigned:   true,
	domain.StatusConfirmed:  true,
}

// SplitOrder 把父单按行拆成多个子单并取消父单。
// 父单的每一行都必须被请求覆盖，且每行的承接数量之和恰好等于原行数量——
// 不允许少拆、超拆或漏行，全部校验在创建任何子单之前完成，失败时不残留半成品。
func (s *LifecycleService) SplitOrder(ctx context.Context, req *SplitOrderRequest) (*SplitOrderResult, error) {
	ctx, span := s.tracer.Start(ctx, "app.SplitOrder")
	defer span.End()

	var result *SplitOrderResult
	var prev domain.Status
	err := s.tx.InTx(ctx, func(ctx context.Context, repos *domain.Repositories) error {
		parent, err := loadOrder(ctx, repos, req.OrderID, domain.CodeOrderNotFound)
		if err != nil {
			return err
		}
		if err := s.checkSettlement(ctx, parent); err != nil {
			return err
		}
		if verr := ensureVersion(parent, &req.ExpectedVersion, domain.CodeVersionMismatch); verr != nil {
			s.countVersionConflict()
			return verr
		}
		if !splittableStatuses[parent.Status] {
			return domain.NewValidation(domain.CodeInvalidStatus,
				fmt.Sprintf("order in status %s cannot be split", parent.Status),
				map[string]interface{}{"status": parent.Status})
		}
		// 空请求会在没有任何子单的情况下取消父单，必须在这里拦死
		if len(req.Lines) == 0 {
			return domain.NewValidation(domain.CodeSplitQuantity,
				"a split request must cover the order lines",
				map[string]interface{}{"orderId": parent.ID})
		}

		// 第一遍：只校验，不写
		covered := make(map[string]bool, len(req.Lines))
		for _, line := range req.Lines {
			parentLine := parent.Line(line.LineID)
			if parentLine == nil {
				return domain.NewNotFound(domain.CodeLineNotFound,
					fmt.Sprintf("order line %s not found", line.LineID),
					map[string]interface{}{"lineId": line.LineID})
			}
			if covered[line.LineID] {
				return domain.NewValidation(domain.CodeSplitQuantity,
					fmt.Sprintf("line %s appears more than once in the split request", line.LineID),
					map[string]interface{}{"lineId": line.LineID})
			}
			covered[line.LineID] = true
			total := 0
			for _, a := range line.Assignments {
				if a.Quantity <= 0 {
					return domain.NewValidation(domain.CodeSplitQuantity,
						"split assignment quantity must be positive",
						map[string]interface{}{"lineId": line.LineID, "quantity": a.Quantity})
				}
				if a.InstallerID != "" {
					ok, err := repos.Refs.InstallerExists(ctx, a.InstallerID)
					if err != nil {
						return err
					}
					if !ok {
						return domain.NewNotFound(domain.CodeInstallerNotFound,
							fmt.Sprintf("installer %s not found", a.InstallerID),
							map[string]interface{}{"installerId": a.InstallerID})
					}
				}
				total += a.Quantity
			}
			if total != parentLine.Quantity {
				return domain.NewValidation(domain.CodeSplitQuantity,
					fmt.Sprintf("line %s: assigned quantity %d does not match original %d",
						line.LineID, total, parentLine.Quantity),
					map[string]interface{}{
						"lineId": line.LineID, "assigned": total, "original": parentLine.Quantity,
					})
			}
		}
		// 父单会被整单取消，每一行都必须有人承接，不允许有行凭空消失
		for i := range parent.Lines {
			if !covered[parent.Lines[i].ID] {
				return domain.NewValidation(domain.CodeSplitQuantity,
					fmt.Sprintf("line %s is not covered by the split request", parent.Lines[i].ID),
					map[string]interface{}{"lineId": parent.Lines[i].ID})
			}
		}

		now := s.clk.Now()
		var childIDs []string
		var mapping []string
		for _, line := range req.Lines {
			parentLine := parent.Line(line.LineID)
			for _, a := range line.Assignments {
				child := domain.NewOrder(now)
				child.BranchID = parent.BranchID
				child.PartnerID = parent.PartnerID
				child.CustomerName = parent.CustomerName
				child.CustomerPhone = parent.CustomerPhone
				child.CustomerAddress = parent.CustomerAddress
				child.VendorCode = parent.VendorCode
				child.AppointmentDate = parent.AppointmentDate
				child.PromisedDate = parent.PromisedDate
				if a.InstallerID != "" {
					child.Status = domain.StatusAssigned
					child.InstallerID = a.InstallerID
				}
				child.Lines = []domain.OrderLine{{
					ID:         uuid.New().String(),
					OrderID:    child.ID,
					ProductSKU: parentLine.ProductSKU,
					Quantity:   a.Quantity,
				}}
				if err := repos.Orders.Create(ctx, child); err != nil {
					return err
				}
				if err := repos.Orders.CreateSplitLink(ctx, &domain.SplitLink{
					ParentOrderID: parent.ID,
					ChildOrderID:  child.ID,
					LineID:        line.LineID,
					Quantity:      a.Quantity,
					CreatedBy:     req.RequestedBy,
					CreatedAt:     now,
				}); err != nil {
					return err
				}
				childIDs = append(childIDs, child.ID)
				mapping = append(mapping, fmt.Sprintf("%s:%d->%s", line.LineID, a.Quantity, child.ID))
			}
		}

		// 子单全部建好后取消父单
		prev = parent.Status
		parent.Status = domain.StatusCancelled
		parent.Version++
		parent.UpdatedAt = now
		if err := repos.Orders.Update(ctx, parent); err != nil {
			return err
		}
		if err := repos.Orders.AppendHistory(ctx, &domain.StatusHistory{
			ID: uuid.New().String(), OrderID: parent.ID,
			PreviousStatus: prev, NewStatus: domain.StatusCancelled,
			ChangedBy: req.RequestedBy, ReasonCode: "SPLIT",
			ChangedAt: now,
		}); err != nil {
			return err
		}
		if err := repos.Orders.AppendAudit(ctx, &domain.AuditEntry{
			ID: uuid.New().String(), OrderID: parent.ID,
			Action: "SPLIT", Actor: req.RequestedBy,
			Summary:   fmt.Sprintf("split into %d children: %s", len(childIDs), strings.Join(mapping, ", ")),
			CreatedAt: now,
		}); err != nil {
			return err
		}

		result = &SplitOrderResult{ParentOrderID: parent.ID, ChildOrderIDs: childIDs}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.countTransition(prev, domain.StatusCancelled)
	s.notify(ctx, &domain.LifecycleEvent{
		EventID: uuid.New().String(), EventType: domain.EventOrderSplit,
		OrderID: result.ParentOrderID, Actor: req.RequestedBy, OccurredAt: s.clk.Now(),
		Extra: map[string]string{"children": strings.Join(result.ChildOrderIDs, ",")},
	})
	return result, nil
}
